package sessions_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/panscan/internal/sessions"
	"github.com/JaimeStill/panscan/pkg/pagination"
	"github.com/JaimeStill/panscan/pkg/scan"
)

type mockSystem struct {
	createFn   func(ctx context.Context, cmd sessions.CreateCommand) (*sessions.Session, error)
	listFn     func(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[sessions.Session], error)
	findFn     func(ctx context.Context, id uuid.UUID) (*sessions.Detail, error)
	processFn  func(ctx context.Context, id uuid.UUID, cmd sessions.ProcessCommand) (*sessions.FileResult, error)
	runFn      func(ctx context.Context, id uuid.UUID) (*sessions.Detail, error)
	downloadFn func(ctx context.Context, id uuid.UUID, file string) (*sessions.FileResult, io.ReadCloser, error)
	archiveFn  func(ctx context.Context, id uuid.UUID, w io.Writer) error
	deleteFn   func(ctx context.Context, id uuid.UUID) error
}

func (m *mockSystem) Handler() *sessions.Handler {
	return sessions.NewHandler(m, slog.New(slog.DiscardHandler), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})
}

func (m *mockSystem) Create(ctx context.Context, cmd sessions.CreateCommand) (*sessions.Session, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[sessions.Session], error) {
	return m.listFn(ctx, page)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*sessions.Detail, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) ProcessFile(ctx context.Context, id uuid.UUID, cmd sessions.ProcessCommand) (*sessions.FileResult, error) {
	return m.processFn(ctx, id, cmd)
}

func (m *mockSystem) Run(ctx context.Context, id uuid.UUID) (*sessions.Detail, error) {
	return m.runFn(ctx, id)
}

func (m *mockSystem) Download(ctx context.Context, id uuid.UUID, file string) (*sessions.FileResult, io.ReadCloser, error) {
	return m.downloadFn(ctx, id, file)
}

func (m *mockSystem) Archive(ctx context.Context, id uuid.UUID, w io.Writer) error {
	return m.archiveFn(ctx, id, w)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func setupMux(sys *mockSystem) *http.ServeMux {
	mux := http.NewServeMux()
	group := sys.Handler().Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

var sessionID = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

func sampleDetail() *sessions.Detail {
	return &sessions.Detail{
		Session: sessions.Session{
			ID:         sessionID,
			FolderPath: "/data/scans",
			Files:      []string{"a.csv", "b.csv"},
		},
		Results: []sessions.FileResult{
			{File: "a.csv", Status: sessions.StatusComplete, Output: "Reviewed_a.csv", Stats: scan.Stats{TruePositive: 1, Total: 1}},
			{File: "b.csv", Status: sessions.StatusPending},
		},
		Total:     scan.Stats{TruePositive: 1, Total: 1},
		Processed: 1,
	}
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func TestHandlerCreate(t *testing.T) {
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd sessions.CreateCommand) (*sessions.Session, error) {
			if cmd.FolderPath == "/missing" {
				return nil, fmt.Errorf("%w: folder path does not exist", sessions.ErrInvalidFolder)
			}
			return &sampleDetail().Session, nil
		},
	}
	mux := setupMux(sys)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid folder", `{"folder_path":"/data/scans"}`, http.StatusCreated},
		{"missing folder_path", `{}`, http.StatusBadRequest},
		{"malformed body", `{"folder_path":`, http.StatusBadRequest},
		{"folder does not exist", `{"folder_path":"/missing"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, http.MethodPost, "/sessions", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandlerList(t *testing.T) {
	var captured pagination.PageRequest
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest) (*pagination.PageResult[sessions.Session], error) {
			captured = page
			result := pagination.NewPageResult([]sessions.Session{sampleDetail().Session}, 1, page.Page, page.PageSize)
			return &result, nil
		},
	}

	rec := do(setupMux(sys), http.MethodGet, "/sessions?page=2&page_size=5&search=scans", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 2, captured.Page)
	assert.Equal(t, 5, captured.PageSize)
	require.NotNil(t, captured.Search)
	assert.Equal(t, "scans", *captured.Search)

	var result pagination.PageResult[sessions.Session]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Len(t, result.Data, 1)
	assert.Equal(t, sessionID, result.Data[0].ID)
}

func TestHandlerFind(t *testing.T) {
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*sessions.Detail, error) {
			if id != sessionID {
				return nil, sessions.ErrNotFound
			}
			return sampleDetail(), nil
		},
	}
	mux := setupMux(sys)

	rec := do(mux, http.MethodGet, "/sessions/"+sessionID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var d sessions.Detail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&d))
	assert.Equal(t, "/data/scans", d.FolderPath)
	assert.Equal(t, 1, d.Total.TruePositive)
	assert.Len(t, d.Results, 2)

	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/sessions/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/sessions/nope", "").Code)
}

func TestHandlerProcessFile(t *testing.T) {
	sys := &mockSystem{
		processFn: func(_ context.Context, _ uuid.UUID, cmd sessions.ProcessCommand) (*sessions.FileResult, error) {
			switch cmd.FileName {
			case "a.csv":
				return &sampleDetail().Results[0], nil
			case "bad.csv":
				return nil, fmt.Errorf("review bad.csv: %w", scan.ErrMalformedSource)
			}
			return nil, sessions.ErrFileNotInSession
		},
	}
	mux := setupMux(sys)
	path := "/sessions/" + sessionID.String() + "/files"

	tests := []struct {
		name string
		body string
		want int
	}{
		{"processes file", `{"file_name":"a.csv"}`, http.StatusOK},
		{"malformed csv", `{"file_name":"bad.csv"}`, http.StatusUnprocessableEntity},
		{"unknown file", `{"file_name":"other.csv"}`, http.StatusNotFound},
		{"missing file_name", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(mux, http.MethodPost, path, tt.body).Code)
		})
	}
}

func TestHandlerRun(t *testing.T) {
	sys := &mockSystem{
		runFn: func(_ context.Context, id uuid.UUID) (*sessions.Detail, error) {
			return sampleDetail(), nil
		},
	}

	rec := do(setupMux(sys), http.MethodPost, "/sessions/"+sessionID.String()+"/run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var d sessions.Detail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&d))
	assert.Equal(t, 1, d.Processed)
}

func TestHandlerDownload(t *testing.T) {
	var gotName string
	sys := &mockSystem{
		downloadFn: func(_ context.Context, _ uuid.UUID, file string) (*sessions.FileResult, io.ReadCloser, error) {
			gotName = file
			res := sampleDetail().Results[0]
			return &res, io.NopCloser(strings.NewReader("filename\r\n")), nil
		},
	}

	rec := do(setupMux(sys), http.MethodGet, "/sessions/"+sessionID.String()+"/files/host%2001.csv/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "host 01.csv", gotName)
	assert.Equal(t, `attachment; filename="Reviewed_a.csv"`, rec.Header().Get("Content-Disposition"))
}

func TestHandlerArchive(t *testing.T) {
	empty := sampleDetail()
	empty.Results = []sessions.FileResult{{File: "a.csv", Status: sessions.StatusPending}}

	otherID := uuid.New()
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*sessions.Detail, error) {
			if id == otherID {
				return empty, nil
			}
			return sampleDetail(), nil
		},
		archiveFn: func(_ context.Context, _ uuid.UUID, w io.Writer) error {
			_, err := w.Write([]byte("PK"))
			return err
		},
	}
	mux := setupMux(sys)

	rec := do(mux, http.MethodGet, "/sessions/"+sessionID.String()+"/archive", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="BulkScan_Results_`+sessionID.String()+`.zip"`, rec.Header().Get("Content-Disposition"))

	rec = do(mux, http.MethodGet, "/sessions/"+otherID.String()+"/archive", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerDelete(t *testing.T) {
	sys := &mockSystem{
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			if id != sessionID {
				return sessions.ErrNotFound
			}
			return nil
		},
	}
	mux := setupMux(sys)

	assert.Equal(t, http.StatusNoContent, do(mux, http.MethodDelete, "/sessions/"+sessionID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodDelete, "/sessions/"+uuid.NewString(), "").Code)
}
