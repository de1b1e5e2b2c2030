package reviews_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/panscan/internal/reviews"
	"github.com/JaimeStill/panscan/pkg/scan"
)

type mockSystem struct {
	createFn   func(ctx context.Context, cmd reviews.CreateCommand) (*reviews.Review, error)
	findFn     func(ctx context.Context, id uuid.UUID) (*reviews.Review, error)
	downloadFn func(ctx context.Context, id uuid.UUID) (*reviews.Review, io.ReadCloser, error)
	deleteFn   func(ctx context.Context, id uuid.UUID) error
}

func (m *mockSystem) Handler(maxUploadSize int64) *reviews.Handler {
	return reviews.NewHandler(m, slog.New(slog.DiscardHandler), maxUploadSize, os.TempDir())
}

func (m *mockSystem) Create(ctx context.Context, cmd reviews.CreateCommand) (*reviews.Review, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*reviews.Review, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Download(ctx context.Context, id uuid.UUID) (*reviews.Review, io.ReadCloser, error) {
	return m.downloadFn(ctx, id)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func newTestHandler(t *testing.T, sys *mockSystem, maxUploadSize int64) *reviews.Handler {
	return reviews.NewHandler(sys, slog.New(slog.DiscardHandler), maxUploadSize, t.TempDir())
}

func setupMux(h *reviews.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func sampleReview() reviews.Review {
	return reviews.Review{
		ID:         uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		Source:     "scan.csv",
		Filename:   "Reviewed_scan.csv",
		StorageKey: "reviews/550e8400-e29b-41d4-a716-446655440000/Reviewed_scan.csv",
		SizeBytes:  32,
		Stats:      scan.Stats{TruePositive: 1, FalsePositive: 1, NotFound: 1, Total: 3},
		CreatedAt:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/reviews", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandlerCreate(t *testing.T) {
	rv := sampleReview()

	t.Run("reviews uploaded csv", func(t *testing.T) {
		var captured reviews.CreateCommand
		var spooled string
		sys := &mockSystem{
			createFn: func(_ context.Context, cmd reviews.CreateCommand) (*reviews.Review, error) {
				captured = cmd
				data, err := os.ReadFile(cmd.Path)
				require.NoError(t, err)
				spooled = string(data)
				return &rv, nil
			},
		}

		rec := httptest.NewRecorder()
		setupMux(newTestHandler(t, sys, 1<<20)).ServeHTTP(rec, uploadRequest(t, "scan.csv", "filename\nC:/malware.exe\n"))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "scan.csv", captured.Filename)
		assert.Equal(t, "filename\nC:/malware.exe\n", spooled)

		_, err := os.Stat(captured.Path)
		assert.ErrorIs(t, err, os.ErrNotExist, "spool file removed after the request")

		var got reviews.Review
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, rv.ID, got.ID)
		assert.Equal(t, rv.Stats, got.Stats)
	})

	tests := []struct {
		name      string
		req       func(t *testing.T) *http.Request
		maxUpload int64
		createErr error
		want      int
	}{
		{
			name:      "rejects non-csv upload",
			req:       func(t *testing.T) *http.Request { return uploadRequest(t, "scan.xlsx", "x") },
			maxUpload: 1 << 20,
			want:      http.StatusBadRequest,
		},
		{
			name:      "rejects oversized upload",
			req:       func(t *testing.T) *http.Request { return uploadRequest(t, "scan.csv", strings.Repeat("x", 4096)) },
			maxUpload: 256,
			want:      http.StatusRequestEntityTooLarge,
		},
		{
			name:      "malformed csv",
			req:       func(t *testing.T) *http.Request { return uploadRequest(t, "scan.csv", "x") },
			maxUpload: 1 << 20,
			createErr: fmt.Errorf("review scan.csv: %w", scan.ErrMalformedSource),
			want:      http.StatusUnprocessableEntity,
		},
		{
			name:      "storage failure",
			req:       func(t *testing.T) *http.Request { return uploadRequest(t, "scan.csv", "x") },
			maxUpload: 1 << 20,
			createErr: fmt.Errorf("publish: disk full"),
			want:      http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				createFn: func(context.Context, reviews.CreateCommand) (*reviews.Review, error) {
					if tt.createErr != nil {
						return nil, tt.createErr
					}
					return &rv, nil
				},
			}

			rec := httptest.NewRecorder()
			setupMux(newTestHandler(t, sys, tt.maxUpload)).ServeHTTP(rec, tt.req(t))

			assert.Equal(t, tt.want, rec.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandlerFind(t *testing.T) {
	rv := sampleReview()
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*reviews.Review, error) {
			if id != rv.ID {
				return nil, reviews.ErrNotFound
			}
			return &rv, nil
		},
	}
	mux := setupMux(newTestHandler(t, sys, 1<<20))

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/reviews/" + rv.ID.String(), http.StatusOK},
		{"not found", "/reviews/" + uuid.NewString(), http.StatusNotFound},
		{"invalid id", "/reviews/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandlerDownload(t *testing.T) {
	rv := sampleReview()
	content := "filename,Comments,Findings\r\nC:/a,,Not Found\r\n"
	rv.SizeBytes = int64(len(content))

	sys := &mockSystem{
		downloadFn: func(_ context.Context, id uuid.UUID) (*reviews.Review, io.ReadCloser, error) {
			if id != rv.ID {
				return nil, nil, reviews.ErrNotFound
			}
			return &rv, io.NopCloser(strings.NewReader(content)), nil
		},
	}
	mux := setupMux(newTestHandler(t, sys, 1<<20))

	t.Run("streams attachment", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reviews/"+rv.ID.String()+"/download", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="Reviewed_scan.csv"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, content, rec.Body.String())
	})

	t.Run("unknown review", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reviews/"+uuid.NewString()+"/download", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandlerDelete(t *testing.T) {
	rv := sampleReview()
	sys := &mockSystem{
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			if id != rv.ID {
				return reviews.ErrNotFound
			}
			return nil
		},
	}
	mux := setupMux(newTestHandler(t, sys, 1<<20))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/reviews/"+rv.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/reviews/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{reviews.ErrNotFound, http.StatusNotFound},
		{reviews.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{reviews.ErrInvalidFile, http.StatusBadRequest},
		{reviews.ErrInvalidID, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", scan.ErrMissingHeader), http.StatusUnprocessableEntity},
		{fmt.Errorf("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, reviews.MapHTTPStatus(tt.err))
		})
	}
}
