package upload_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/panscan/pkg/upload"
)

func multipartRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))

	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/reviews", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestReceive(t *testing.T) {
	dir := t.TempDir()
	req := multipartRequest(t, "file", "scan.CSV", "filename\r\nC:/a.txt\r\n")

	f, err := upload.Receive(httptest.NewRecorder(), req, "file", 1<<20, dir)
	require.NoError(t, err)
	t.Cleanup(func() { f.Remove() })

	assert.Equal(t, "scan.CSV", f.Name)
	assert.Equal(t, int64(len("filename\r\nC:/a.txt\r\n")), f.Size)

	data, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, "filename\r\nC:/a.txt\r\n", string(data))

	require.NoError(t, f.Remove())
	_, err = os.Stat(f.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, f.Remove(), "removing twice is harmless")
}

func TestReceiveRejects(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		maxBytes int64
		wantErr  error
	}{
		{
			name:     "no file field",
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, "", "", "") },
			maxBytes: 1 << 20,
			wantErr:  upload.ErrMissingFile,
		},
		{
			name:     "empty filename",
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, "file", "", "x") },
			maxBytes: 1 << 20,
			wantErr:  upload.ErrMissingFile,
		},
		{
			name:     "wrong extension",
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, "file", "scan.xlsx", "x") },
			maxBytes: 1 << 20,
			wantErr:  upload.ErrNotCSV,
		},
		{
			name:     "no extension",
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, "file", "csv", "x") },
			maxBytes: 1 << 20,
			wantErr:  upload.ErrNotCSV,
		},
		{
			name: "oversized body",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "file", "big.csv", strings.Repeat("x", 4096))
			},
			maxBytes: 512,
			wantErr:  upload.ErrTooLarge,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader("{}"))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			maxBytes: 1 << 20,
			wantErr:  upload.ErrMalformedForm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			_, err := upload.Receive(httptest.NewRecorder(), tt.req(t), "file", tt.maxBytes, dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, upload.IsClientError(err))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries, "no spool file may remain")
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"scan.csv", "scan.csv"},
		{"../../etc/scan.csv", "scan.csv"},
		{`C:\Users\analyst\scan.csv`, "scan.csv"},
		{"  scan.csv ", "scan.csv"},
		{"", ""},
		{"..", ""},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, upload.SanitizeFilename(tt.in))
		})
	}
}

func TestIsCSV(t *testing.T) {
	assert.True(t, upload.IsCSV("a.csv"))
	assert.True(t, upload.IsCSV("A.CsV"))
	assert.False(t, upload.IsCSV("a.csv.txt"))
	assert.False(t, upload.IsCSV("csv"))
}
