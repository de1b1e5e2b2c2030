package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/panscan/pkg/lifecycle"
)

const localTempPrefix = ".upload-"

// contentTypes covers the artifacts the service publishes, which the
// platform mime table does not always know.
var contentTypes = map[string]string{
	".csv":  "text/csv",
	".zip":  "application/zip",
	".json": "application/json",
}

type local struct {
	root   string
	logger *slog.Logger
}

func newLocal(cfg *Config, logger *slog.Logger) (System, error) {
	root, err := filepath.Abs(cfg.Local.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	return &local{
		root:   root,
		logger: logger.With("system", "storage", "provider", ProviderLocal),
	}, nil
}

func (l *local) Start(lc *lifecycle.Coordinator) error {
	l.logger.Info("starting storage system")

	lc.OnStartup(func() error {
		if err := os.MkdirAll(l.root, 0755); err != nil {
			l.logger.Error("storage root initialization failed", "error", err)
			return fmt.Errorf("storage root: %w", err)
		}
		l.logger.Info("storage root ready", "root", l.root)
		return nil
	})

	return nil
}

func (l *local) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	path := l.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, localTempPrefix+"*")
	if err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: reader}); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("upload blob %s: %w", key, err)
	}

	return nil
}

func (l *local) Download(ctx context.Context, key string) (*BlobResult, error) {
	meta, err := l.Find(ctx, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(l.path(key))
	if err != nil {
		return nil, l.mapError(key, err)
	}

	return &BlobResult{BlobMeta: *meta, Body: f}, nil
}

func (l *local) Find(ctx context.Context, key string) (*BlobMeta, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	info, err := os.Stat(l.path(key))
	if err != nil {
		return nil, l.mapError(key, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	return l.meta(key, info), nil
}

func (l *local) List(ctx context.Context, prefix, marker string, maxResults int32) (*BlobList, error) {
	var keys []string

	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), localTempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) && key > marker {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	slices.Sort(keys)

	result := &BlobList{Blobs: []BlobMeta{}}
	for _, key := range keys {
		if int32(len(result.Blobs)) == maxResults {
			result.NextMarker = result.Blobs[len(result.Blobs)-1].Key
			break
		}

		info, err := os.Stat(l.path(key))
		if err != nil {
			continue
		}
		result.Blobs = append(result.Blobs, *l.meta(key, info))
	}

	return result, nil
}

func (l *local) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := os.Remove(l.path(key)); err != nil {
		return l.mapError(key, err)
	}

	return nil
}

func (l *local) Exists(ctx context.Context, key string) (bool, error) {
	_, err := l.Find(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *local) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *local) meta(key string, info fs.FileInfo) *BlobMeta {
	ext := strings.ToLower(filepath.Ext(key))
	contentType, ok := contentTypes[ext]
	if !ok {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &BlobMeta{
		Key:           key,
		ContentType:   contentType,
		ContentLength: info.Size(),
		LastModified:  info.ModTime().UTC(),
	}
}

func (l *local) mapError(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return fmt.Errorf("blob %s: %w", key, err)
}

// contextReader stops a copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
