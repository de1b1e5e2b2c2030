// Package storage provides blob storage operations for published scan artifacts
// with local filesystem, Azure Blob Storage, and S3-compatible implementations.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/panscan/pkg/lifecycle"
)

// MaxListCap is the upper bound on blobs returned by a single List call.
const MaxListCap int32 = 5000

// System manages blob storage operations and lifecycle coordination.
type System interface {
	// Start registers a startup hook that prepares the backing container.
	Start(lc *lifecycle.Coordinator) error
	// Upload streams data to a blob at the given key with the specified content type.
	// The blob becomes visible only after the stream has been fully written.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download returns a stream for the blob at the given key. The caller must close the body.
	// Returns ErrNotFound if the blob does not exist.
	Download(ctx context.Context, key string) (*BlobResult, error)
	// Find returns blob metadata. Returns ErrNotFound if the blob does not exist.
	Find(ctx context.Context, key string) (*BlobMeta, error)
	// List returns up to maxResults blobs whose keys start with prefix, ordered by key,
	// beginning after marker.
	List(ctx context.Context, prefix, marker string, maxResults int32) (*BlobList, error)
	// Delete removes the blob at the given key. Returns ErrNotFound if the blob does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a blob exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

// BlobMeta describes a stored blob.
type BlobMeta struct {
	Key           string    `json:"key"`
	ContentType   string    `json:"content_type"`
	ContentLength int64     `json:"content_length"`
	LastModified  time.Time `json:"last_modified"`
}

// BlobList is one page of a List call. NextMarker is empty on the last page.
type BlobList struct {
	Blobs      []BlobMeta `json:"blobs"`
	NextMarker string     `json:"next_marker,omitempty"`
}

// BlobResult pairs blob metadata with its content stream.
type BlobResult struct {
	BlobMeta
	Body io.ReadCloser
}

// New creates the storage system selected by cfg.Provider.
// Clients are configured but no connection is made until Start is called.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	switch cfg.Provider {
	case ProviderLocal:
		return newLocal(cfg, logger)
	case ProviderAzure:
		return newAzure(cfg, logger)
	case ProviderS3:
		return newS3(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider: %q", cfg.Provider)
	}
}

// ParseMaxResults parses a max_results query value. An empty value returns fallback;
// values above MaxListCap are clamped.
func ParseMaxResults(s string, fallback int32) (int32, error) {
	if s == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid max_results: %w", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("max_results must be positive")
	}

	return int32(min(n, int(MaxListCap))), nil
}

// DeletePrefix removes every blob whose key starts with prefix and returns the
// number removed. An empty prefix is rejected.
func DeletePrefix(ctx context.Context, sys System, prefix string) (int, error) {
	if err := validateKey(prefix); err != nil {
		return 0, err
	}

	deleted := 0
	for {
		page, err := sys.List(ctx, prefix, "", MaxListCap)
		if err != nil {
			return deleted, err
		}
		if len(page.Blobs) == 0 {
			return deleted, nil
		}

		for _, b := range page.Blobs {
			if err := sys.Delete(ctx, b.Key); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
