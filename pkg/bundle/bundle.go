// Package bundle packages stored scan artifacts into a single zip archive.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/JaimeStill/panscan/pkg/storage"
)

// ErrEmpty indicates a bundle request with no entries.
var ErrEmpty = errors.New("bundle has no entries")

// Entry names a stored blob and the file name it takes inside the archive.
// An empty Name uses the last segment of Key.
type Entry struct {
	Key  string
	Name string
}

func (e Entry) name() string {
	if e.Name != "" {
		return e.Name
	}
	return path.Base(e.Key)
}

// Write streams a zip archive of entries to w, reading each blob from store
// in order. Entries are deflated; ctx cancellation stops between and within entries.
func Write(ctx context.Context, w io.Writer, store storage.System, entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmpty
	}

	zw := zip.NewWriter(w)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addEntry(ctx, zw, store, e); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func addEntry(ctx context.Context, zw *zip.Writer, store storage.System, e Entry) error {
	blob, err := store.Download(ctx, e.Key)
	if err != nil {
		return fmt.Errorf("bundle entry %s: %w", e.Key, err)
	}
	defer blob.Body.Close()

	modified := blob.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}

	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     e.name(),
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("bundle entry %s: %w", e.Key, err)
	}

	if _, err := io.Copy(fw, blob.Body); err != nil {
		return fmt.Errorf("bundle entry %s: %w", e.Key, err)
	}
	return nil
}
