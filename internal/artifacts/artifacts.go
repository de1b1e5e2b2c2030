// Package artifacts produces the CSV files derived from a scan input and
// publishes them to blob storage. A file is published only after it has been
// written completely.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/JaimeStill/panscan/pkg/scan"
	"github.com/JaimeStill/panscan/pkg/storage"
)

// ContentTypeCSV is the content type of every published CSV artifact.
const ContentTypeCSV = "text/csv"

// ReviewedName returns the download name of the classified copy of name.
func ReviewedName(name string) string {
	return "Reviewed_" + name
}

// PartName returns the download name of partition number of source.
func PartName(number int, source string) string {
	base := strings.TrimSuffix(source, path.Ext(source))
	return fmt.Sprintf("Split_%d_%s.csv", number, base)
}

// Review classifies src against table into a temporary file under dir, then
// publishes the result at key. Nothing is published when classification fails.
// Returns the statistics and the published size in bytes.
func Review(
	ctx context.Context,
	store storage.System,
	dir string,
	src io.Reader,
	table scan.RuleTable,
	key string,
) (scan.Stats, int64, error) {
	tmp, err := os.CreateTemp(dir, "reviewed-*.csv")
	if err != nil {
		return scan.Stats{}, 0, fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	stats, err := scan.Run(
		scan.NewCSVReader(NewContextReader(ctx, src)),
		scan.NewCSVWriter(tmp),
		table,
	)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close output file: %w", closeErr)
	}
	if err != nil {
		return stats, 0, err
	}

	size, err := Publish(ctx, store, tmp.Name(), key)
	if err != nil {
		return stats, 0, err
	}
	return stats, size, nil
}

// Publish uploads the local file at filePath to key and returns its size.
func Publish(ctx context.Context, store storage.System, filePath, key string) (int64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", filePath, err)
	}

	if err := store.Upload(ctx, key, f, ContentTypeCSV); err != nil {
		return 0, fmt.Errorf("publish %s: %w", key, err)
	}
	return info.Size(), nil
}

// Retract deletes keys that were published before a later step failed.
// Failures are logged and otherwise ignored.
func Retract(ctx context.Context, store storage.System, logger *slog.Logger, keys ...string) {
	for _, key := range keys {
		err := store.Delete(context.WithoutCancel(ctx), key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("compensating blob delete failed", "key", key, "error", err)
		}
	}
}

// NewContextReader returns a reader over r that fails with ctx's error once
// ctx is done.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return contextReader{ctx: ctx, r: r}
}

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
