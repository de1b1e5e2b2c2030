package splits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/panscan/internal/artifacts"
	"github.com/JaimeStill/panscan/internal/config"
	"github.com/JaimeStill/panscan/pkg/bundle"
	"github.com/JaimeStill/panscan/pkg/formatting"
	"github.com/JaimeStill/panscan/pkg/scan"
	"github.com/JaimeStill/panscan/pkg/storage"
)

type repo struct {
	storage storage.System
	logger  *slog.Logger
	scan    config.ScanConfig
}

// New creates a split repository implementing the System interface.
func New(store storage.System, logger *slog.Logger, cfg config.ScanConfig) System {
	return &repo{
		storage: store,
		logger:  logger.With("system", "splits"),
		scan:    cfg,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, maxUploadSize, r.scan.UploadDir)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Split, error) {
	rows, err := countRows(cmd.Path)
	if err != nil {
		return nil, fmt.Errorf("count rows of %s: %w", cmd.Filename, err)
	}

	result := Split{
		Source:    cmd.Filename,
		TotalRows: rows,
		Threshold: r.scan.SplitThreshold,
		CreatedAt: time.Now().UTC(),
	}

	if rows <= r.scan.SplitThreshold {
		result.Message = fmt.Sprintf(
			"File has %s. No splitting needed (threshold: %s rows).",
			formatting.Rows(rows),
			formatting.Count(r.scan.SplitThreshold),
		)
		r.logger.Info("split not needed", "source", cmd.Filename, "rows", rows)
		return &result, nil
	}

	id := uuid.New()
	parts, err := r.split(ctx, id, cmd)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", cmd.Filename, err)
	}

	result.ID = id
	result.Split = true
	result.ChunkSize = r.scan.ChunkSize
	result.Parts = parts
	result.Message = fmt.Sprintf(
		"Split %s into %d files of at most %s rows.",
		formatting.Rows(rows),
		len(parts),
		formatting.Count(r.scan.ChunkSize),
	)

	if err := storage.WriteJSON(ctx, r.storage, manifestKey(id), result); err != nil {
		artifacts.Retract(ctx, r.storage, r.logger, partKeys(parts)...)
		return nil, fmt.Errorf("write split manifest: %w", err)
	}

	r.logger.Info("split complete", "id", id, "source", cmd.Filename, "rows", rows, "parts", len(parts))
	return &result, nil
}

// split partitions the upload into temporary files, then publishes them in
// order. A failed publish retracts the parts already published.
func (r *repo) split(ctx context.Context, id uuid.UUID, cmd CreateCommand) ([]Part, error) {
	src, err := os.Open(cmd.Path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	var sealed []string
	defer func() {
		for _, f := range sealed {
			os.Remove(f)
		}
	}()

	open := func(number int) (scan.PartitionWriter, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.CreateTemp(r.scan.UploadDir, fmt.Sprintf("part-%d-*.csv", number))
		if err != nil {
			return nil, err
		}
		sealed = append(sealed, f.Name())
		return scan.NewCSVWriteCloser(f), nil
	}

	partitions, err := scan.Split(
		scan.NewCSVReader(artifacts.NewContextReader(ctx, src)),
		r.scan.ChunkSize,
		open,
	)
	if err != nil {
		return nil, err
	}

	parts := make([]Part, 0, len(partitions))
	for i, p := range partitions {
		name := artifacts.PartName(p.Number, cmd.Filename)
		key := prefix(id) + name

		size, err := artifacts.Publish(ctx, r.storage, sealed[i], key)
		if err != nil {
			artifacts.Retract(ctx, r.storage, r.logger, partKeys(parts)...)
			return nil, err
		}

		parts = append(parts, Part{
			Number:      p.Number,
			Filename:    name,
			DisplayName: fmt.Sprintf("Part %d", p.Number),
			Rows:        p.Rows,
			SizeBytes:   size,
			StorageKey:  key,
		})
	}
	return parts, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Split, error) {
	var s Split
	if err := storage.ReadJSON(ctx, r.storage, manifestKey(id), &s); err != nil {
		return nil, mapStorageError(err)
	}
	return &s, nil
}

func (r *repo) DownloadPart(ctx context.Context, id uuid.UUID, number int) (*Part, io.ReadCloser, error) {
	s, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	part, ok := s.PartByNumber(number)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrPartNotFound, number)
	}

	blob, err := r.storage.Download(ctx, part.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %d", ErrPartNotFound, number)
		}
		return nil, nil, err
	}
	return part, blob.Body, nil
}

func (r *repo) Archive(ctx context.Context, id uuid.UUID, w io.Writer) error {
	s, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	entries := make([]bundle.Entry, len(s.Parts))
	for i, p := range s.Parts {
		entries[i] = bundle.Entry{Key: p.StorageKey, Name: p.Filename}
	}

	if err := bundle.Write(ctx, w, r.storage, entries); err != nil {
		return fmt.Errorf("archive split %s: %w", id, err)
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.Find(ctx, id); err != nil {
		return err
	}

	n, err := storage.DeletePrefix(ctx, r.storage, prefix(id))
	if err != nil {
		return fmt.Errorf("delete split %s: %w", id, err)
	}

	r.logger.Info("split deleted", "id", id, "blobs", n)
	return nil
}

// ArchiveName returns the download name of the zip of every part of split id.
func ArchiveName(id uuid.UUID) string {
	return fmt.Sprintf("Split_CSV_Files_%s.zip", id)
}

func countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return scan.CountRows(f)
}

func partKeys(parts []Part) []string {
	keys := make([]string, len(parts))
	for i, p := range parts {
		keys[i] = p.StorageKey
	}
	return keys
}

func mapStorageError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func prefix(id uuid.UUID) string {
	return fmt.Sprintf("splits/%s/", id)
}

func manifestKey(id uuid.UUID) string {
	return prefix(id) + "split.json"
}
