package reviews

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
	"github.com/JaimeStill/panscan/pkg/scan"
	"github.com/JaimeStill/panscan/pkg/storage"
)

type repo struct {
	storage storage.System
	logger  *slog.Logger
	scan    config.ScanConfig
}

// New creates a review repository implementing the System interface.
// The rule table is loaded from cfg.RulesPath on every Create.
func New(store storage.System, logger *slog.Logger, cfg config.ScanConfig) System {
	return &repo{
		storage: store,
		logger:  logger.With("system", "reviews"),
		scan:    cfg,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, maxUploadSize, r.scan.UploadDir)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Review, error) {
	table, err := scan.LoadRules(r.scan.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	src, err := os.Open(cmd.Path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	id := uuid.New()
	name := artifacts.ReviewedName(cmd.Filename)
	key := outputKey(id, name)

	stats, size, err := artifacts.Review(ctx, r.storage, r.scan.UploadDir, src, table, key)
	if err != nil {
		return nil, fmt.Errorf("review %s: %w", cmd.Filename, err)
	}

	review := Review{
		ID:         id,
		Source:     cmd.Filename,
		Filename:   name,
		StorageKey: key,
		SizeBytes:  size,
		Rules:      table.Len(),
		Stats:      stats,
		CreatedAt:  time.Now().UTC(),
	}

	if err := storage.WriteJSON(ctx, r.storage, manifestKey(id), review); err != nil {
		artifacts.Retract(ctx, r.storage, r.logger, key)
		return nil, fmt.Errorf("write review manifest: %w", err)
	}

	r.logger.Info(
		"review complete",
		"id", id,
		"source", cmd.Filename,
		"true_positive", stats.TruePositive,
		"false_positive", stats.FalsePositive,
		"not_found", stats.NotFound,
		"total", stats.Total,
	)
	return &review, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Review, error) {
	var review Review
	if err := storage.ReadJSON(ctx, r.storage, manifestKey(id), &review); err != nil {
		return nil, mapStorageError(err)
	}
	return &review, nil
}

func (r *repo) Download(ctx context.Context, id uuid.UUID) (*Review, io.ReadCloser, error) {
	review, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	blob, err := r.storage.Download(ctx, review.StorageKey)
	if err != nil {
		return nil, nil, mapStorageError(err)
	}
	return review, blob.Body, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.Find(ctx, id); err != nil {
		return err
	}

	n, err := storage.DeletePrefix(ctx, r.storage, prefix(id))
	if err != nil {
		return fmt.Errorf("delete review %s: %w", id, err)
	}

	r.logger.Info("review deleted", "id", id, "blobs", n)
	return nil
}

func mapStorageError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func prefix(id uuid.UUID) string {
	return fmt.Sprintf("reviews/%s/", id)
}

func manifestKey(id uuid.UUID) string {
	return prefix(id) + "review.json"
}

func outputKey(id uuid.UUID, name string) string {
	return prefix(id) + name
}
