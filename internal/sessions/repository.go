package sessions

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/panscan/internal/artifacts"
	"github.com/JaimeStill/panscan/internal/config"
	"github.com/JaimeStill/panscan/pkg/bundle"
	"github.com/JaimeStill/panscan/pkg/pagination"
	"github.com/JaimeStill/panscan/pkg/scan"
	"github.com/JaimeStill/panscan/pkg/storage"
	"github.com/JaimeStill/panscan/pkg/upload"
)

type repo struct {
	storage    storage.System
	logger     *slog.Logger
	scan       config.ScanConfig
	pagination pagination.Config

	// summaryMu serializes summary.csv read-modify-write cycles.
	summaryMu sync.Mutex
}

// New creates a session repository implementing the System interface.
func New(
	store storage.System,
	logger *slog.Logger,
	cfg config.ScanConfig,
	pagination pagination.Config,
) System {
	return &repo{
		storage:    store,
		logger:     logger.With("system", "sessions"),
		scan:       cfg,
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Session, error) {
	folder := filepath.Clean(strings.TrimSpace(cmd.FolderPath))

	files, err := discover(folder)
	if err != nil {
		return nil, err
	}

	s := Session{
		ID:         uuid.New(),
		FolderPath: folder,
		Files:      files,
		CreatedAt:  time.Now().UTC(),
	}

	if err := storage.WriteJSON(ctx, r.storage, manifestKey(s.ID), s); err != nil {
		return nil, fmt.Errorf("write session manifest: %w", err)
	}

	r.logger.Info("session created", "id", s.ID, "folder", folder, "files", len(files))
	return &s, nil
}

// discover lists the CSV files directly inside folder, ignoring subdirectories.
func discover(folder string) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: folder path does not exist", ErrInvalidFolder)
		}
		return nil, fmt.Errorf("stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: path is not a directory", ErrInvalidFolder)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && upload.IsCSV(e.Name()) {
			files = append(files, e.Name())
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no CSV files found in the specified folder", ErrInvalidFolder)
	}
	return files, nil
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[Session], error) {
	page.Normalize(r.pagination)

	blobs, err := storage.ListAll(ctx, r.storage, "sessions/")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var search string
	if page.Search != nil {
		search = strings.ToLower(*page.Search)
	}

	var sessions []Session
	for _, b := range blobs {
		if !strings.HasSuffix(b.Key, "/session.json") {
			continue
		}

		var s Session
		if err := storage.ReadJSON(ctx, r.storage, b.Key, &s); err != nil {
			r.logger.Warn("unreadable session manifest", "key", b.Key, "error", err)
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.FolderPath), search) {
			continue
		}
		sessions = append(sessions, s)
	}

	slices.SortFunc(sessions, func(a, b Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	result := pagination.Slice(sessions, page)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Detail, error) {
	s, err := r.session(ctx, id)
	if err != nil {
		return nil, err
	}

	recorded, err := r.summary(ctx, id)
	if err != nil {
		return nil, err
	}
	return newDetail(*s, recorded), nil
}

func (r *repo) ProcessFile(ctx context.Context, id uuid.UUID, cmd ProcessCommand) (*FileResult, error) {
	s, err := r.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(s.Files, cmd.FileName) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotInSession, cmd.FileName)
	}

	table, err := scan.LoadRules(r.scan.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	res, procErr := r.process(ctx, s, cmd.FileName, table)
	if err := r.record(ctx, id, res); err != nil {
		return nil, err
	}
	if procErr != nil {
		return nil, procErr
	}
	return &res, nil
}

func (r *repo) Run(ctx context.Context, id uuid.UUID) (*Detail, error) {
	s, err := r.session(ctx, id)
	if err != nil {
		return nil, err
	}

	table, err := scan.LoadRules(r.scan.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.scan.BulkConcurrency)

	for _, file := range s.Files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.process(gctx, s, file, table)
			if err != nil {
				r.logger.Warn("file review failed", "id", id, "file", file, "error", err)
			}
			return r.record(gctx, id, res)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run session %s: %w", id, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run session %s: %w", id, err)
	}

	d, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"session run complete",
		"id", id,
		"files", len(s.Files),
		"failed", d.Failed,
		"total", d.Total.Total,
		"duration", time.Since(start),
	)
	return d, nil
}

// process classifies one file and publishes its reviewed copy. The returned
// result describes the outcome either way.
func (r *repo) process(ctx context.Context, s *Session, file string, table scan.RuleTable) (FileResult, error) {
	res := FileResult{File: file}

	fail := func(err error) (FileResult, error) {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res, fmt.Errorf("review %s: %w", file, err)
	}

	src, err := os.Open(filepath.Join(s.FolderPath, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fail(ErrSourceNotFound)
		}
		return fail(err)
	}
	defer src.Close()

	name := artifacts.ReviewedName(file)
	key := prefix(s.ID) + name

	stats, _, err := artifacts.Review(ctx, r.storage, r.scan.UploadDir, src, table, key)
	if err != nil {
		return fail(err)
	}

	res.Status = StatusComplete
	res.Stats = stats
	res.Output = name
	res.StorageKey = key

	r.logger.Info(
		"file reviewed",
		"id", s.ID,
		"file", file,
		"true_positive", stats.TruePositive,
		"false_positive", stats.FalsePositive,
		"not_found", stats.NotFound,
		"total", stats.Total,
	)
	return res, nil
}

// record merges res into the persisted summary, replacing any earlier result
// for the same file. Recording ignores cancellation of ctx.
func (r *repo) record(ctx context.Context, id uuid.UUID, res FileResult) error {
	ctx = context.WithoutCancel(ctx)

	r.summaryMu.Lock()
	defer r.summaryMu.Unlock()

	results, err := r.summary(ctx, id)
	if err != nil {
		return err
	}

	i := slices.IndexFunc(results, func(x FileResult) bool { return x.File == res.File })
	if i >= 0 {
		results[i] = res
	} else {
		results = append(results, res)
	}
	slices.SortFunc(results, func(a, b FileResult) int { return cmp.Compare(a.File, b.File) })

	var buf bytes.Buffer
	if err := writeSummary(&buf, results); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := r.storage.Upload(ctx, summaryKey(id), &buf, artifacts.ContentTypeCSV); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func (r *repo) Download(ctx context.Context, id uuid.UUID, file string) (*FileResult, io.ReadCloser, error) {
	d, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	i := slices.IndexFunc(d.Results, func(x FileResult) bool { return x.File == file })
	if i < 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrFileNotInSession, file)
	}
	res := d.Results[i]
	if res.Status != StatusComplete {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotReviewed, file)
	}

	blob, err := r.storage.Download(ctx, res.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotReviewed, file)
		}
		return nil, nil, err
	}
	return &res, blob.Body, nil
}

func (r *repo) Archive(ctx context.Context, id uuid.UUID, w io.Writer) error {
	d, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	done := d.Completed()
	if len(done) == 0 {
		return ErrNothingToArchive
	}

	entries := make([]bundle.Entry, len(done))
	for i, res := range done {
		entries[i] = bundle.Entry{Key: res.StorageKey, Name: res.Output}
	}

	if err := bundle.Write(ctx, w, r.storage, entries); err != nil {
		return fmt.Errorf("archive session %s: %w", id, err)
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.session(ctx, id); err != nil {
		return err
	}

	n, err := storage.DeletePrefix(ctx, r.storage, prefix(id))
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	r.logger.Info("session deleted", "id", id, "blobs", n)
	return nil
}

func (r *repo) session(ctx context.Context, id uuid.UUID) (*Session, error) {
	var s Session
	if err := storage.ReadJSON(ctx, r.storage, manifestKey(id), &s); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// summary loads the recorded results of session id. A session with no
// processed files has no summary yet.
func (r *repo) summary(ctx context.Context, id uuid.UUID) ([]FileResult, error) {
	blob, err := r.storage.Download(ctx, summaryKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read summary: %w", err)
	}
	defer blob.Body.Close()

	results, err := readSummary(blob.Body)
	if err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].Status == StatusComplete {
			results[i].Output = artifacts.ReviewedName(results[i].File)
			results[i].StorageKey = prefix(id) + results[i].Output
		}
	}
	return results, nil
}

// ArchiveName returns the download name of the zip of every reviewed file of session id.
func ArchiveName(id uuid.UUID) string {
	return fmt.Sprintf("BulkScan_Results_%s.zip", id)
}

func prefix(id uuid.UUID) string {
	return fmt.Sprintf("sessions/%s/", id)
}

func manifestKey(id uuid.UUID) string {
	return prefix(id) + "session.json"
}

func summaryKey(id uuid.UUID) string {
	return prefix(id) + "summary.csv"
}
