// Package sessions implements bulk folder scanning. A session records the CSV
// files discovered in a server-side folder; each file is then classified on its
// own or all at once, and per-file results accumulate in a summary.
package sessions

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/panscan/pkg/scan"
)

// File processing states.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Session is a bulk scan over the CSV files found in FolderPath when it was created.
type Session struct {
	ID         uuid.UUID `json:"id"`
	FolderPath string    `json:"folder_path"`
	Files      []string  `json:"files"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileResult is the outcome of classifying one file of a session.
type FileResult struct {
	File       string     `json:"file"`
	Status     string     `json:"status"`
	Stats      scan.Stats `json:"stats"`
	Output     string     `json:"output,omitempty"`
	StorageKey string     `json:"storage_key,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Detail is a session with the current result of every file and the merged total
// of all completed files.
type Detail struct {
	Session
	Results   []FileResult `json:"results"`
	Total     scan.Stats   `json:"total"`
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
}

// Completed returns the results that produced a reviewed file.
func (d *Detail) Completed() []FileResult {
	var done []FileResult
	for _, r := range d.Results {
		if r.Status == StatusComplete {
			done = append(done, r)
		}
	}
	return done
}

// CreateCommand names the server-side folder to scan.
type CreateCommand struct {
	FolderPath string `json:"folder_path" validate:"required"`
}

// ProcessCommand names one file of a session to classify.
type ProcessCommand struct {
	FileName string `json:"file_name" validate:"required"`
}

func newDetail(s Session, recorded []FileResult) *Detail {
	byFile := make(map[string]FileResult, len(recorded))
	for _, r := range recorded {
		byFile[r.File] = r
	}

	d := &Detail{Session: s, Results: make([]FileResult, 0, len(s.Files))}
	var completed []scan.Stats

	for _, f := range s.Files {
		r, ok := byFile[f]
		if !ok {
			r = FileResult{File: f, Status: StatusPending}
		}

		switch r.Status {
		case StatusComplete:
			d.Processed++
			completed = append(completed, r.Stats)
		case StatusFailed:
			d.Processed++
			d.Failed++
		}
		d.Results = append(d.Results, r)
	}

	d.Total = scan.Merge(completed...)
	return d
}
