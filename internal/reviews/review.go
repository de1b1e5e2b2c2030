// Package reviews implements single-file review: an uploaded scan CSV is
// classified against the rule table and the annotated copy is published for download.
package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/panscan/pkg/scan"
)

// Review describes one classified upload and its published output.
type Review struct {
	ID         uuid.UUID  `json:"id"`
	Source     string     `json:"source"`
	Filename   string     `json:"filename"`
	StorageKey string     `json:"storage_key"`
	SizeBytes  int64      `json:"size_bytes"`
	Rules      int        `json:"rules"`
	Stats      scan.Stats `json:"stats"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateCommand carries an uploaded CSV that has already been spooled to disk.
type CreateCommand struct {
	Filename string
	Path     string
}
