// Package splits partitions oversized scan CSVs into bounded-size parts that
// can be downloaded individually or as one archive.
package splits

import (
	"time"

	"github.com/google/uuid"
)

// Split reports the outcome of a split request. When Split is false the input
// was at or under the threshold, nothing was stored, and ID is the zero UUID.
type Split struct {
	ID        uuid.UUID `json:"id"`
	Split     bool      `json:"split"`
	Source    string    `json:"source"`
	TotalRows int       `json:"total_rows"`
	Threshold int       `json:"threshold"`
	ChunkSize int       `json:"chunk_size,omitempty"`
	Message   string    `json:"message"`
	Parts     []Part    `json:"parts,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Part is one published partition.
type Part struct {
	Number      int    `json:"number"`
	Filename    string `json:"filename"`
	DisplayName string `json:"display_name"`
	Rows        int    `json:"rows"`
	SizeBytes   int64  `json:"size_bytes"`
	StorageKey  string `json:"storage_key"`
}

// CreateCommand carries an uploaded CSV that has already been spooled to disk.
type CreateCommand struct {
	Filename string
	Path     string
}

// PartByNumber returns the part with the given 1-based number.
func (s *Split) PartByNumber(number int) (*Part, bool) {
	for i := range s.Parts {
		if s.Parts[i].Number == number {
			return &s.Parts[i], true
		}
	}
	return nil, false
}
