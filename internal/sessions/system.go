package sessions

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/panscan/pkg/pagination"
)

// System defines the public contract for bulk scan sessions.
type System interface {
	Handler() *Handler

	// Create validates the folder and records the CSV files it directly contains.
	Create(ctx context.Context, cmd CreateCommand) (*Session, error)
	List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[Session], error)
	Find(ctx context.Context, id uuid.UUID) (*Detail, error)

	// ProcessFile classifies one file of the session with a freshly loaded rule table.
	ProcessFile(ctx context.Context, id uuid.UUID, cmd ProcessCommand) (*FileResult, error)
	// Run classifies every file of the session with bounded parallelism and one shared rule table.
	// Per-file failures are recorded in the returned detail rather than aborting the run.
	Run(ctx context.Context, id uuid.UUID) (*Detail, error)

	// Download returns a stream of the reviewed copy of file. The caller must close the stream.
	Download(ctx context.Context, id uuid.UUID, file string) (*FileResult, io.ReadCloser, error)
	// Archive writes a zip of every reviewed file of the session to w.
	Archive(ctx context.Context, id uuid.UUID, w io.Writer) error
	Delete(ctx context.Context, id uuid.UUID) error
}
