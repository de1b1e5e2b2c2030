package splits

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// System defines the public contract for split operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	// Create counts the rows of the upload and splits it when the count exceeds
	// the configured threshold.
	Create(ctx context.Context, cmd CreateCommand) (*Split, error)
	Find(ctx context.Context, id uuid.UUID) (*Split, error)
	// DownloadPart returns the part and a stream of its content. The caller must close the stream.
	DownloadPart(ctx context.Context, id uuid.UUID, number int) (*Part, io.ReadCloser, error)
	// Archive writes a zip of every part of the split to w.
	Archive(ctx context.Context, id uuid.UUID, w io.Writer) error
	Delete(ctx context.Context, id uuid.UUID) error
}
