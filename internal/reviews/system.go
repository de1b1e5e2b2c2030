package reviews

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// System defines the public contract for review operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	Create(ctx context.Context, cmd CreateCommand) (*Review, error)
	Find(ctx context.Context, id uuid.UUID) (*Review, error)
	// Download returns the review and a stream of its annotated CSV. The caller must close the stream.
	Download(ctx context.Context, id uuid.UUID) (*Review, io.ReadCloser, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
