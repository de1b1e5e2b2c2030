package reviews

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JaimeStill/panscan/pkg/scan"
	"github.com/JaimeStill/panscan/pkg/upload"
)

// Domain errors for review operations.
var (
	ErrNotFound     = errors.New("review not found")
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	ErrInvalidFile  = errors.New("invalid file")
	ErrInvalidID    = errors.New("invalid review id")
)

// MapHTTPStatus maps review domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, ErrInvalidFile) || errors.Is(err, ErrInvalidID) {
		return http.StatusBadRequest
	}
	if errors.Is(err, scan.ErrMalformedSource) || errors.Is(err, scan.ErrMissingHeader) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// uploadError maps a spooling failure onto the review upload errors.
// Server-side failures pass through unchanged.
func uploadError(err error) error {
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return ErrFileTooLarge
	case upload.IsClientError(err):
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return err
}
