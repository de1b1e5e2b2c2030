package splits

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JaimeStill/panscan/pkg/scan"
	"github.com/JaimeStill/panscan/pkg/upload"
)

// Domain errors for split operations.
var (
	ErrNotFound     = errors.New("split not found")
	ErrPartNotFound = errors.New("split part not found")
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	ErrInvalidFile  = errors.New("invalid file")
	ErrInvalidID    = errors.New("invalid split id")
	ErrInvalidPart  = errors.New("invalid part number")
)

// MapHTTPStatus maps split domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPartNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidFile), errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidPart):
		return http.StatusBadRequest
	case errors.Is(err, scan.ErrMalformedSource), errors.Is(err, scan.ErrMissingHeader):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return ErrFileTooLarge
	case upload.IsClientError(err):
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return err
}
