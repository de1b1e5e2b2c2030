package sessions

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/panscan/pkg/handlers"
	"github.com/JaimeStill/panscan/pkg/scan"
)

// Domain errors for session operations.
var (
	ErrNotFound         = errors.New("session not found")
	ErrInvalidID        = errors.New("invalid session id")
	ErrInvalidFolder    = errors.New("invalid folder")
	ErrFileNotInSession = errors.New("file is not part of the session")
	ErrSourceNotFound   = errors.New("source file not found")
	ErrNotReviewed      = errors.New("file has not been reviewed")
	ErrNothingToArchive = errors.New("no reviewed files in session")
)

// MapHTTPStatus maps session domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrFileNotInSession),
		errors.Is(err, ErrSourceNotFound),
		errors.Is(err, ErrNotReviewed),
		errors.Is(err, ErrNothingToArchive):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidFolder),
		errors.Is(err, handlers.ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, scan.ErrMalformedSource), errors.Is(err, scan.ErrMissingHeader):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
