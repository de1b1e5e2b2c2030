// Package upload spools a single multipart file field to disk without
// buffering the request body in memory.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strings"
)

var (
	ErrMissingFile   = errors.New("no file selected")
	ErrNotCSV        = errors.New("invalid file type: upload a CSV file")
	ErrTooLarge      = errors.New("file exceeds maximum upload size")
	ErrMalformedForm = errors.New("malformed multipart form")
)

// File is an upload spooled to Path. Name is the client filename reduced to its
// final path element.
type File struct {
	Name string
	Path string
	Size int64
}

// Open opens the spooled file for reading.
func (f *File) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// Remove deletes the spooled file. A file that is already gone is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// IsClientError reports whether err was caused by the request rather than the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingFile) ||
		errors.Is(err, ErrNotCSV) ||
		errors.Is(err, ErrTooLarge) ||
		errors.Is(err, ErrMalformedForm)
}

// IsCSV reports whether name carries a .csv extension, ignoring case.
func IsCSV(name string) bool {
	return strings.EqualFold(path.Ext(name), ".csv")
}

// Receive streams the CSV file in the multipart field named field into a
// temporary file under dir. The request body is capped at maxBytes. Other
// form parts are skipped. The caller owns the returned file and must Remove it.
func Receive(w http.ResponseWriter, r *http.Request, field string, maxBytes int64, dir string) (*File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedForm, err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingFile
		}
		if err != nil {
			return nil, classify(err)
		}

		if part.FormName() != field {
			part.Close()
			continue
		}

		f, err := spool(part, dir)
		part.Close()
		return f, err
	}
}

func spool(part *multipart.Part, dir string) (*File, error) {
	name := SanitizeFilename(part.FileName())
	if name == "" {
		return nil, ErrMissingFile
	}
	if !IsCSV(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotCSV, name)
	}

	tmp, err := os.CreateTemp(dir, "upload-*.csv")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}

	size, err := io.Copy(tmp, part)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, classify(err)
	}

	return &File{Name: name, Path: tmp.Name(), Size: size}, nil
}

// SanitizeFilename strips any client-supplied directory components from name.
// Returns "" when nothing usable remains.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}

func classify(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxErr.Limit)
	}
	return fmt.Errorf("%w: %w", ErrMalformedForm, err)
}
