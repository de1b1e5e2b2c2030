package scan

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader yields the records of one tabular stream. Read returns io.EOF once the
// stream is exhausted.
type Reader interface {
	Schema() (*Schema, error)
	Read() (Record, error)
}

// Writer receives a header followed by records.
type Writer interface {
	WriteHeader(columns []string) error
	Write(rec Record) error
	Flush() error
}

// PartitionWriter is a Writer owning an underlying resource released by Close.
type PartitionWriter interface {
	Writer
	Close() error
}

// CSVReader reads comma-separated records with a header row.
// A leading UTF-8 byte order mark is skipped.
type CSVReader struct {
	csv    *csv.Reader
	schema *Schema
	err    error
}

// NewCSVReader creates a CSVReader over r.
func NewCSVReader(r io.Reader) *CSVReader {
	cr := csv.NewReader(skipBOM(r))
	cr.LazyQuotes = true
	return &CSVReader{csv: cr}
}

// Schema reads the header row on first call and returns the discovered schema.
// Returns ErrMissingHeader when the stream is empty.
func (r *CSVReader) Schema() (*Schema, error) {
	if r.schema != nil || r.err != nil {
		return r.schema, r.err
	}

	header, err := r.csv.Read()
	switch {
	case errors.Is(err, io.EOF):
		r.err = ErrMissingHeader
	case err != nil:
		r.err = fmt.Errorf("%w: header: %w", ErrMalformedSource, err)
	default:
		r.schema = NewSchema(header)
	}
	return r.schema, r.err
}

// Read returns the next record. Rows whose width differs from the header fail
// with ErrMalformedSource.
func (r *CSVReader) Read() (Record, error) {
	schema, err := r.Schema()
	if err != nil {
		return Record{}, err
	}

	values, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("%w: %w", ErrMalformedSource, err)
	}
	return NewRecord(schema, values), nil
}

// CSVWriter writes records as CRLF-terminated comma-separated lines. A field
// is quoted only when it contains a comma, a double quote, or a line break.
// Field bytes are written unchanged, including carriage returns and newlines
// inside quoted fields.
type CSVWriter struct {
	w *bufio.Writer
}

// NewCSVWriter creates a CSVWriter over w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: bufio.NewWriter(w)}
}

func (w *CSVWriter) WriteHeader(columns []string) error {
	return w.writeRow(columns)
}

func (w *CSVWriter) Write(rec Record) error {
	return w.writeRow(rec.Values())
}

func (w *CSVWriter) Flush() error {
	return w.w.Flush()
}

// writeRow relies on bufio.Writer keeping the first write error, so only the
// terminator's result is checked.
func (w *CSVWriter) writeRow(fields []string) error {
	for i, field := range fields {
		if i > 0 {
			w.w.WriteByte(',')
		}
		// a lone empty field is quoted so the row is not read back as blank
		if needsQuotes(field) || (field == "" && len(fields) == 1) {
			w.w.WriteByte('"')
			w.w.WriteString(strings.ReplaceAll(field, `"`, `""`))
			w.w.WriteByte('"')
			continue
		}
		w.w.WriteString(field)
	}
	_, err := w.w.WriteString("\r\n")
	return err
}

func needsQuotes(field string) bool {
	return strings.ContainsAny(field, ",\"\r\n")
}

type csvWriteCloser struct {
	*CSVWriter
	closer io.Closer
}

// NewCSVWriteCloser wraps wc in a PartitionWriter that flushes before closing.
func NewCSVWriteCloser(wc io.WriteCloser) PartitionWriter {
	return &csvWriteCloser{
		CSVWriter: NewCSVWriter(wc),
		closer:    wc,
	}
}

func (w *csvWriteCloser) Close() error {
	flushErr := w.Flush()
	closeErr := w.closer.Close()
	return errors.Join(flushErr, closeErr)
}

// CountRows counts data rows, excluding the header, without retaining them.
// An empty stream has zero rows.
func CountRows(r io.Reader) (int, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: header: %w", ErrMalformedSource, err)
	}

	count := 0
	for {
		_, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("%w: %w", ErrMalformedSource, err)
		}
		count++
	}
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}
