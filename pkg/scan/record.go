// Package scan implements the record classification and chunked partitioning engine.
// It matches scan result identifiers against an ordered rule table, streams annotated
// records with aggregate statistics, and splits oversized record streams into
// bounded-size partitions. The package performs no file naming or storage; callers
// supply readers and writers.
package scan

import (
	"slices"
	"sync"
)

// Column names with fixed meaning in scan result files.
const (
	ColumnFilename = "filename"
	ColumnComments = "Comments"
	ColumnFindings = "Findings"
)

// Schema is the ordered column set discovered from a header row.
// All records read from one stream share a single Schema.
type Schema struct {
	columns []string
	index   map[string]int

	once      sync.Once
	annotated *Schema
}

// NewSchema creates a Schema for the given columns. When a column name repeats,
// lookups resolve to its first occurrence.
func NewSchema(columns []string) *Schema {
	s := &Schema{
		columns: slices.Clone(columns),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range s.columns {
		if _, ok := s.index[c]; !ok {
			s.index[c] = i
		}
	}
	return s
}

// Columns returns a copy of the column names in header order.
func (s *Schema) Columns() []string {
	return slices.Clone(s.columns)
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.columns)
}

// Has reports whether the schema contains the named column.
func (s *Schema) Has(column string) bool {
	_, ok := s.index[column]
	return ok
}

// Annotated returns the output schema: these columns followed by Comments and Findings.
func (s *Schema) Annotated() *Schema {
	s.once.Do(func() {
		cols := make([]string, 0, len(s.columns)+2)
		cols = append(cols, s.columns...)
		cols = append(cols, ColumnComments, ColumnFindings)
		s.annotated = NewSchema(cols)
	})
	return s.annotated
}

// Record is one row of a scan result file: values positioned by a shared Schema.
// Columns other than filename are opaque pass-through text.
type Record struct {
	schema *Schema
	values []string
}

// NewRecord binds values to a schema. Values are not copied.
func NewRecord(schema *Schema, values []string) Record {
	return Record{schema: schema, values: values}
}

// Schema returns the schema the record is bound to.
func (r Record) Schema() *Schema {
	return r.schema
}

// Values returns the record values in schema order.
func (r Record) Values() []string {
	return r.values
}

// Get returns the value of the named column.
func (r Record) Get(column string) (string, bool) {
	if r.schema == nil {
		return "", false
	}
	i, ok := r.schema.index[column]
	if !ok || i >= len(r.values) {
		return "", false
	}
	return r.values[i], true
}

// Filename returns the identifying field, or "" when the column is absent.
func (r Record) Filename() string {
	v, _ := r.Get(ColumnFilename)
	return v
}

func (r Record) annotate(comments, findings string) Record {
	values := make([]string, 0, len(r.values)+2)
	values = append(values, r.values...)
	values = append(values, comments, findings)
	return Record{schema: r.schema.Annotated(), values: values}
}
