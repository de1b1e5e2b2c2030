package scan_test

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/panscan/pkg/scan"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

type memoryOpener struct {
	buffers []*bufferCloser
}

func (m *memoryOpener) open(number int) (scan.PartitionWriter, error) {
	if number != len(m.buffers)+1 {
		return nil, fmt.Errorf("partition %d opened out of order", number)
	}
	b := &bufferCloser{}
	m.buffers = append(m.buffers, b)
	return scan.NewCSVWriteCloser(b), nil
}

func readAll(t *testing.T, s string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(s)).ReadAll()
	require.NoError(t, err)
	return rows
}

func buildInput(n int) (string, [][]string) {
	var b strings.Builder
	b.WriteString("id,filename\n")
	rows := make([][]string, 0, n)
	for i := range n {
		row := []string{fmt.Sprint(i), fmt.Sprintf("file_%d.bin", i)}
		rows = append(rows, row)
		fmt.Fprintf(&b, "%s,%s\n", row[0], row[1])
	}
	return b.String(), rows
}

func TestSplitPartitionCounts(t *testing.T) {
	tests := []struct {
		rows      int
		chunkSize int
		wantRows  []int
	}{
		{rows: 0, chunkSize: 10, wantRows: nil},
		{rows: 1, chunkSize: 10, wantRows: []int{1}},
		{rows: 10, chunkSize: 10, wantRows: []int{10}},
		{rows: 11, chunkSize: 10, wantRows: []int{10, 1}},
		{rows: 25, chunkSize: 10, wantRows: []int{10, 10, 5}},
		{rows: 30, chunkSize: 10, wantRows: []int{10, 10, 10}},
		{rows: 7, chunkSize: 1, wantRows: []int{1, 1, 1, 1, 1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d rows by %d", tt.rows, tt.chunkSize), func(t *testing.T) {
			input, want := buildInput(tt.rows)
			opener := &memoryOpener{}

			parts, err := scan.Split(scan.NewCSVReader(strings.NewReader(input)), tt.chunkSize, opener.open)
			require.NoError(t, err)

			wantParts := (tt.rows + tt.chunkSize - 1) / tt.chunkSize
			require.Len(t, parts, wantParts)
			require.Len(t, opener.buffers, wantParts)

			var got [][]string
			for i, p := range parts {
				assert.Equal(t, i+1, p.Number)
				assert.Equal(t, tt.wantRows[i], p.Rows)
				assert.Equal(t, []string{"id", "filename"}, p.Header)
				assert.True(t, opener.buffers[i].closed)

				rows := readAll(t, opener.buffers[i].String())
				assert.Equal(t, []string{"id", "filename"}, rows[0])
				assert.Len(t, rows[1:], p.Rows)
				got = append(got, rows[1:]...)
			}

			if tt.rows > 0 {
				assert.Equal(t, want, got)
			}
		})
	}
}

// generated yields n single-column records without a backing file.
type generated struct {
	schema *scan.Schema
	n, i   int
}

func (g *generated) Schema() (*scan.Schema, error) { return g.schema, nil }

func (g *generated) Read() (scan.Record, error) {
	if g.i >= g.n {
		return scan.Record{}, io.EOF
	}
	g.i++
	return scan.NewRecord(g.schema, []string{"row.bin"}), nil
}

type discardPartition struct{}

func (discardPartition) WriteHeader([]string) error { return nil }
func (discardPartition) Write(scan.Record) error    { return nil }
func (discardPartition) Flush() error               { return nil }
func (discardPartition) Close() error               { return nil }

func TestSplitDefaultChunkSizeScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("generates 2,500,000 records")
	}

	r := &generated{schema: scan.NewSchema([]string{"filename"}), n: 2_500_000}
	parts, err := scan.Split(r, scan.DefaultChunkSize, func(int) (scan.PartitionWriter, error) {
		return discardPartition{}, nil
	})
	require.NoError(t, err)

	require.Len(t, parts, 3)
	assert.Equal(t, 1_000_000, parts[0].Rows)
	assert.Equal(t, 1_000_000, parts[1].Rows)
	assert.Equal(t, 500_000, parts[2].Rows)
}

func TestSplitKeepsLineBreaksInCells(t *testing.T) {
	input := "filename,note\r\n" +
		"a.bin,\"one\rtwo\"\r\n" +
		"b.bin,\"lf\nonly\"\r\n"
	opener := &memoryOpener{}

	parts, err := scan.Split(scan.NewCSVReader(strings.NewReader(input)), 10, opener.open)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, 2, parts[0].Rows)

	assert.Equal(t, input, opener.buffers[0].String())

	rows := readAll(t, opener.buffers[0].String())
	require.Len(t, rows, 3)
	assert.Equal(t, "one\rtwo", rows[1][1])
	assert.Equal(t, "lf\nonly", rows[2][1])
}

func TestSplitInvalidChunkSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		called := false
		_, err := scan.Split(scan.NewCSVReader(strings.NewReader("filename\na\n")), size, func(int) (scan.PartitionWriter, error) {
			called = true
			return discardPartition{}, nil
		})
		assert.ErrorIs(t, err, scan.ErrInvalidChunkSize)
		assert.False(t, called)
	}
}

func TestSplitMalformedReturnsOpenedPartitions(t *testing.T) {
	input := "id,filename\n1,a\n2,b\n3,c,extra\n"
	opener := &memoryOpener{}

	parts, err := scan.Split(scan.NewCSVReader(strings.NewReader(input)), 1, opener.open)
	assert.ErrorIs(t, err, scan.ErrMalformedSource)
	assert.Len(t, parts, 2)
	for _, b := range opener.buffers {
		assert.True(t, b.closed)
	}
}

func TestSplitOpenFailure(t *testing.T) {
	input, _ := buildInput(3)
	_, err := scan.Split(scan.NewCSVReader(strings.NewReader(input)), 2, func(n int) (scan.PartitionWriter, error) {
		if n == 2 {
			return nil, errors.New("no space")
		}
		return discardPartition{}, nil
	})
	assert.ErrorContains(t, err, "open partition 2")
}

func TestCountRows(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"header only", "filename\n", 0},
		{"rows", "filename\na\nb\nc\n", 3},
		{"quoted newline counts once", "filename,note\na,\"x\ny\"\nb,z\n", 2},
		{"ragged rows still counted", "a,b\n1\n1,2,3\n", 2},
		{"byte order mark", "\xEF\xBB\xBFfilename\na\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scan.CountRows(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
