package scan

import (
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the row quota of one partition when none is configured.
const DefaultChunkSize = 1_000_000

// Partition describes one sealed output chunk of a split.
type Partition struct {
	Number int      `json:"number"`
	Rows   int      `json:"rows"`
	Header []string `json:"-"`
}

// PartitionOpener returns the write target for the partition with the given
// 1-based number. Split closes each target before opening the next.
type PartitionOpener func(number int) (PartitionWriter, error)

// Split distributes the records of r across partitions of at most chunkSize rows,
// writing the input header into each. A new partition starts whenever the number
// of rows consumed is a multiple of chunkSize, so n rows produce ceil(n/chunkSize)
// partitions and an empty input produces none. Only the current partition's
// writer is open at any time.
//
// On error Split returns the partitions opened so far so the caller can remove them.
func Split(r Reader, chunkSize int, open PartitionOpener) ([]Partition, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}

	schema, err := r.Schema()
	if err != nil {
		return nil, err
	}
	header := schema.Columns()

	var (
		parts   []Partition
		current PartitionWriter
		rows    int
	)

	fail := func(err error) ([]Partition, error) {
		if current != nil {
			current.Close()
		}
		return parts, err
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("read record %d: %w", rows+1, err))
		}

		if rows%chunkSize == 0 {
			if current != nil {
				err := current.Close()
				current = nil
				if err != nil {
					return fail(fmt.Errorf("close partition %d: %w", len(parts), err))
				}
			}

			number := len(parts) + 1
			current, err = open(number)
			if err != nil {
				current = nil
				return fail(fmt.Errorf("open partition %d: %w", number, err))
			}
			parts = append(parts, Partition{Number: number, Header: header})

			if err := current.WriteHeader(header); err != nil {
				return fail(fmt.Errorf("write partition %d header: %w", number, err))
			}
		}

		if err := current.Write(rec); err != nil {
			return fail(fmt.Errorf("write partition %d: %w", len(parts), err))
		}
		parts[len(parts)-1].Rows++
		rows++
	}

	if current != nil {
		if err := current.Close(); err != nil {
			return parts, fmt.Errorf("close partition %d: %w", len(parts), err)
		}
	}

	return parts, nil
}
