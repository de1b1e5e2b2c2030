package scan

import (
	"errors"
	"fmt"
	"io"
)

// Run streams every record of r through Transform into w, one record at a time,
// and returns the final statistics. The output header is the input header plus
// Comments and Findings. A header-only input produces a header-only output.
//
// On error the output written so far is incomplete and must be discarded.
func Run(r Reader, w Writer, table RuleTable) (Stats, error) {
	var stats Stats

	schema, err := r.Schema()
	if err != nil {
		return stats, err
	}

	if err := w.WriteHeader(schema.Annotated().Columns()); err != nil {
		return stats, fmt.Errorf("write header: %w", err)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read record %d: %w", stats.Total+1, err)
		}

		if err := w.Write(Transform(rec, table, &stats)); err != nil {
			return stats, fmt.Errorf("write record %d: %w", stats.Total, err)
		}
	}

	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("flush output: %w", err)
	}

	return stats, nil
}
