package sessions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var summaryHeader = []string{"file", "true_positive", "false_positive", "not_found", "total", "error"}

// writeSummary encodes recorded results as summary.csv rows.
// The output key and name of a completed file are derived from its file name.
func writeSummary(w io.Writer, results []FileResult) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(summaryHeader); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.File,
			strconv.Itoa(r.Stats.TruePositive),
			strconv.Itoa(r.Stats.FalsePositive),
			strconv.Itoa(r.Stats.NotFound),
			strconv.Itoa(r.Stats.Total),
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// readSummary decodes summary.csv rows written by writeSummary.
func readSummary(r io.Reader) ([]FileResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(summaryHeader)

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("summary header: %w", err)
	}

	var results []FileResult
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return results, nil
		}
		if err != nil {
			return nil, fmt.Errorf("summary row: %w", err)
		}

		counts := make([]int, 4)
		for i := range counts {
			if counts[i], err = strconv.Atoi(row[i+1]); err != nil {
				return nil, fmt.Errorf("summary row %q: %w", row[0], err)
			}
		}

		res := FileResult{
			File:  row[0],
			Error: row[5],
		}
		if res.Error != "" {
			res.Status = StatusFailed
		} else {
			res.Status = StatusComplete
			res.Stats.TruePositive = counts[0]
			res.Stats.FalsePositive = counts[1]
			res.Stats.NotFound = counts[2]
			res.Stats.Total = counts[3]
		}
		results = append(results, res)
	}
}
