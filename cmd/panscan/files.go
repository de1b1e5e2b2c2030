package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/JaimeStill/panscan/internal/artifacts"
	"github.com/JaimeStill/panscan/pkg/scan"
)

// outputMode replaces the owner-only mode of temporary files before they are
// renamed into place.
const outputMode os.FileMode = 0644

// reviewFile classifies in into out. The output appears only once it is complete.
func reviewFile(in, out string, table scan.RuleTable) (scan.Stats, error) {
	src, err := os.Open(in)
	if err != nil {
		return scan.Stats{}, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(out), ".reviewed-*.csv")
	if err != nil {
		return scan.Stats{}, fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	stats, err := scan.Run(scan.NewCSVReader(src), scan.NewCSVWriter(tmp), table)
	if err == nil {
		err = tmp.Chmod(outputMode)
	}
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return stats, fmt.Errorf("review %s: %w", in, err)
	}

	if err := os.Rename(tmp.Name(), out); err != nil {
		return stats, err
	}
	return stats, nil
}

type part struct {
	scan.Partition
	name string
	tmp  string
}

// splitFile writes the parts of in into outDir. Parts are renamed into place
// only after every part has been written; on failure none remain.
func splitFile(in, outDir string, chunk int) ([]part, error) {
	src, err := os.Open(in)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var temps []string
	cleanup := func() {
		for _, t := range temps {
			os.Remove(t)
		}
	}

	partitions, err := scan.Split(scan.NewCSVReader(src), chunk, func(number int) (scan.PartitionWriter, error) {
		f, err := os.CreateTemp(outDir, fmt.Sprintf(".part-%d-*.csv", number))
		if err != nil {
			return nil, err
		}
		temps = append(temps, f.Name())
		if err := f.Chmod(outputMode); err != nil {
			f.Close()
			return nil, err
		}
		return scan.NewCSVWriteCloser(f), nil
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("split %s: %w", in, err)
	}

	source := filepath.Base(in)
	parts := make([]part, len(partitions))
	for i, p := range partitions {
		parts[i] = part{
			Partition: p,
			name:      artifacts.PartName(p.Number, source),
			tmp:       temps[i],
		}
	}

	var renamed []string
	for _, p := range parts {
		dst := filepath.Join(outDir, p.name)
		if err := os.Rename(p.tmp, dst); err != nil {
			cleanup()
			for _, r := range renamed {
				os.Remove(r)
			}
			return nil, fmt.Errorf("place part %d: %w", p.Number, err)
		}
		renamed = append(renamed, dst)
	}

	return parts, nil
}
