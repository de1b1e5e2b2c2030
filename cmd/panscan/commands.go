package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/panscan/internal/artifacts"
	"github.com/JaimeStill/panscan/internal/config"
	"github.com/JaimeStill/panscan/pkg/formatting"
	"github.com/JaimeStill/panscan/pkg/scan"
	"github.com/JaimeStill/panscan/pkg/upload"
)

var (
	errUsage       = errors.New("usage")
	errFilesFailed = errors.New("one or more files failed")
)

const usage = `usage: panscan [-rules path] <command> [arguments]

commands:
  review <in.csv> <out.csv>                 classify every row of one file
  split [-chunk n] <in.csv> <outdir>        split one file into parts of at most n rows
  count <in.csv>                            count data rows
  bulk [-concurrency n] <dir> <outdir>      classify every CSV file in dir
`

type cli struct {
	scan   config.ScanConfig
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func (c *cli) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("panscan", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() { fmt.Fprint(c.stderr, usage) }
	fs.StringVar(&c.scan.RulesPath, "rules", c.scan.RulesPath, "rule table CSV")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "review":
		return c.review(rest)
	case "split":
		return c.split(rest)
	case "count":
		return c.count(rest)
	case "bulk":
		return c.bulk(ctx, rest)
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (c *cli) review(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: review <in.csv> <out.csv>", errUsage)
	}
	in, out := args[0], args[1]

	table, err := c.rules()
	if err != nil {
		return err
	}

	stats, err := reviewFile(in, out, table)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s -> %s\n", in, out)
	printStats(c.stdout, stats)
	return nil
}

func (c *cli) split(args []string) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	chunk := fs.Int("chunk", c.scan.ChunkSize, "maximum data rows per part")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return fmt.Errorf("%w: split [-chunk n] <in.csv> <outdir>", errUsage)
	}
	in, outDir := pos[0], pos[1]

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	parts, err := splitFile(in, outDir, *chunk)
	if err != nil {
		return err
	}

	total := 0
	for _, p := range parts {
		total += p.Rows
	}
	fmt.Fprintf(
		c.stdout, "Split %s into %d files of at most %s rows.\n",
		formatting.Rows(total), len(parts), formatting.Count(*chunk),
	)
	for _, p := range parts {
		fmt.Fprintf(c.stdout, "  %s\t%s\n", filepath.Join(outDir, p.name), formatting.Rows(p.Rows))
	}
	return nil
}

func (c *cli) count(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: count <in.csv>", errUsage)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := scan.CountRows(f)
	if err != nil {
		return fmt.Errorf("count %s: %w", args[0], err)
	}

	fmt.Fprintf(c.stdout, "%s: %s\n", args[0], formatting.Rows(n))
	return nil
}

type bulkResult struct {
	file  string
	stats scan.Stats
	err   error
}

func (c *cli) bulk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bulk", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	concurrency := fs.Int("concurrency", c.scan.BulkConcurrency, "files processed in parallel")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return fmt.Errorf("%w: bulk [-concurrency n] <dir> <outdir>", errUsage)
	}
	dir, outDir := pos[0], pos[1]

	files, err := discover(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	table, err := c.rules()
	if err != nil {
		return err
	}

	results := make([]bulkResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*concurrency, 1))

	for i, name := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := filepath.Join(outDir, artifacts.ReviewedName(name))
			stats, err := reviewFile(filepath.Join(dir, name), out, table)
			if err != nil {
				c.logger.Warn("file failed", "file", name, "error", err)
			}
			results[i] = bulkResult{file: name, stats: stats, err: err}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	return c.printBulk(results)
}

func (c *cli) printBulk(results []bulkResult) error {
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTRUE POSITIVE\tFALSE POSITIVE\tNOT FOUND\tTOTAL\tERROR")

	var (
		completed []scan.Stats
		failed    int
	)
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%v\n", r.file, r.err)
			continue
		}
		completed = append(completed, r.stats)
		s := r.stats
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", r.file,
			formatting.Count(s.TruePositive), formatting.Count(s.FalsePositive),
			formatting.Count(s.NotFound), formatting.Count(s.Total))
	}

	t := scan.Merge(completed...)
	fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\t%s\t\n",
		formatting.Count(t.TruePositive), formatting.Count(t.FalsePositive),
		formatting.Count(t.NotFound), formatting.Count(t.Total))

	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errFilesFailed, failed, len(results))
	}
	return nil
}

// parseInterleaved parses flags that may appear before, between, or after
// positional arguments and returns the positional arguments in order.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// rules loads the configured rule table and warns about rules that can never match.
func (c *cli) rules() (scan.RuleTable, error) {
	table, err := scan.LoadRules(c.scan.RulesPath)
	if err != nil {
		return table, fmt.Errorf("load rules %s: %w", c.scan.RulesPath, err)
	}
	if table.Len() == 0 {
		c.logger.Warn("rule table empty or missing; every row will be Not Found", "path", c.scan.RulesPath)
	}
	for _, r := range table.Unreachable() {
		c.logger.Warn("unreachable rule", "pattern", r.Pattern)
	}
	return table, nil
}

func printStats(w io.Writer, s scan.Stats) {
	fmt.Fprintf(w, "  True Positive:  %s\n", formatting.Count(s.TruePositive))
	fmt.Fprintf(w, "  False Positive: %s\n", formatting.Count(s.FalsePositive))
	fmt.Fprintf(w, "  Not Found:      %s\n", formatting.Count(s.NotFound))
	fmt.Fprintf(w, "  Total:          %s\n", formatting.Count(s.Total))
}

// discover lists the CSV files directly inside dir, sorted by name.
func discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && upload.IsCSV(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files found in %s", dir)
	}
	slices.Sort(files)
	return files, nil
}
