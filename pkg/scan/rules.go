package scan

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
)

// Columns required in a rule source.
const (
	RuleColumnPattern  = "file_pattern"
	RuleColumnComments = "comments"
	RuleColumnStatus   = "status"
)

// Rule classifies any identifier that contains Pattern.
type Rule struct {
	Pattern  string `json:"pattern"`
	Comments string `json:"comments"`
	Status   string `json:"status"`
}

// RuleTable is an ordered, read-only rule collection. The first matching rule wins.
// A RuleTable may be shared across goroutines.
type RuleTable struct {
	rules []Rule
}

// NewRuleTable creates a RuleTable preserving the given order.
func NewRuleTable(rules ...Rule) RuleTable {
	return RuleTable{rules: slices.Clone(rules)}
}

// Len returns the number of rules.
func (t RuleTable) Len() int {
	return len(t.rules)
}

// Rules returns a copy of the rules in match order.
func (t RuleTable) Rules() []Rule {
	return slices.Clone(t.rules)
}

// Unreachable returns rules whose pattern repeats an earlier rule's pattern.
// Such rules can never match.
func (t RuleTable) Unreachable() []Rule {
	seen := make(map[string]struct{}, len(t.rules))
	var dead []Rule
	for _, r := range t.rules {
		if _, ok := seen[r.Pattern]; ok {
			dead = append(dead, r)
			continue
		}
		seen[r.Pattern] = struct{}{}
	}
	return dead
}

// LoadRules reads the rule source at path. A missing source yields an empty
// table and no error.
func LoadRules(path string) (RuleTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return RuleTable{}, nil
		}
		return RuleTable{}, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()

	return ReadRules(f)
}

// ReadRules parses a CSV rule source with file_pattern, comments, and status columns.
// Any record lacking one of these fails the whole load with ErrMalformedSource.
func ReadRules(r io.Reader) (RuleTable, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return RuleTable{}, nil
	}
	if err != nil {
		return RuleTable{}, fmt.Errorf("%w: rules header: %w", ErrMalformedSource, err)
	}

	schema := NewSchema(header)
	for _, col := range []string{RuleColumnPattern, RuleColumnComments, RuleColumnStatus} {
		if !schema.Has(col) {
			return RuleTable{}, fmt.Errorf("%w: rules missing column %q", ErrMalformedSource, col)
		}
	}

	var rules []Rule
	for {
		values, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return RuleTable{}, fmt.Errorf("%w: rules: %w", ErrMalformedSource, err)
		}

		rec := NewRecord(schema, values)
		pattern, _ := rec.Get(RuleColumnPattern)
		if pattern == "" {
			line, _ := cr.FieldPos(0)
			return RuleTable{}, fmt.Errorf("%w: rules line %d: empty %s", ErrMalformedSource, line, RuleColumnPattern)
		}
		comments, _ := rec.Get(RuleColumnComments)
		status, _ := rec.Get(RuleColumnStatus)

		rules = append(rules, Rule{
			Pattern:  pattern,
			Comments: comments,
			Status:   status,
		})
	}

	return RuleTable{rules: rules}, nil
}
