package scan

import "strings"

// Recognized verdicts. Rules may carry any other status label.
const (
	VerdictTruePositive  = "True Positive"
	VerdictFalsePositive = "False Positive"
	VerdictNotFound      = "Not Found"
)

// Classify returns the comments and status of the first rule whose pattern is
// contained in identifier, or ("", VerdictNotFound) when no rule matches.
// Matching is case-sensitive and unanchored.
func Classify(identifier string, table RuleTable) (comments, verdict string) {
	if identifier == "" {
		return "", VerdictNotFound
	}
	for _, r := range table.rules {
		if strings.Contains(identifier, r.Pattern) {
			return r.Comments, r.Status
		}
	}
	return "", VerdictNotFound
}

// Transform classifies rec by its filename and returns the record with Comments
// and Findings appended. stats is incremented exactly once.
func Transform(rec Record, table RuleTable, stats *Stats) Record {
	comments, verdict := Classify(rec.Filename(), table)
	stats.Record(verdict)
	return rec.annotate(comments, verdict)
}
