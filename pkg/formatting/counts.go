package formatting

import "github.com/dustin/go-humanize"

// Count renders n with comma thousands separators: 2500000 -> "2,500,000".
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Rows renders a row count with its unit, singular for exactly one row.
func Rows(n int) string {
	if n == 1 {
		return "1 row"
	}
	return Count(n) + " rows"
}
