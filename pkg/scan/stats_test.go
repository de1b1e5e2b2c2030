package scan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/panscan/pkg/scan"
)

func TestStatsRecord(t *testing.T) {
	var s scan.Stats
	for _, v := range []string{
		scan.VerdictTruePositive,
		scan.VerdictFalsePositive,
		scan.VerdictFalsePositive,
		scan.VerdictNotFound,
		"Needs Review",
		"true positive",
	} {
		s.Record(v)
	}

	assert.Equal(t, scan.Stats{TruePositive: 1, FalsePositive: 2, NotFound: 3, Total: 6}, s)
	assert.Equal(t, s.Total, s.TruePositive+s.FalsePositive+s.NotFound)
}

func TestMergeOrderIndependent(t *testing.T) {
	a := scan.Stats{TruePositive: 1, FalsePositive: 2, NotFound: 3, Total: 6}
	b := scan.Stats{TruePositive: 10, NotFound: 5, Total: 15}
	c := scan.Stats{FalsePositive: 7, Total: 7}

	want := scan.Stats{TruePositive: 11, FalsePositive: 9, NotFound: 8, Total: 28}

	assert.Equal(t, want, scan.Merge(a, b, c))
	assert.Equal(t, want, scan.Merge(c, a, b))
	assert.Equal(t, want, scan.Merge(scan.Merge(a, b), c))
	assert.Equal(t, want, scan.Merge(a, scan.Merge(b, c)))
}

func TestMergeEmpty(t *testing.T) {
	assert.Equal(t, scan.Stats{}, scan.Merge())
}
