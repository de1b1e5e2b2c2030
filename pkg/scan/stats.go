package scan

// Stats accumulates verdict counts for one batch.
// Total always equals TruePositive + FalsePositive + NotFound.
type Stats struct {
	TruePositive  int `json:"true_positive"`
	FalsePositive int `json:"false_positive"`
	NotFound      int `json:"not_found"`
	Total         int `json:"total"`
}

// Record counts one verdict. Only the two recognized labels have their own
// counter; custom labels and "Not Found" both count toward NotFound.
func (s *Stats) Record(verdict string) {
	switch verdict {
	case VerdictTruePositive:
		s.TruePositive++
	case VerdictFalsePositive:
		s.FalsePositive++
	default:
		s.NotFound++
	}
	s.Total++
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		TruePositive:  s.TruePositive + o.TruePositive,
		FalsePositive: s.FalsePositive + o.FalsePositive,
		NotFound:      s.NotFound + o.NotFound,
		Total:         s.Total + o.Total,
	}
}

// Merge sums stats field-wise. The result does not depend on argument order.
func Merge(stats ...Stats) Stats {
	var total Stats
	for _, s := range stats {
		total = total.Add(s)
	}
	return total
}
