package batch

import "github.com/menta2k/image-quality/pkg/types"

// Summary aggregates a collection snapshot. It is derived on demand and
// never stored.
type Summary struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Analyzing    int     `json:"analyzing"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	Good         int     `json:"good"`
	Standard     int     `json:"standard"`
	Bad          int     `json:"bad"`
	AverageScore float64 `json:"averageScore"`
}

// Summarize counts statuses and tiers. AverageScore covers completed
// items that carry a result and is 0 when there are none.
func Summarize(items []ImageFile) Summary {
	s := Summary{Total: len(items)}
	total, scored := 0, 0

	for _, item := range items {
		switch item.Status {
		case StatusPending:
			s.Pending++
		case StatusAnalyzing:
			s.Analyzing++
		case StatusError:
			s.Failed++
		case StatusCompleted:
			s.Completed++
			if item.Result == nil {
				continue
			}
			total += item.Result.Score
			scored++
			switch item.Result.Quality {
			case types.TierGood:
				s.Good++
			case types.TierStandard:
				s.Standard++
			default:
				s.Bad++
			}
		}
	}

	if scored > 0 {
		s.AverageScore = float64(total) / float64(scored)
	}
	return s
}

// Done reports whether nothing is left to analyse
func (s Summary) Done() bool {
	return s.Pending == 0 && s.Analyzing == 0
}
