package ranking

import "github.com/agencykit/seo-pipeline/internal/seo"

// Trend computes summary statistics over a date-descending window of
// snapshots for one keyword. Rows without a position are excluded from
// every statistic, and DataPoints counts only the rows that contributed.
// Fewer than two contributing rows leaves the trend fields nil.
func Trend(window []seo.RankingSnapshot) seo.TrendSummary {
	var positions []float64
	for _, snap := range window {
		if snap.Position != nil {
			positions = append(positions, *snap.Position)
		}
	}

	summary := seo.TrendSummary{DataPoints: len(positions)}
	if len(positions) < 2 {
		return summary
	}

	current := positions[0]
	start := positions[len(positions)-1]
	best, worst, sum := positions[0], positions[0], 0.0
	for _, p := range positions {
		if p < best {
			best = p
		}
		if p > worst {
			worst = p
		}
		sum += p
	}
	average := sum / float64(len(positions))

	// Lower position is better, so a positive change is an improvement.
	change := start - current

	summary.Current = &current
	summary.Start = &start
	summary.Average = &average
	summary.Best = &best
	summary.Worst = &worst
	summary.Change = &change
	return summary
}
