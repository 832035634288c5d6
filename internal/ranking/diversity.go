package ranking

import "github.com/serafis/podreco/internal/model"

// SelectTopKWithSeriesPenalty selects up to k scored episodes from a
// final-score-sorted list, applying an in-processing diversity penalty
// rather than reordering a fully ranked list after the fact. scored is not mutated. Episodes with no series id share the
// empty-string bucket, their own anonymous series per spec.
func SelectTopKWithSeriesPenalty(scored []model.ScoredEpisode, k int, alpha float64, maxPerSeries int, noAdjacentSameSeries bool) []model.ScoredEpisode {
	remaining := make([]model.ScoredEpisode, len(scored))
	copy(remaining, scored)

	selected := make([]model.ScoredEpisode, 0, k)
	seriesCount := make(map[string]int)
	lastSelectedSeriesID := ""
	haveLast := false

	limit := k
	if limit > len(remaining) {
		limit = len(remaining)
	}

	for range limit {
		bestIdx := -1
		bestEffective := -1.0

		for idx, sc := range remaining {
			seriesID := sc.Episode.Series.ID
			count := seriesCount[seriesID]

			if count >= maxPerSeries {
				continue
			}
			if noAdjacentSameSeries && haveLast && seriesID == lastSelectedSeriesID {
				continue
			}

			effective := sc.FinalScore * ipow(alpha, count)
			if effective > bestEffective {
				bestEffective = effective
				bestIdx = idx
			}
		}

		if bestIdx == -1 {
			break
		}

		chosen := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		selected = append(selected, chosen)

		sid := chosen.Episode.Series.ID
		seriesCount[sid]++
		lastSelectedSeriesID = sid
		haveLast = true
	}

	for i := range selected {
		selected[i].QueuePosition = i
	}
	return selected
}

// ipow computes alpha^n for small non-negative integer n without relying
// on math.Pow's float-exponent generality, which this loop never needs.
func ipow(alpha float64, n int) float64 {
	result := 1.0
	for range n {
		result *= alpha
	}
	return result
}
