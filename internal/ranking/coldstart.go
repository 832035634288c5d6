package ranking

import (
	"sort"

	"github.com/serafis/podreco/internal/model"
)

// ApplyColdStartCategoryDiversity reshapes the top topN slot to guarantee
// minPerCategory items per target category when cold-start diversity is
// enabled. Only meant to run in Case 3 (category anchor,
// no engagements); callers are responsible for gating on that case.
// scored must already be sorted by final score descending.
func ApplyColdStartCategoryDiversity(scored []model.ScoredEpisode, targetCategories []string, minPerCategory, topN int) []model.ScoredEpisode {
	if len(targetCategories) == 0 || minPerCategory <= 0 {
		return scored
	}

	targetSet := make(map[string]bool, len(targetCategories))
	for _, c := range targetCategories {
		targetSet[c] = true
	}

	byCategory := make(map[string][]model.ScoredEpisode, len(targetCategories))
	for _, c := range targetCategories {
		byCategory[c] = nil
	}
	var uncategorized []model.ScoredEpisode
	for _, sc := range scored {
		cat := sc.Episode.PrimaryCategory()
		if cat != "" && targetSet[cat] {
			byCategory[cat] = append(byCategory[cat], sc)
		} else {
			uncategorized = append(uncategorized, sc)
		}
	}

	selected := make([]model.ScoredEpisode, 0, topN)
	selectedIDs := make(map[string]bool)

	for round := 0; round < minPerCategory && len(selected) < topN; round++ {
		for _, cat := range targetCategories {
			if len(selected) >= topN {
				break
			}
			bucket := byCategory[cat]
			if len(bucket) == 0 {
				continue
			}
			ep := bucket[0]
			byCategory[cat] = bucket[1:]
			if !selectedIDs[ep.Episode.ID] {
				selected = append(selected, ep)
				selectedIDs[ep.Episode.ID] = true
			}
		}
	}

	var remaining []model.ScoredEpisode
	for _, cat := range targetCategories {
		remaining = append(remaining, byCategory[cat]...)
	}
	remaining = append(remaining, uncategorized...)
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].FinalScore > remaining[j].FinalScore
	})
	for _, ep := range remaining {
		if len(selected) >= topN {
			break
		}
		if !selectedIDs[ep.Episode.ID] {
			selected = append(selected, ep)
			selectedIDs[ep.Episode.ID] = true
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].FinalScore > selected[j].FinalScore
	})

	rest := make([]model.ScoredEpisode, 0, len(scored)-len(selected))
	for _, sc := range scored {
		if !selectedIDs[sc.Episode.ID] {
			rest = append(rest, sc)
		}
	}

	out := make([]model.ScoredEpisode, 0, len(scored))
	out = append(out, selected...)
	out = append(out, rest...)
	for i := range out {
		out[i].QueuePosition = i
	}
	return out
}
