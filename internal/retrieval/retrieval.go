// Package retrieval implements Stage A of the recommendation pipeline:
// quality/freshness/exclusion gating over the episode catalog, with a
// single-level freshness fallback when too few episodes survive.
package retrieval

import (
	"log/slog"
	"sort"
	"time"

	"github.com/serafis/podreco/internal/config"
	"github.com/serafis/podreco/internal/model"
	"github.com/serafis/podreco/internal/scoreutil"
)

// freshnessFallbackThresholds is the single-level widening sequence
// [60, 90] applied when the current freshness threshold starves the
// candidate pool, skipping thresholds that are not strictly wider than
// the current one.
var freshnessFallbackThresholds = []int{60, 90}

// CandidatePool runs Stage A over a full catalog snapshot: admits
// episodes passing the credibility/combined/freshness/exclusion gates,
// sorts by raw quality score descending, and truncates to
// CandidatePoolSize. If fewer than CandidatePoolSize/2 episodes are
// admitted, it re-runs exactly once with the freshness window widened to
// the next threshold in the sequence.
func CandidatePool(episodes []model.Episode, excludedIDs map[string]bool, cfg config.RecommendationConfig, now time.Time, logger *slog.Logger) []model.Episode {
	candidates := gate(episodes, excludedIDs, cfg, now)

	if len(candidates) < cfg.CandidatePoolSize/2 {
		if widened, ok := nextFreshnessWindow(cfg.FreshnessWindowDays); ok {
			if logger != nil {
				logger.Info("candidate pool below half target, widening freshness window",
					"admitted", len(candidates), "target_half", cfg.CandidatePoolSize/2,
					"old_window_days", cfg.FreshnessWindowDays, "new_window_days", widened)
			}
			widenedCfg := cfg
			widenedCfg.FreshnessWindowDays = widened
			candidates = gate(episodes, excludedIDs, widenedCfg, now)
			cfg = widenedCfg
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		qi := scoreutil.QualityRaw(candidates[i].Scores.Credibility, candidates[i].Scores.Insight, cfg.CredibilityMultiplier)
		qj := scoreutil.QualityRaw(candidates[j].Scores.Credibility, candidates[j].Scores.Insight, cfg.CredibilityMultiplier)
		return qi > qj
	})

	if len(candidates) > cfg.CandidatePoolSize {
		candidates = candidates[:cfg.CandidatePoolSize]
	}
	return candidates
}

// nextFreshnessWindow returns the next wider threshold strictly greater
// than current, per the resolved [current, 60, 90] sequence.
func nextFreshnessWindow(current int) (int, bool) {
	for _, threshold := range freshnessFallbackThresholds {
		if threshold > current {
			return threshold, true
		}
	}
	return 0, false
}

func gate(episodes []model.Episode, excludedIDs map[string]bool, cfg config.RecommendationConfig, now time.Time) []model.Episode {
	var out []model.Episode
	for _, ep := range episodes {
		if ep.Scores.Credibility < cfg.CredibilityFloor {
			continue
		}
		if ep.CombinedScore() < cfg.CombinedFloor {
			continue
		}
		age := scoreutil.DaysSince(ep.PublishedAt, now)
		if age > cfg.FreshnessWindowDays {
			continue
		}
		if excludedIDs[ep.ID] {
			continue
		}
		if ep.ContentID != "" && excludedIDs[ep.ContentID] {
			continue
		}
		out = append(out, ep)
	}
	return out
}
