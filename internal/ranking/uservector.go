package ranking

import (
	"log/slog"
	"math"
	"sort"

	"github.com/serafis/podreco/internal/config"
	"github.com/serafis/podreco/internal/model"
)

// recentEngagementEmbeddings sorts engagements newest-first, keeps the
// newest UserVectorLimit, and drops any whose EpisodeID has no embedding.
// Content ids are not looked up here; the session manager rewrites them to
// episode ids before ranking. This is the single source of truth for "which
// engagements count" shared by the user-vector builder.
func recentEngagementEmbeddings(engagements []model.Engagement, embeddingsByEpisodeID map[string][]float32, cfg config.RecommendationConfig) []engagementPair {
	sorted := make([]model.Engagement, len(engagements))
	copy(sorted, engagements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if len(sorted) > cfg.UserVectorLimit {
		sorted = sorted[:cfg.UserVectorLimit]
	}

	var pairs []engagementPair
	for _, eng := range sorted {
		vec, ok := embeddingsByEpisodeID[eng.EpisodeID]
		if !ok {
			continue
		}
		pairs = append(pairs, engagementPair{engagement: eng, vector: vec})
	}
	return pairs
}

type engagementPair struct {
	engagement model.Engagement
	vector     []float32
}

// meanPoolEngagementVectors computes the weighted mean of engagement
// embeddings, weighting bookmark higher than click by default.
func meanPoolEngagementVectors(pairs []engagementPair, cfg config.RecommendationConfig) []float32 {
	if len(pairs) == 0 {
		return nil
	}
	dim := len(pairs[0].vector)
	sum := make([]float64, dim)
	var totalWeight float64
	for _, p := range pairs {
		w := cfg.EngagementWeight(p.engagement.Type)
		for i, v := range p.vector {
			if i >= dim {
				break
			}
			sum[i] += float64(v) * w
		}
		totalWeight += w
	}
	if totalWeight == 0 {
		return nil
	}
	out := make([]float32, dim)
	for i, s := range sum {
		out[i] = float32(s / totalWeight)
	}
	return out
}

// BuildUserVector implements the four mutually-exclusive user-state cases
// for building a personalization vector. Returns nil when no
// personalization signal exists (Case 1 only — callers treat nil as "use
// neutral similarity").
func BuildUserVector(engagements []model.Engagement, embeddingsByEpisodeID map[string][]float32, cfg config.RecommendationConfig, categoryAnchorVector []float32, logger *slog.Logger) []float32 {
	hasCategories := len(categoryAnchorVector) > 0

	pairs := recentEngagementEmbeddings(engagements, embeddingsByEpisodeID, cfg)
	engagementVector := meanPoolEngagementVectors(pairs, cfg)

	switch {
	case engagementVector == nil && !hasCategories:
		// Case 1: no engagements, no categories.
		return nil
	case engagementVector == nil && hasCategories:
		// Case 3: category anchor as-is.
		return categoryAnchorVector
	case !hasCategories:
		// Case 2: engagement mean only.
		return engagementVector
	default:
		// Case 4: blend, then L2-normalize.
		return blendWithAnchor(engagementVector, categoryAnchorVector, cfg.CategoryAnchorWeight, logger)
	}
}

func blendWithAnchor(engagementVector, anchor []float32, alpha float64, logger *slog.Logger) []float32 {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	if len(engagementVector) != len(anchor) {
		if logger != nil {
			logger.Warn("user_vector dimension mismatch, returning engagement vector unblended",
				"engagement_dims", len(engagementVector), "anchor_dims", len(anchor))
		}
		return engagementVector
	}
	blended := make([]float64, len(engagementVector))
	for i := range engagementVector {
		blended[i] = (1-alpha)*float64(engagementVector[i]) + alpha*float64(anchor[i])
	}
	var normSq float64
	for _, v := range blended {
		normSq += v * v
	}
	norm := math.Sqrt(normSq)
	out := make([]float32, len(blended))
	if norm > 1e-9 {
		for i, v := range blended {
			out[i] = float32(v / norm)
		}
	} else {
		for i, v := range blended {
			out[i] = float32(v)
		}
	}
	return out
}
