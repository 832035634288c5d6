package ranking

import (
	"time"

	"github.com/serafis/podreco/internal/config"
	"github.com/serafis/podreco/internal/model"
	"github.com/serafis/podreco/internal/scoreutil"
)

// BuildScoredEpisode computes the unified blended score for one candidate:
// final = w_sim*similarity + w_qual*quality + w_rec*recency. The same
// formula applies across all four user-state cases; Case 1
// simply supplies similarity=0.5.
func BuildScoredEpisode(episode model.Episode, simScore float64, cfg config.RecommendationConfig, now time.Time) model.ScoredEpisode {
	qual := scoreutil.QualityScore(episode.Scores.Credibility, episode.Scores.Insight, cfg.CredibilityMultiplier, cfg.MaxQualityScore)
	age := scoreutil.DaysSince(episode.PublishedAt, now)
	rec := scoreutil.RecencyScore(age, cfg.RecencyLambda)

	final := cfg.WeightSimilarity*simScore + cfg.WeightQuality*qual + cfg.WeightRecency*rec

	return model.ScoredEpisode{
		Episode:         episode,
		SimilarityScore: simScore,
		QualityScore:    qual,
		RecencyScore:    rec,
		FinalScore:      final,
		Badges:          Badges(episode),
	}
}
