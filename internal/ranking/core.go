// Package ranking implements Stage B of the recommendation pipeline: user
// vector construction, similarity resolution, blended scoring, and the two
// diversity selectors (series diversity for all cases, cold-start category
// diversity for Case 3 only).
package ranking

import (
	"log/slog"
	"sort"
	"time"

	"github.com/serafis/podreco/internal/config"
	"github.com/serafis/podreco/internal/model"
)

// ColdStartOptions configures the Case-3-only category diversity pass.
// Zero value disables it.
type ColdStartOptions struct {
	Enabled          bool
	TargetCategories []string
	MinPerCategory   int
	TopN             int
}

// Result is the output of RankCandidates: the fully diversified queue plus
// the bookkeeping the Session Manager needs to populate a CreateSession
// response.
type Result struct {
	Queue               []model.ScoredEpisode
	ColdStart           bool
	UserVectorEpisodes  int
	TopSimilarityScores []float64
	TopQualityScores    []float64
	TopFinalScores      []float64
}

// RankCandidates runs the unified Stage B pipeline shared by all four
// user-state cases: build the user vector, resolve a per-candidate
// similarity, blend into a final score, sort, then apply cold-start
// category diversity (Case 3 only) followed by series diversity (all
// cases). candidates must already have survived Stage A gating.
func RankCandidates(
	engagements []model.Engagement,
	candidates []model.Episode,
	embeddingsByEpisodeID map[string][]float32,
	cfg config.RecommendationConfig,
	categoryAnchorVector []float32,
	similarityByID map[string]float64,
	coldStart ColdStartOptions,
	now time.Time,
	logger *slog.Logger,
) Result {
	userVector := BuildUserVector(engagements, embeddingsByEpisodeID, cfg, categoryAnchorVector, logger)

	userVectorEpisodes := countEngagementsWithEmbedding(engagements, embeddingsByEpisodeID, cfg)
	isCase3 := userVector != nil && userVectorEpisodes == 0 && len(categoryAnchorVector) > 0
	isColdStart := userVector == nil

	scored := make([]model.ScoredEpisode, 0, len(candidates))
	for _, ep := range candidates {
		sim := ResolveSimilarity(ep.ID, ep.ContentID, similarityByID, userVector, embeddingsByEpisodeID, logger)
		scored = append(scored, BuildScoredEpisode(ep, sim, cfg, now))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})

	if isCase3 && coldStart.Enabled {
		topN := coldStart.TopN
		if topN <= 0 {
			topN = 10
		}
		scored = ApplyColdStartCategoryDiversity(scored, coldStart.TargetCategories, coldStart.MinPerCategory, topN)
	}

	diversified := SelectTopKWithSeriesPenalty(scored, len(scored), cfg.SeriesPenaltyAlpha, cfg.MaxEpisodesPerSeries, cfg.NoAdjacentSameSeries)

	return Result{
		Queue:               diversified,
		ColdStart:           isColdStart,
		UserVectorEpisodes:  userVectorEpisodes,
		TopSimilarityScores: topScores(diversified, func(s model.ScoredEpisode) float64 { return s.SimilarityScore }),
		TopQualityScores:    topScores(diversified, func(s model.ScoredEpisode) float64 { return s.QualityScore }),
		TopFinalScores:      topScores(diversified, func(s model.ScoredEpisode) float64 { return s.FinalScore }),
	}
}

func countEngagementsWithEmbedding(engagements []model.Engagement, embeddingsByEpisodeID map[string][]float32, cfg config.RecommendationConfig) int {
	return len(recentEngagementEmbeddings(engagements, embeddingsByEpisodeID, cfg))
}

func topScores(scored []model.ScoredEpisode, field func(model.ScoredEpisode) float64) []float64 {
	n := 5
	if n > len(scored) {
		n = len(scored)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = field(scored[i])
	}
	return out
}
