package ranking

import (
	"testing"
	"time"

	"github.com/serafis/podreco/internal/config"
	"github.com/serafis/podreco/internal/model"
)

func makeEpisode(id, seriesID, category string, credibility, insight int, age time.Duration, now time.Time) model.Episode {
	return model.Episode{
		ID:          id,
		Title:       "Episode " + id,
		PublishedAt: now.Add(-age),
		Scores:      model.EpisodeScores{Credibility: credibility, Insight: insight},
		Series:      model.EpisodeSeries{ID: seriesID},
		Categories:  model.EpisodeCategories{Major: []string{category}},
	}
}

// TestRankCandidatesScenarioAColdStart covers a brand-new listener with no
// engagement history.
func TestRankCandidatesScenarioAColdStart(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()

	var candidates []model.Episode
	for i := 0; i < 20; i++ {
		seriesID := "series-" + string(rune('A'+i%5))
		candidates = append(candidates, makeEpisode(
			"ep"+string(rune('a'+i)), seriesID, "news", 3, 3, time.Duration(i)*24*time.Hour, now,
		))
	}

	result := RankCandidates(nil, candidates, map[string][]float32{}, cfg, nil, nil, ColdStartOptions{}, now, nil)

	if !result.ColdStart {
		t.Error("expected cold_start=true")
	}
	if result.UserVectorEpisodes != 0 {
		t.Errorf("expected user_vector_episode_count=0, got %d", result.UserVectorEpisodes)
	}
	for _, sc := range result.Queue {
		if sc.SimilarityScore != 0.5 {
			t.Errorf("expected neutral similarity for cold start, got %v for %s", sc.SimilarityScore, sc.Episode.ID)
		}
	}
	seriesCounts := map[string]int{}
	for _, sc := range result.Queue {
		seriesCounts[sc.Episode.Series.ID]++
		if seriesCounts[sc.Episode.Series.ID] > cfg.MaxEpisodesPerSeries {
			t.Errorf("series %s exceeded max episodes per series", sc.Episode.Series.ID)
		}
	}
}

// TestRankCandidatesScenarioBPersonalized covers a listener with prior
// engagement history driving similarity scoring.
func TestRankCandidatesScenarioBPersonalized(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()

	embeddings := map[string][]float32{
		"A": {1, 0, 0},
		"B": {0.9, 0.1, 0},
		"C": {0.95, 0.05, 0},
	}
	// Related candidates close to the engaged cluster, plus unrelated ones.
	var candidates []model.Episode
	related := []string{"rel1", "rel2", "rel3", "rel4", "rel5"}
	for i, id := range related {
		embeddings[id] = []float32{0.9, 0.1, 0}
		candidates = append(candidates, makeEpisode(id, "series-"+string(rune('A'+i%5)), "tech", 3, 3, time.Duration(i)*24*time.Hour, now))
	}
	for i := 0; i < 5; i++ {
		id := "unrel" + string(rune('0'+i))
		embeddings[id] = []float32{0, 0, 1}
		candidates = append(candidates, makeEpisode(id, "series-X", "other", 3, 3, time.Duration(i)*24*time.Hour, now))
	}

	engagements := []model.Engagement{
		{EpisodeID: "A", Type: "click", Timestamp: now},
		{EpisodeID: "B", Type: "click", Timestamp: now.Add(-time.Hour)},
		{EpisodeID: "C", Type: "click", Timestamp: now.Add(-2 * time.Hour)},
	}

	result := RankCandidates(engagements, candidates, embeddings, cfg, nil, nil, ColdStartOptions{}, now, nil)

	if result.ColdStart {
		t.Error("expected cold_start=false for personalized case")
	}
	if result.UserVectorEpisodes != 3 {
		t.Errorf("expected user_vector_episode_count=3, got %d", result.UserVectorEpisodes)
	}
	for _, sc := range result.Queue {
		if sc.Episode.ID == "A" || sc.Episode.ID == "B" || sc.Episode.ID == "C" {
			t.Errorf("engaged episode %s should not appear in candidate results", sc.Episode.ID)
		}
	}
}

func TestRankCandidatesFinalScoreFormula(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	candidates := []model.Episode{makeEpisode("e1", "s1", "news", 4, 4, 0, now)}
	result := RankCandidates(nil, candidates, map[string][]float32{}, cfg, nil, nil, ColdStartOptions{}, now, nil)
	sc := result.Queue[0]
	want := cfg.WeightSimilarity*sc.SimilarityScore + cfg.WeightQuality*sc.QualityScore + cfg.WeightRecency*sc.RecencyScore
	if diff := sc.FinalScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("final score %v != formula result %v", sc.FinalScore, want)
	}
}
