package retrieval

import (
	"testing"
	"time"

	"github.com/serafis/podreco/internal/config"
	"github.com/serafis/podreco/internal/model"
)

func episode(id string, credibility, insight int, age time.Duration, now time.Time) model.Episode {
	return model.Episode{
		ID:          id,
		PublishedAt: now.Add(-age),
		Scores:      model.EpisodeScores{Credibility: credibility, Insight: insight},
	}
}

func TestCandidatePoolGatesByCredibilityFloor(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	episodes := []model.Episode{
		episode("low", 1, 4, 0, now),
		episode("ok", 2, 4, 0, now),
	}
	got := CandidatePool(episodes, nil, cfg, now, nil)
	for _, ep := range got {
		if ep.ID == "low" {
			t.Error("episode below credibility_floor should be excluded")
		}
	}
}

func TestCandidatePoolGatesByCombinedFloor(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	episodes := []model.Episode{episode("weak-combined", 2, 1, 0, now)} // 3 < 5
	got := CandidatePool(episodes, nil, cfg, now, nil)
	if len(got) != 0 {
		t.Error("episode below combined_floor should be excluded")
	}
}

func TestCandidatePoolGatesByFreshness(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	episodes := []model.Episode{episode("stale", 4, 4, 200*24*time.Hour, now)}
	got := CandidatePool(episodes, nil, cfg, now, nil)
	if len(got) != 0 {
		t.Error("stale episode outside freshness window should be excluded")
	}
}

func TestCandidatePoolExcludesIDsAndContentIDs(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	ep := episode("a", 4, 4, 0, now)
	ep.ContentID = "content-a"
	got := CandidatePool([]model.Episode{ep}, map[string]bool{"content-a": true}, cfg, now, nil)
	if len(got) != 0 {
		t.Error("episode whose content_id is excluded should not appear")
	}
}

func TestCandidatePoolSortsByQualityDescending(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	episodes := []model.Episode{
		episode("low-q", 2, 3, 0, now),
		episode("high-q", 4, 4, 0, now),
	}
	got := CandidatePool(episodes, nil, cfg, now, nil)
	if len(got) != 2 || got[0].ID != "high-q" {
		t.Errorf("expected high-q first, got %v", got)
	}
}

func TestCandidatePoolTruncatesToPoolSize(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	cfg.CandidatePoolSize = 3
	cfg.FreshnessWindowDays = 90 // avoid triggering the fallback in this test
	var episodes []model.Episode
	for i := 0; i < 20; i++ {
		episodes = append(episodes, episode(string(rune('a'+i)), 4, 4, 0, now))
	}
	got := CandidatePool(episodes, nil, cfg, now, nil)
	if len(got) != 3 {
		t.Errorf("expected truncation to 3, got %d", len(got))
	}
}

// TestCandidatePoolScenarioEFreshnessFallback covers the freshness-window
// widening fallback when the current threshold yields too few candidates.
func TestCandidatePoolScenarioEFreshnessFallback(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	cfg.FreshnessWindowDays = 30
	cfg.CandidatePoolSize = 150 // half = 75

	// 50 episodes pass quality gates but are 45 days old (fails window=30,
	// passes window=60).
	var episodes []model.Episode
	for i := 0; i < 50; i++ {
		episodes = append(episodes, episode(string(rune('a'+i%26))+string(rune('0'+i/26)), 4, 4, 45*24*time.Hour, now))
	}

	got := CandidatePool(episodes, nil, cfg, now, nil)
	if len(got) != 50 {
		t.Errorf("expected fallback to window=60 to admit all 50, got %d", len(got))
	}
}

func TestCandidatePoolNoFallbackWhenEnoughCandidates(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	cfg.CandidatePoolSize = 10
	var episodes []model.Episode
	for i := 0; i < 10; i++ {
		episodes = append(episodes, episode(string(rune('a'+i)), 4, 4, 0, now))
	}
	got := CandidatePool(episodes, nil, cfg, now, nil)
	if len(got) != 10 {
		t.Errorf("expected all 10 without fallback, got %d", len(got))
	}
}

func TestCandidatePoolEmptyCatalogReturnsEmptyNotError(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultRecommendationConfig()
	got := CandidatePool(nil, nil, cfg, now, nil)
	if got != nil && len(got) != 0 {
		t.Errorf("expected empty pool, got %v", got)
	}
}
