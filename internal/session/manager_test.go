package session

import (
	"context"
	"testing"
	"time"

	"github.com/serafis/podreco/internal/config"
	"github.com/serafis/podreco/internal/engagement"
	"github.com/serafis/podreco/internal/model"
	"github.com/serafis/podreco/internal/providers"
)

func newTestManager(episodes []model.Episode) *Manager {
	ep := providers.NewFileProvider(episodes)
	eng := engagement.NewMemoryStore()
	ns := model.Namespace{AlgorithmVersion: "1", StrategyVersion: "1.1", DatasetVersion: "test"}
	return NewManager(ep, eng, nil, ns, 24*time.Hour, 10000, time.Hour, nil)
}

func genEpisodes(n int, now time.Time) []model.Episode {
	episodes := make([]model.Episode, n)
	for i := 0; i < n; i++ {
		episodes[i] = model.Episode{
			ID:          string(rune('a' + i)),
			Title:       "Episode",
			PublishedAt: now.Add(-time.Duration(i) * time.Hour),
			Scores:      model.EpisodeScores{Credibility: 4, Insight: 4},
			Series:      model.EpisodeSeries{ID: "series-" + string(rune('a'+i))},
		}
	}
	return episodes
}

func TestCreateSessionReturnsFirstPage(t *testing.T) {
	now := time.Now()
	m := newTestManager(genEpisodes(20, now))
	defer m.Close()

	page, err := m.CreateSession(context.Background(), nil, nil, "", nil, nil, config.DefaultRecommendationConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Episodes) != defaultPageSize {
		t.Fatalf("expected default page size %d, got %d", defaultPageSize, len(page.Episodes))
	}
	if page.TotalInQueue != 20 {
		t.Errorf("expected queue of 20, got %d", page.TotalInQueue)
	}
	if !page.ColdStart {
		t.Error("expected cold_start=true with no engagements")
	}
}

func TestLoadMoreNeverRepeatsItems(t *testing.T) {
	now := time.Now()
	m := newTestManager(genEpisodes(20, now))
	defer m.Close()

	cfg := config.DefaultRecommendationConfig()
	first, err := m.CreateSession(context.Background(), nil, nil, "", nil, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for _, e := range first.Episodes {
		seen[e.Episode.ID] = true
	}

	second, err := m.LoadMore(context.Background(), first.SessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range second.Episodes {
		if seen[e.Episode.ID] {
			t.Fatalf("episode %q shown twice across pages", e.Episode.ID)
		}
		seen[e.Episode.ID] = true
	}
	if second.ShownCount != 20 {
		t.Errorf("expected all 20 shown after two pages, got %d", second.ShownCount)
	}
}

func TestLoadMoreUnknownSessionReturnsError(t *testing.T) {
	m := newTestManager(genEpisodes(5, time.Now()))
	defer m.Close()
	_, err := m.LoadMore(context.Background(), "does-not-exist", 10)
	if err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEngageExcludesEpisodeFromFuturePages(t *testing.T) {
	now := time.Now()
	m := newTestManager(genEpisodes(15, now))
	defer m.Close()

	cfg := config.DefaultRecommendationConfig()
	first, err := m.CreateSession(context.Background(), nil, nil, "", nil, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}

	remaining, err := m.LoadMore(context.Background(), first.SessionID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining.Episodes) == 0 {
		t.Fatal("expected remaining episodes to engage with")
	}
	target := remaining.Episodes[0].Episode.ID

	count, err := m.Engage(context.Background(), first.SessionID, target, model.EngagementClick, "")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected engaged_count=1, got %d", count)
	}

	rest, err := m.LoadMore(context.Background(), first.SessionID, 20)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range rest.Episodes {
		if e.Episode.ID == target {
			t.Errorf("engaged episode %q should not reappear in later pages", target)
		}
	}
}

func TestCreateSessionEmptyCatalogReturnsEmptyQueueNotError(t *testing.T) {
	m := newTestManager(nil)
	defer m.Close()
	page, err := m.CreateSession(context.Background(), nil, nil, "", nil, nil, config.DefaultRecommendationConfig())
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalInQueue != 0 || len(page.Episodes) != 0 {
		t.Errorf("expected empty queue, got %+v", page)
	}
}
