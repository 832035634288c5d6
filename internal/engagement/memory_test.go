package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/serafis/podreco/internal/model"
)

func TestMemoryStoreReturnsRequestEngagementsWhenNoUserID(t *testing.T) {
	s := NewMemoryStore()
	req := []model.Engagement{{EpisodeID: "a", Type: model.EngagementClick}}
	got, err := s.GetEngagementsForRanking(context.Background(), "", req)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].EpisodeID != "a" {
		t.Fatalf("expected request engagements verbatim, got %v", got)
	}
}

func TestMemoryStoreRecordAndRetrieveNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	_ = s.RecordEngagement(context.Background(), "u1", model.Engagement{EpisodeID: "old", Timestamp: now.Add(-time.Hour)})
	_ = s.RecordEngagement(context.Background(), "u1", model.Engagement{EpisodeID: "new", Timestamp: now})

	got, err := s.GetEngagementsForRanking(context.Background(), "u1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].EpisodeID != "new" {
		t.Fatalf("expected newest-first, got %v", got)
	}
}

func TestMemoryStoreRecordEngagementNoOpWithoutUserID(t *testing.T) {
	s := NewMemoryStore()
	if err := s.RecordEngagement(context.Background(), "", model.Engagement{EpisodeID: "a"}); err != nil {
		t.Fatal(err)
	}
	if len(s.byID) != 0 {
		t.Error("expected no-op when user_id is absent")
	}
}

func TestMemoryStoreDeleteEngagement(t *testing.T) {
	s := NewMemoryStore()
	_ = s.RecordEngagement(context.Background(), "u1", model.Engagement{EpisodeID: "a", Timestamp: time.Now()})
	id := s.byID["u1"][0].id

	ok, err := s.DeleteEngagement(context.Background(), "u1", id)
	if err != nil || !ok {
		t.Fatalf("expected successful delete, got ok=%v err=%v", ok, err)
	}
	ok, _ = s.DeleteEngagement(context.Background(), "u1", id)
	if ok {
		t.Error("deleting twice should report not found the second time")
	}
}

func TestMemoryStoreDeleteAllEngagements(t *testing.T) {
	s := NewMemoryStore()
	_ = s.RecordEngagement(context.Background(), "u1", model.Engagement{EpisodeID: "a", Timestamp: time.Now()})
	_ = s.RecordEngagement(context.Background(), "u1", model.Engagement{EpisodeID: "b", Timestamp: time.Now()})

	if err := s.DeleteAllEngagements(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetEngagementsForRanking(context.Background(), "u1", nil)
	if len(got) != 0 {
		t.Errorf("expected all engagements removed, got %v", got)
	}
}

func TestResolveForRankingCapsAt500(t *testing.T) {
	var stored []model.Engagement
	now := time.Now()
	for i := 0; i < 600; i++ {
		stored = append(stored, model.Engagement{EpisodeID: "e", Timestamp: now.Add(time.Duration(-i) * time.Minute)})
	}
	got := resolveForRanking("u1", nil, stored)
	if len(got) != 500 {
		t.Fatalf("expected cap of 500, got %d", len(got))
	}
}
