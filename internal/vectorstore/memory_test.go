package vectorstore

import (
	"context"
	"testing"

	"github.com/serafis/podreco/internal/model"
)

func testNamespace() model.Namespace {
	return model.Namespace{AlgorithmVersion: "1", StrategyVersion: "1.1", DatasetVersion: "test"}
}

func TestMemoryStoreHasNamespaceFalseUntilUpsert(t *testing.T) {
	s := NewMemoryStore()
	ns := testNamespace()
	ok, err := s.HasNamespace(context.Background(), ns)
	if err != nil || ok {
		t.Fatalf("expected no namespace yet, got ok=%v err=%v", ok, err)
	}
	_ = s.Upsert(context.Background(), ns, []model.Embedding{{EpisodeID: "a", Vector: []float32{1, 0}}})
	ok, err = s.HasNamespace(context.Background(), ns)
	if err != nil || !ok {
		t.Fatalf("expected namespace present after upsert, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreFetchByIDsReturnsOnlyKnownEpisodes(t *testing.T) {
	s := NewMemoryStore()
	ns := testNamespace()
	_ = s.Upsert(context.Background(), ns, []model.Embedding{
		{EpisodeID: "a", Vector: []float32{1, 0}},
		{EpisodeID: "b", Vector: []float32{0, 1}},
	})
	got, err := s.FetchByIDs(context.Background(), ns, []string{"a", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 known episode, got %d", len(got))
	}
	if _, ok := got["missing"]; ok {
		t.Error("unknown episode should not appear in result")
	}
}

func TestMemoryStoreQueryOrdersBySimilarityDescending(t *testing.T) {
	s := NewMemoryStore()
	ns := testNamespace()
	s.UpsertWithMetadata(ns, "close", []float32{1, 0}, 4, 8, 0)
	s.UpsertWithMetadata(ns, "far", []float32{0, 1}, 4, 8, 0)

	results, err := s.Query(context.Background(), ns, []float32{1, 0}, 10, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].EpisodeID != "close" {
		t.Fatalf("expected 'close' first, got %v", results)
	}
}

func TestMemoryStoreQueryRespectsFilters(t *testing.T) {
	s := NewMemoryStore()
	ns := testNamespace()
	s.UpsertWithMetadata(ns, "low-cred", []float32{1, 0}, 1, 2, 100)
	s.UpsertWithMetadata(ns, "high-cred", []float32{1, 0}, 4, 8, 100)

	results, err := s.Query(context.Background(), ns, []float32{1, 0}, 10, Filter{MinCredibility: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].EpisodeID != "high-cred" {
		t.Fatalf("expected only high-cred to survive the credibility filter, got %v", results)
	}
}

func TestMemoryStoreQueryExcludesIDs(t *testing.T) {
	s := NewMemoryStore()
	ns := testNamespace()
	s.UpsertWithMetadata(ns, "a", []float32{1, 0}, 4, 8, 0)
	s.UpsertWithMetadata(ns, "b", []float32{1, 0}, 4, 8, 0)

	results, err := s.Query(context.Background(), ns, []float32{1, 0}, 10, Filter{ExcludedIDs: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].EpisodeID != "b" {
		t.Fatalf("expected only b, got %v", results)
	}
}

func TestMemoryStoreNamespacesDoNotInterleave(t *testing.T) {
	s := NewMemoryStore()
	nsA := model.Namespace{AlgorithmVersion: "1", StrategyVersion: "1.1", DatasetVersion: "a"}
	nsB := model.Namespace{AlgorithmVersion: "1", StrategyVersion: "1.1", DatasetVersion: "b"}
	_ = s.Upsert(context.Background(), nsA, []model.Embedding{{EpisodeID: "shared", Vector: []float32{1, 0}}})

	ok, _ := s.HasNamespace(context.Background(), nsB)
	if ok {
		t.Fatal("namespace B should be empty even though namespace A has data")
	}
	got, _ := s.FetchByIDs(context.Background(), nsB, []string{"shared"})
	if len(got) != 0 {
		t.Error("episode upserted into namespace A must not be visible from namespace B")
	}
}

func TestChunkIDsRespectsMaxBatchSize(t *testing.T) {
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = "id"
	}
	chunks := ChunkIDs(ids)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks of <=100, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk exceeds 100: %d", len(c))
		}
	}
}

func TestSplitExcludedIDsCapsAt10000(t *testing.T) {
	ids := make([]string, 10005)
	for i := range ids {
		ids[i] = "id"
	}
	pushed, overflow := SplitExcludedIDs(ids)
	if len(pushed) != 10000 || len(overflow) != 5 {
		t.Fatalf("expected 10000 pushed / 5 overflow, got %d / %d", len(pushed), len(overflow))
	}
}
