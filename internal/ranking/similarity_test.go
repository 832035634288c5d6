package ranking

import "testing"

func TestResolveSimilarityUsesANNResultWhenPresent(t *testing.T) {
	simByID := map[string]float64{"ep-1": 0.87}
	got := ResolveSimilarity("ep-1", "", simByID, nil, nil, nil)
	if got != 0.87 {
		t.Errorf("got %v, want 0.87", got)
	}
}

func TestResolveSimilarityANNFallsBackToContentID(t *testing.T) {
	simByID := map[string]float64{"content-1": 0.6}
	got := ResolveSimilarity("ep-1", "content-1", simByID, nil, nil, nil)
	if got != 0.6 {
		t.Errorf("got %v, want 0.6 via content id fallback", got)
	}
}

func TestResolveSimilarityANNMissReturnsNeutral(t *testing.T) {
	simByID := map[string]float64{"other": 0.9}
	got := ResolveSimilarity("ep-1", "", simByID, []float32{1, 0}, nil, nil)
	if got != neutralSimilarity {
		t.Errorf("got %v, want neutral 0.5", got)
	}
}

func TestResolveSimilarityNoUserVectorReturnsNeutral(t *testing.T) {
	got := ResolveSimilarity("ep-1", "", nil, nil, nil, nil)
	if got != neutralSimilarity {
		t.Errorf("got %v, want neutral 0.5", got)
	}
}

func TestResolveSimilarityComputesCosineFromEmbeddings(t *testing.T) {
	embeddings := map[string][]float32{"ep-1": {1, 0}}
	userVector := []float32{1, 0}
	got := ResolveSimilarity("ep-1", "", nil, userVector, embeddings, nil)
	if got != 1.0 {
		t.Errorf("got %v, want 1.0 for identical vectors", got)
	}
}

func TestResolveSimilarityMissingEmbeddingReturnsNeutral(t *testing.T) {
	got := ResolveSimilarity("ep-1", "", nil, []float32{1, 0}, map[string][]float32{}, nil)
	if got != neutralSimilarity {
		t.Errorf("got %v, want neutral 0.5", got)
	}
}
