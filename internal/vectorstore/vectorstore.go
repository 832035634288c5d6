// Package vectorstore defines the Vector Store collaborator contract
// and its concrete adapters: Qdrant (ANN), Postgres/pgvector,
// and an in-memory fallback for tests and file-backed deployments.
package vectorstore

import (
	"context"

	"github.com/serafis/podreco/internal/model"
)

// Filter is an AND of optional predicates applied server-side by an ANN
// query.
// At most 10,000 ExcludedIDs are pushed into the ANN filter; adapters
// apply any overflow themselves as a post-filter on the results.
type Filter struct {
	MinCredibility int
	MinCombined    int
	PublishedAfter int64 // unix seconds
	ExcludedIDs    []string
}

// ScoredID is one (episode_id, score) result from an ANN query, score
// already cosine-derived and normalized to [0,1].
type ScoredID struct {
	EpisodeID string
	Score     float64
}

// Store is the Vector Store collaborator interface. Implementations are
// namespaced by the (algorithm_version, strategy_version, dataset_version)
// triple — see model.Namespace — and must never let two namespaces'
// vectors interleave.
type Store interface {
	HasNamespace(ctx context.Context, ns model.Namespace) (bool, error)
	Upsert(ctx context.Context, ns model.Namespace, embeddings []model.Embedding) error
	FetchByIDs(ctx context.Context, ns model.Namespace, episodeIDs []string) (map[string][]float32, error)
	Query(ctx context.Context, ns model.Namespace, vector []float32, topK int, filter Filter) ([]ScoredID, error)
	Healthy(ctx context.Context) error
	Close() error
}

// maxFetchBatch bounds a single FetchByIDs call
// ("batched (≤ 100 per call)").
const maxFetchBatch = 100

// maxExcludedIDsPerQuery bounds the exclusion list pushed into an ANN
// query filter; the adapter applies the overflow as a post-filter.
const maxExcludedIDsPerQuery = 10000

// ChunkIDs splits ids into batches no larger than maxFetchBatch, the
// shared helper FetchByIDs implementations use to respect the batching
// contract.
func ChunkIDs(ids []string) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var chunks [][]string
	for len(ids) > 0 {
		n := maxFetchBatch
		if n > len(ids) {
			n = len(ids)
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}

// SplitExcludedIDs returns the portion of excluded to push into the ANN
// filter (bounded by maxExcludedIDsPerQuery) and any overflow the caller
// must apply as a post-filter.
func SplitExcludedIDs(excluded []string) (pushed, overflow []string) {
	if len(excluded) <= maxExcludedIDsPerQuery {
		return excluded, nil
	}
	return excluded[:maxExcludedIDsPerQuery], excluded[maxExcludedIDsPerQuery:]
}
