package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/serafis/podreco/internal/model"
	"github.com/serafis/podreco/internal/scoreutil"
)

// memoryRecord is one upserted vector plus the payload fields Query filters
// against.
type memoryRecord struct {
	vector        []float32
	credibility   int
	combinedScore int
	publishedAt   int64
}

// MemoryStore is an in-process Store, used in tests and for file-backed
// deployments that don't run a separate ANN service. Query does a brute
// force cosine scan, which is fine at catalog sizes this deployment targets
//.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]memoryRecord // namespace key -> episode id -> record
}

// NewMemoryStore returns an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]memoryRecord)}
}

func (m *MemoryStore) HasNamespace(ctx context.Context, ns model.Namespace) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[ns.Key()]
	return ok, nil
}

// UpsertWithMetadata stores vectors along with the filterable fields Query
// pushes down. Upsert (the Store interface method) writes only the vector:
// metadata already stored for an episode is kept, and a new episode gets
// zero-value metadata. Callers that need filtering use this method.
func (m *MemoryStore) UpsertWithMetadata(ns model.Namespace, episodeID string, vector []float32, credibility, combinedScore int, publishedAtUnix int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ns.Key()
	if m.data[key] == nil {
		m.data[key] = make(map[string]memoryRecord)
	}
	m.data[key][episodeID] = memoryRecord{
		vector:        vector,
		credibility:   credibility,
		combinedScore: combinedScore,
		publishedAt:   publishedAtUnix,
	}
}

func (m *MemoryStore) Upsert(ctx context.Context, ns model.Namespace, embeddings []model.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ns.Key()
	if m.data[key] == nil {
		m.data[key] = make(map[string]memoryRecord)
	}
	for _, e := range embeddings {
		existing := m.data[key][e.EpisodeID]
		existing.vector = e.Vector
		m.data[key][e.EpisodeID] = existing
	}
	return nil
}

func (m *MemoryStore) FetchByIDs(ctx context.Context, ns model.Namespace, episodeIDs []string) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]float32, len(episodeIDs))
	bucket := m.data[ns.Key()]
	for _, chunk := range ChunkIDs(episodeIDs) {
		for _, id := range chunk {
			if rec, ok := bucket[id]; ok {
				out[id] = rec.vector
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) Query(ctx context.Context, ns model.Namespace, vector []float32, topK int, filter Filter) ([]ScoredID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	excluded := make(map[string]bool, len(filter.ExcludedIDs))
	for _, id := range filter.ExcludedIDs {
		excluded[id] = true
	}

	var results []ScoredID
	for episodeID, rec := range m.data[ns.Key()] {
		if excluded[episodeID] {
			continue
		}
		if filter.MinCredibility > 0 && rec.credibility < filter.MinCredibility {
			continue
		}
		if filter.MinCombined > 0 && rec.combinedScore < filter.MinCombined {
			continue
		}
		if filter.PublishedAfter > 0 && rec.publishedAt < filter.PublishedAfter {
			continue
		}
		score := scoreutil.Clamp01(scoreutil.CosineSimilarity(vector, rec.vector))
		results = append(results, ScoredID{EpisodeID: episodeID, Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryStore) Healthy(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
