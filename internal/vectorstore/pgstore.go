package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/serafis/podreco/internal/model"
)

// PGStore implements Store on top of Postgres + pgvector, for deployments
// that fall back to a single-database footprint instead of running a
// dedicated Qdrant service. One table holds all
// namespaces, partitioned logically by a namespace_key column so namespaces
// never interleave in a query.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing pool. The caller owns the pool's lifecycle
// (it is typically shared with the engagement store).
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the backing table and indexes if they don't exist.
// Safe to call repeatedly.
func (s *PGStore) EnsureSchema(ctx context.Context, dims int) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS episode_embeddings (
			namespace_key      text NOT NULL,
			episode_id         text NOT NULL,
			embedding          vector(%d) NOT NULL,
			credibility        int NOT NULL DEFAULT 0,
			combined_score     int NOT NULL DEFAULT 0,
			published_at_unix  bigint NOT NULL DEFAULT 0,
			PRIMARY KEY (namespace_key, episode_id)
		);
		CREATE INDEX IF NOT EXISTS episode_embeddings_ns_idx ON episode_embeddings (namespace_key);
	`, dims))
	if err != nil {
		return fmt.Errorf("vectorstore: ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) HasNamespace(ctx context.Context, ns model.Namespace) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM episode_embeddings WHERE namespace_key = $1 LIMIT 1)`,
		ns.Key(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("vectorstore: check namespace: %w", err)
	}
	return exists, nil
}

func (s *PGStore) Upsert(ctx context.Context, ns model.Namespace, embeddings []model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range embeddings {
		batch.Queue(`
			INSERT INTO episode_embeddings (namespace_key, episode_id, embedding)
			VALUES ($1, $2, $3)
			ON CONFLICT (namespace_key, episode_id) DO UPDATE SET embedding = EXCLUDED.embedding
		`, ns.Key(), e.EpisodeID, pgvector.NewVector(e.Vector))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range embeddings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("vectorstore: upsert batch: %w", err)
		}
	}
	return nil
}

// UpsertMetadata updates the filterable payload fields for a single
// already-upserted episode, keeping vector writes and metadata writes
// independent (embeddings rarely change; quality/recency scores do as an
// episode ages or gets re-scored).
func (s *PGStore) UpsertMetadata(ctx context.Context, ns model.Namespace, episodeID string, credibility, combinedScore int, publishedAtUnix int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE episode_embeddings
		SET credibility = $3, combined_score = $4, published_at_unix = $5
		WHERE namespace_key = $1 AND episode_id = $2
	`, ns.Key(), episodeID, credibility, combinedScore, publishedAtUnix)
	if err != nil {
		return fmt.Errorf("vectorstore: update metadata: %w", err)
	}
	return nil
}

func (s *PGStore) FetchByIDs(ctx context.Context, ns model.Namespace, episodeIDs []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(episodeIDs))
	for _, chunk := range ChunkIDs(episodeIDs) {
		rows, err := s.pool.Query(ctx, `
			SELECT episode_id, embedding FROM episode_embeddings
			WHERE namespace_key = $1 AND episode_id = ANY($2)
		`, ns.Key(), chunk)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: fetch by ids: %w", err)
		}
		for rows.Next() {
			var episodeID string
			var vec pgvector.Vector
			if err := rows.Scan(&episodeID, &vec); err != nil {
				rows.Close()
				return nil, fmt.Errorf("vectorstore: scan fetch row: %w", err)
			}
			out[episodeID] = vec.Slice()
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("vectorstore: fetch rows: %w", err)
		}
	}
	return out, nil
}

func (s *PGStore) Query(ctx context.Context, ns model.Namespace, vector []float32, topK int, filter Filter) ([]ScoredID, error) {
	pushed, overflow := SplitExcludedIDs(filter.ExcludedIDs)
	if pushed == nil {
		pushed = []string{}
	}
	overflowSet := make(map[string]bool, len(overflow))
	for _, id := range overflow {
		overflowSet[id] = true
	}

	fetchLimit := topK
	if len(overflowSet) > 0 {
		fetchLimit *= 3
	}

	rows, err := s.pool.Query(ctx, `
		SELECT episode_id, 1 - (embedding <=> $1) AS score
		FROM episode_embeddings
		WHERE namespace_key = $2
		  AND ($3 <= 0 OR credibility >= $3)
		  AND ($4 <= 0 OR combined_score >= $4)
		  AND ($5 <= 0 OR published_at_unix >= $5)
		  AND NOT (episode_id = ANY($6))
		ORDER BY embedding <=> $1
		LIMIT $7
	`, pgvector.NewVector(vector), ns.Key(), filter.MinCredibility, filter.MinCombined, filter.PublishedAfter, pushed, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	defer rows.Close()

	results := make([]ScoredID, 0, topK)
	for rows.Next() {
		var episodeID string
		var score float64
		if err := rows.Scan(&episodeID, &score); err != nil {
			return nil, fmt.Errorf("vectorstore: scan query row: %w", err)
		}
		if overflowSet[episodeID] {
			continue
		}
		results = append(results, ScoredID{EpisodeID: episodeID, Score: score})
		if len(results) >= topK {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: query rows: %w", err)
	}
	return results, nil
}

func (s *PGStore) Healthy(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("vectorstore: postgres unhealthy: %w", err)
	}
	return nil
}

// Close is a no-op: the pool is owned and closed by whoever constructed it
// (see NewPGStore).
func (s *PGStore) Close() error { return nil }
