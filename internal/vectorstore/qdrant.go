package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/serafis/podreco/internal/model"
)

// episodeIDNamespace is a fixed UUID namespace used to derive deterministic
// Qdrant point IDs from arbitrary episode ID strings (qdrant point IDs must
// be a UUID or unsigned integer).
var episodeIDNamespace = uuid.MustParse("6f8c6b2e-6e4b-4c2e-9d1a-6a2b3c4d5e6f")

// QdrantConfig holds connection settings for a Qdrant deployment. One
// physical collection per namespace is used — see collectionName.
type QdrantConfig struct {
	URL    string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey string
	Dims   uint64
}

// QdrantStore implements Store backed by Qdrant, namespacing vectors into
// one collection per (algorithm_version, strategy_version, dataset_version)
// triple so namespaces never interleave.
type QdrantStore struct {
	client *qdrant.Client
	dims   uint64
	logger *slog.Logger

	collectionsMu sync.Mutex
	ensured       map[string]bool

	healthMu  sync.Mutex
	lastCheck time.Time
	lastErr   error
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("vectorstore: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("vectorstore: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantStore connects to Qdrant via gRPC.
func NewQdrantStore(cfg QdrantConfig, logger *slog.Logger) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantStore{
		client:  client,
		dims:    cfg.Dims,
		logger:  logger,
		ensured: make(map[string]bool),
	}, nil
}

// collectionName maps a namespace to its dedicated collection.
func collectionName(ns model.Namespace) string {
	return "podreco_episodes__" + ns.Key()
}

// HasNamespace reports whether the namespace's collection already exists.
func (q *QdrantStore) HasNamespace(ctx context.Context, ns model.Namespace) (bool, error) {
	exists, err := q.client.CollectionExists(ctx, collectionName(ns))
	if err != nil {
		return false, fmt.Errorf("vectorstore: check collection exists: %w", err)
	}
	return exists, nil
}

// ensureCollection creates the namespace's collection (with payload
// indexes for the filters Query pushes down) if it doesn't exist yet.
func (q *QdrantStore) ensureCollection(ctx context.Context, ns model.Namespace) error {
	name := collectionName(ns)

	q.collectionsMu.Lock()
	if q.ensured[name] {
		q.collectionsMu.Unlock()
		return nil
	}
	q.collectionsMu.Unlock()

	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection exists: %w", err)
	}
	if !exists {
		m := uint64(16)
		efConstruct := uint64(128)

		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     q.dims,
				Distance: qdrant.Distance_Cosine,
				HnswConfig: &qdrant.HnswConfigDiff{
					M:           &m,
					EfConstruct: &efConstruct,
				},
			}),
		}); err != nil {
			return fmt.Errorf("vectorstore: create collection %q: %w", name, err)
		}

		keywordType := qdrant.FieldType_FieldTypeKeyword
		if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      "episode_id",
			FieldType:      &keywordType,
		}); err != nil {
			return fmt.Errorf("vectorstore: create index on episode_id: %w", err)
		}

		floatType := qdrant.FieldType_FieldTypeFloat
		for _, field := range []string{"credibility", "combined_score", "published_at_unix"} {
			if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: name,
				FieldName:      field,
				FieldType:      &floatType,
			}); err != nil {
				return fmt.Errorf("vectorstore: create index on %q: %w", field, err)
			}
		}

		if q.logger != nil {
			q.logger.Info("vectorstore: created qdrant collection", "collection", name, "dims", q.dims)
		}
	}

	q.collectionsMu.Lock()
	q.ensured[name] = true
	q.collectionsMu.Unlock()
	return nil
}

// Upsert writes embeddings into the namespace's collection, payload-tagging
// each point with its episode_id only. The credibility, combined_score and
// published_at_unix fields that Query's range conditions read are not
// written here.
func (q *QdrantStore) Upsert(ctx context.Context, ns model.Namespace, embeddings []model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, ns); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(embeddings))
	for i, e := range embeddings {
		payload := map[string]any{
			"episode_id": e.EpisodeID,
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointUUID(e.EpisodeID)),
			Vectors: qdrant.NewVectorsDense(e.Vector),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName(ns),
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: qdrant upsert %d points: %w", len(embeddings), err)
	}
	return nil
}

// FetchByIDs retrieves vectors for specific episode IDs, chunked into
// batches of at most 100.
func (q *QdrantStore) FetchByIDs(ctx context.Context, ns model.Namespace, episodeIDs []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(episodeIDs))
	for _, chunk := range ChunkIDs(episodeIDs) {
		ids := make([]*qdrant.PointId, len(chunk))
		for i, id := range chunk {
			ids[i] = qdrant.NewID(pointUUID(id))
		}
		resp, err := q.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: collectionName(ns),
			Ids:            ids,
			WithVectors:    qdrant.NewWithVectors(true),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("vectorstore: qdrant get %d points: %w", len(chunk), err)
		}
		for _, p := range resp {
			episodeID := p.GetPayload()["episode_id"].GetStringValue()
			if episodeID == "" {
				continue
			}
			out[episodeID] = p.GetVectors().GetVector().GetData()
		}
	}
	return out, nil
}

// Query runs an ANN search within the namespace, applying the credibility /
// combined-score / published-after / excluded-ids filter pushdown.
// Over-fetches to compensate for excluded IDs that cannot be pushed into
// the filter once past maxExcludedIDsPerQuery.
func (q *QdrantStore) Query(ctx context.Context, ns model.Namespace, vector []float32, topK int, filter Filter) ([]ScoredID, error) {
	if err := q.ensureCollection(ctx, ns); err != nil {
		return nil, err
	}

	must := []*qdrant.Condition{}
	if filter.MinCredibility > 0 {
		must = append(must, qdrant.NewRange("credibility", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(filter.MinCredibility)),
		}))
	}
	if filter.MinCombined > 0 {
		must = append(must, qdrant.NewRange("combined_score", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(filter.MinCombined)),
		}))
	}
	if filter.PublishedAfter > 0 {
		must = append(must, qdrant.NewRange("published_at_unix", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(filter.PublishedAfter)),
		}))
	}

	pushedExcluded, overflow := SplitExcludedIDs(filter.ExcludedIDs)
	mustNot := []*qdrant.Condition{}
	if len(pushedExcluded) == 1 {
		mustNot = append(mustNot, qdrant.NewMatch("episode_id", pushedExcluded[0]))
	} else if len(pushedExcluded) > 1 {
		mustNot = append(mustNot, qdrant.NewMatchKeywords("episode_id", pushedExcluded...))
	}

	overflowSet := make(map[string]bool, len(overflow))
	for _, id := range overflow {
		overflowSet[id] = true
	}

	fetchLimit := uint64(topK)
	if len(overflowSet) > 0 {
		fetchLimit *= 3 // compensate for post-filtering the overflow exclusions
	}

	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName(ns),
		Query:          qdrant.NewQueryDense(vector),
		Filter:         &qdrant.Filter{Must: must, MustNot: mustNot},
		Limit:          &fetchLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: qdrant query: %w", err)
	}

	results := make([]ScoredID, 0, topK)
	for _, sp := range scored {
		episodeID := sp.GetPayload()["episode_id"].GetStringValue()
		if episodeID == "" || overflowSet[episodeID] {
			continue
		}
		results = append(results, ScoredID{EpisodeID: episodeID, Score: float64(sp.Score)})
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

// Healthy returns nil if Qdrant is reachable. Cached for 5 seconds to
// avoid hammering the health endpoint on every request.
func (q *QdrantStore) Healthy(ctx context.Context) error {
	q.healthMu.Lock()
	defer q.healthMu.Unlock()

	if time.Since(q.lastCheck) < 5*time.Second {
		return q.lastErr
	}

	_, err := q.client.HealthCheck(ctx)
	q.lastCheck = time.Now()
	if err != nil {
		q.lastErr = fmt.Errorf("vectorstore: qdrant unhealthy: %w", err)
	} else {
		q.lastErr = nil
	}
	return q.lastErr
}

// Close shuts down the Qdrant gRPC connection.
func (q *QdrantStore) Close() error {
	return q.client.Close()
}

// pointUUID derives a stable, deterministic point ID from an episode ID.
// Qdrant point IDs must be a UUID or unsigned integer; episode IDs are
// arbitrary strings, so they travel in the payload and the point ID itself
// is an opaque UUIDv5 derived from it.
func pointUUID(episodeID string) string {
	return uuid.NewSHA1(episodeIDNamespace, []byte(episodeID)).String()
}
