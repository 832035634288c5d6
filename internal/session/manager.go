// Package session implements the Session Manager: it
// orchestrates the Episode Provider, Engagement Store, Vector Store, and
// the ranking/retrieval packages into CreateSession / LoadMore / Engage,
// and owns the session table's lifecycle (TTL + hard cap + LRU eviction).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/serafis/podreco/internal/config"
	"github.com/serafis/podreco/internal/engagement"
	"github.com/serafis/podreco/internal/model"
	"github.com/serafis/podreco/internal/providers"
	"github.com/serafis/podreco/internal/ranking"
	"github.com/serafis/podreco/internal/retrieval"
	"github.com/serafis/podreco/internal/vectorstore"
)

// ErrSessionNotFound is returned by LoadMore/Engage for an unknown or
// expired session_id.
var ErrSessionNotFound = errors.New("session: not found")

// maxEmbeddingFanout bounds in-flight batched embedding fetches.
const maxEmbeddingFanout = 8

// annQueryTopK is the default top-K for an ANN query when a Vector Store
// is available.
const annQueryTopK = 250

var (
	tracer            = otel.Tracer("podreco/session")
	sessionMeter      = otel.GetMeterProvider().Meter("podreco/session")
	candidatePoolSize otelmetric.Int64Histogram
	queueLength       otelmetric.Int64Histogram
)

func init() {
	var err error
	candidatePoolSize, err = sessionMeter.Int64Histogram("podreco.session.candidate_pool_size")
	if err != nil {
		candidatePoolSize, _ = sessionMeter.Int64Histogram("podreco.session.candidate_pool_size.fallback")
	}
	queueLength, err = sessionMeter.Int64Histogram("podreco.session.queue_length")
	if err != nil {
		queueLength, _ = sessionMeter.Int64Histogram("podreco.session.queue_length.fallback")
	}
}

// entry is one session plus the mutex serializing its mutation.
type entry struct {
	mu      sync.Mutex
	session *model.Session
}

// Manager owns the in-memory session table and coordinates the ranking
// pipeline's external collaborators.
type Manager struct {
	Episodes    providers.EpisodeProvider
	Engagements engagement.Store
	Vectors     vectorstore.Store // may be nil: falls back to in-memory scoring
	Namespace   model.Namespace
	Logger      *slog.Logger

	ttl         time.Duration
	maxSessions int

	mu       sync.RWMutex
	sessions map[string]*entry

	stopOnce sync.Once
	done     chan struct{}
}

// NewManager constructs a Manager and starts its background TTL/LRU sweep.
// Call Close to stop the sweep.
func NewManager(episodes providers.EpisodeProvider, engagements engagement.Store, vectors vectorstore.Store, ns model.Namespace, ttl time.Duration, maxSessions int, sweepInterval time.Duration, logger *slog.Logger) *Manager {
	m := &Manager{
		Episodes:    episodes,
		Engagements: engagements,
		Vectors:     vectors,
		Namespace:   ns,
		Logger:      logger,
		ttl:         ttl,
		maxSessions: maxSessions,
		sessions:    make(map[string]*entry),
		done:        make(chan struct{}),
	}
	go m.sweep(sweepInterval)
	return m
}

// Close stops the background eviction sweep. Safe to call multiple times.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *Manager) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evict()
		}
	}
}

// evict removes sessions past TTL, then (if still over the hard cap) the
// least-recently-accessed sessions until back under the cap.
func (m *Manager) evict() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.ttl)
	for id, e := range m.sessions {
		e.mu.Lock()
		stale := e.session.LastAccessedAt.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(m.sessions, id)
		}
	}

	if len(m.sessions) <= m.maxSessions {
		return
	}

	type idAndAccess struct {
		id     string
		access time.Time
	}
	ordered := make([]idAndAccess, 0, len(m.sessions))
	for id, e := range m.sessions {
		e.mu.Lock()
		ordered = append(ordered, idAndAccess{id: id, access: e.session.LastAccessedAt})
		e.mu.Unlock()
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].access.Before(ordered[j].access) })

	overflow := len(m.sessions) - m.maxSessions
	for i := 0; i < overflow; i++ {
		delete(m.sessions, ordered[i].id)
	}
}

// Page is one page of the wire-shaped episode card list.
type Page struct {
	SessionID      string
	Episodes       []model.ScoredEpisode
	TotalInQueue   int
	ShownCount     int
	RemainingCount int
	ColdStart      bool
	Debug          DebugInfo
}

// DebugInfo surfaces the top-of-queue score samples CreateSession returns,
// a supplemented feature (see SPEC_FULL.md) for callers debugging ranking.
type DebugInfo struct {
	UserVectorEpisodes  int
	TopSimilarityScores []float64
	TopQualityScores    []float64
	TopFinalScores      []float64
}

const defaultPageSize = 10
const maxPageSize = 20

// CreateSession runs the full pipeline and
// persists the resulting queue under a freshly minted session ID.
func (m *Manager) CreateSession(ctx context.Context, engagements []model.Engagement, excludedIDs []string, userID string, categoryAnchorVector []float32, coldStartCategories []string, cfg config.RecommendationConfig) (Page, error) {
	ctx, span := tracer.Start(ctx, "session.create_session")
	defer span.End()

	resolvedEngagements, err := m.Engagements.GetEngagementsForRanking(ctx, userID, engagements)
	if err != nil {
		return Page{}, fmt.Errorf("session: resolve engagements: %w", err)
	}

	excluded := make(map[string]bool, len(excludedIDs)+len(resolvedEngagements))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	contentIDMap, err := m.Episodes.GetEpisodeByContentIDMap(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("session: load content-id map: %w", err)
	}
	resolvedEngagements = resolveEngagementEpisodeIDs(resolvedEngagements, contentIDMap)
	for _, e := range resolvedEngagements {
		excluded[e.EpisodeID] = true
	}

	now := time.Now().UTC()

	var candidates []model.Episode
	var similarityByID map[string]float64

	if m.Vectors != nil {
		candidates, similarityByID, err = m.annCandidatePath(ctx, resolvedEngagements, categoryAnchorVector, excluded, cfg, now)
	} else {
		candidates, similarityByID, err = m.inMemoryCandidatePath(ctx, excluded, cfg, now)
	}
	if err != nil {
		return Page{}, err
	}
	span.SetAttributes(attribute.Int("podreco.candidate_pool_size", len(candidates)))
	candidatePoolSize.Record(ctx, int64(len(candidates)))

	embeddingsByEpisodeID, err := m.fetchEmbeddings(ctx, engagementEpisodeIDs(resolvedEngagements), candidates)
	if err != nil {
		return Page{}, fmt.Errorf("session: fetch embeddings: %w", err)
	}

	coldStart := ranking.ColdStartOptions{
		Enabled:          len(coldStartCategories) > 0,
		TargetCategories: coldStartCategories,
		MinPerCategory:   cfg.MinPerCategory,
		TopN:             cfg.ColdStartWindowSize,
	}

	result := ranking.RankCandidates(resolvedEngagements, candidates, embeddingsByEpisodeID, cfg, categoryAnchorVector, similarityByID, coldStart, now, m.Logger)
	span.SetAttributes(
		attribute.Int("podreco.queue_length", len(result.Queue)),
		attribute.Bool("podreco.cold_start", result.ColdStart),
	)
	queueLength.Record(ctx, int64(len(result.Queue)))

	sessionExcluded := make(map[string]struct{}, len(excluded))
	for id := range excluded {
		sessionExcluded[id] = struct{}{}
	}

	sessionID := uuid.NewString()
	sess := &model.Session{
		SessionID:          sessionID,
		Queue:              result.Queue,
		ShownIndices:       make(map[int]struct{}),
		EngagedIDs:         make(map[string]struct{}),
		ExcludedIDs:        sessionExcluded,
		CreatedAt:          now,
		LastAccessedAt:     now,
		ColdStart:          result.ColdStart,
		UserVectorEpisodes: result.UserVectorEpisodes,
		Config:             cfg,
	}
	for _, e := range resolvedEngagements {
		sess.EngagedIDs[e.EpisodeID] = struct{}{}
	}

	m.mu.Lock()
	m.sessions[sessionID] = &entry{session: sess}
	m.mu.Unlock()

	page := m.takePage(sess, defaultPageSize)
	page.Debug = DebugInfo{
		UserVectorEpisodes:  result.UserVectorEpisodes,
		TopSimilarityScores: result.TopSimilarityScores,
		TopQualityScores:    result.TopQualityScores,
		TopFinalScores:      result.TopFinalScores,
	}
	return page, nil
}

// annCandidatePath issues a single ANN query against the Vector Store with
// the quality/freshness/exclusion filter pushed down. The returned
// (episode_id, score) pairs feed both the candidate set and the
// similarity-by-id map.
func (m *Manager) annCandidatePath(ctx context.Context, engagements []model.Engagement, categoryAnchorVector []float32, excluded map[string]bool, cfg config.RecommendationConfig, now time.Time) ([]model.Episode, map[string]float64, error) {
	excludedList := make([]string, 0, len(excluded))
	for id := range excluded {
		excludedList = append(excludedList, id)
	}

	userVector, err := m.buildQueryVectorForANN(ctx, engagements, categoryAnchorVector, cfg)
	if err != nil {
		return nil, nil, err
	}
	if userVector == nil {
		// No personalization signal yet: fall back to the in-memory path,
		// which still applies the quality/freshness gates via Stage A.
		return m.inMemoryCandidatePath(ctx, excluded, cfg, now)
	}

	filter := vectorstore.Filter{
		MinCredibility: cfg.CredibilityFloor,
		MinCombined:    cfg.CombinedFloor,
		PublishedAfter: now.AddDate(0, 0, -cfg.FreshnessWindowDays).Unix(),
		ExcludedIDs:    excludedList,
	}
	scored, err := m.Vectors.Query(ctx, m.Namespace, userVector, annQueryTopK, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("session: ann query: %w", err)
	}

	ids := make([]string, len(scored))
	similarityByID := make(map[string]float64, len(scored))
	for i, s := range scored {
		ids[i] = s.EpisodeID
		similarityByID[s.EpisodeID] = s.Score
	}

	candidates, err := m.Episodes.GetEpisodes(ctx, providers.Query{EpisodeIDs: ids})
	if err != nil {
		return nil, nil, fmt.Errorf("session: load ann candidates: %w", err)
	}
	return candidates, similarityByID, nil
}

// buildQueryVectorForANN fetches embeddings for the engaged episodes only
// (the candidate-pool vectors are the ANN query's own job) and builds the
// user vector from them.
func (m *Manager) buildQueryVectorForANN(ctx context.Context, engagements []model.Engagement, categoryAnchorVector []float32, cfg config.RecommendationConfig) ([]float32, error) {
	ids := engagementEpisodeIDs(engagements)
	var embeddings map[string][]float32
	if len(ids) > 0 {
		var err error
		embeddings, err = m.batchedFetch(ctx, ids)
		if err != nil {
			return nil, err
		}
	}
	return ranking.BuildUserVector(engagements, embeddings, cfg, categoryAnchorVector, m.Logger), nil
}

// inMemoryCandidatePath runs Stage A over the full catalog snapshot, for
// deployments without a Vector Store (or without a usable query vector
// yet). Similarity is resolved per-candidate by RankCandidates via cosine
// against the engagement embeddings, not a precomputed map.
func (m *Manager) inMemoryCandidatePath(ctx context.Context, excluded map[string]bool, cfg config.RecommendationConfig, now time.Time) ([]model.Episode, map[string]float64, error) {
	catalog, err := m.Episodes.GetEpisodes(ctx, providers.Query{})
	if err != nil {
		return nil, nil, fmt.Errorf("session: load catalog: %w", err)
	}
	candidates := retrieval.CandidatePool(catalog, excluded, cfg, now, m.Logger)
	return candidates, nil, nil
}

// fetchEmbeddings gathers vectors for engagement episodes and candidates in
// batches of at most 100, dispatched with bounded fan-out.
func (m *Manager) fetchEmbeddings(ctx context.Context, engagementIDs []string, candidates []model.Episode) (map[string][]float32, error) {
	ids := make([]string, 0, len(engagementIDs)+len(candidates))
	ids = append(ids, engagementIDs...)
	for _, ep := range candidates {
		ids = append(ids, ep.ID)
	}
	if m.Vectors == nil {
		return nil, nil
	}
	return m.batchedFetch(ctx, ids)
}

// batchedFetch issues FetchByIDs in batches of ≤ 100, with at most
// maxEmbeddingFanout batches in flight at once.
func (m *Manager) batchedFetch(ctx context.Context, ids []string) (map[string][]float32, error) {
	if m.Vectors == nil || len(ids) == 0 {
		return nil, nil
	}
	chunks := vectorstore.ChunkIDs(dedupe(ids))

	var mu sync.Mutex
	out := make(map[string][]float32, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxEmbeddingFanout)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			fetched, err := m.Vectors.FetchByIDs(gctx, m.Namespace, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for id, vec := range fetched {
				out[id] = vec
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// resolveEngagementEpisodeIDs rewrites each engagement's episode_id to the
// canonical episode id when it was actually a content_id.
func resolveEngagementEpisodeIDs(engagements []model.Engagement, contentIDMap map[string]model.Episode) []model.Engagement {
	out := make([]model.Engagement, len(engagements))
	for i, e := range engagements {
		if ep, ok := contentIDMap[e.EpisodeID]; ok {
			e.EpisodeID = ep.ID
		}
		out[i] = e
	}
	return out
}

func engagementEpisodeIDs(engagements []model.Engagement) []string {
	ids := make([]string, len(engagements))
	for i, e := range engagements {
		ids[i] = e.EpisodeID
	}
	return ids
}

// LoadMore walks the persisted queue in order, skipping already-shown
// indices and any candidate now in engaged_ids. Sessions never re-rank.
func (m *Manager) LoadMore(ctx context.Context, sessionID string, limit int) (Page, error) {
	ctx, span := tracer.Start(ctx, "session.load_more",
		trace.WithAttributes(attribute.String("podreco.session_id", sessionID)),
	)
	defer span.End()

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	e, err := m.lookup(sessionID)
	if err != nil {
		return Page{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.LastAccessedAt = time.Now().UTC()
	page := m.takePage(e.session, limit)
	span.SetAttributes(
		attribute.Int("podreco.queue_length", page.TotalInQueue),
		attribute.Int("podreco.remaining_count", page.RemainingCount),
	)
	queueLength.Record(ctx, int64(page.TotalInQueue))
	return page, nil
}

// Engage adds episodeID to engaged_ids and excluded_ids, then delegates to
// the Engagement Store. Does not re-rank.
func (m *Manager) Engage(ctx context.Context, sessionID, episodeID, engagementType, userID string) (int, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.session.EngagedIDs[episodeID] = struct{}{}
	e.session.ExcludedIDs[episodeID] = struct{}{}
	e.session.LastAccessedAt = time.Now().UTC()
	engagedCount := len(e.session.EngagedIDs)
	e.mu.Unlock()

	if err := m.Engagements.RecordEngagement(ctx, userID, model.Engagement{
		UserID:    userID,
		EpisodeID: episodeID,
		Type:      engagementType,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return 0, fmt.Errorf("session: record engagement: %w", err)
	}
	return engagedCount, nil
}

func (m *Manager) lookup(sessionID string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// takePage must be called with the session's mutex held (or during
// CreateSession, before the session is published).
func (m *Manager) takePage(sess *model.Session, limit int) Page {
	episodes := make([]model.ScoredEpisode, 0, limit)
	for i := 0; i < len(sess.Queue) && len(episodes) < limit; i++ {
		if _, shown := sess.ShownIndices[i]; shown {
			continue
		}
		candidate := sess.Queue[i]
		if _, engaged := sess.EngagedIDs[candidate.Episode.ID]; engaged {
			continue
		}
		if candidate.Episode.ContentID != "" {
			if _, engaged := sess.EngagedIDs[candidate.Episode.ContentID]; engaged {
				continue
			}
		}
		sess.ShownIndices[i] = struct{}{}
		episodes = append(episodes, candidate)
	}

	return Page{
		SessionID:      sess.SessionID,
		Episodes:       episodes,
		TotalInQueue:   len(sess.Queue),
		ShownCount:     len(sess.ShownIndices),
		RemainingCount: len(sess.Queue) - len(sess.ShownIndices),
		ColdStart:      sess.ColdStart,
	}
}
