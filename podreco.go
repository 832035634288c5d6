// Package podreco is the public API for embedding the podcast episode
// recommendation pipeline.
//
// Host applications import this package to construct and run the
// pipeline without forking it:
//
//	app, err := podreco.New(
//	    podreco.WithVersion(version),
//	    podreco.WithLogger(logger),
//	    podreco.WithCategoryAnchorVector(anchor),
//	)
//	if err != nil { ... }
//	defer app.Close()
//
//	page, err := app.CreateSession(ctx, nil, nil, "")
//
// The import graph enforces a strict no-cycle rule: podreco (root) imports
// internal/*, but internal/* never imports podreco (root). Public types
// (Episode, Engagement, Page) are standalone structs with no internal
// imports; conversion helpers (toPublicEpisode, toModelEngagements) live
// here because this is the only file that sees both sides of the
// boundary.
package podreco

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/serafis/podreco/internal/config"
	"github.com/serafis/podreco/internal/embedding"
	"github.com/serafis/podreco/internal/engagement"
	"github.com/serafis/podreco/internal/model"
	"github.com/serafis/podreco/internal/providers"
	"github.com/serafis/podreco/internal/session"
	"github.com/serafis/podreco/internal/telemetry"
	"github.com/serafis/podreco/internal/vectorstore"
)

// App is the recommendation pipeline lifecycle. Construct with New(),
// tear down with Close(). App has no public fields — use New() options to
// configure it.
type App struct {
	cfg            config.Config
	manager        *session.Manager
	engagements    engagement.Store
	vectors        vectorstore.Store // nil when no backend is configured
	pool           *pgxpool.Pool     // nil unless the engagement store needs Postgres
	embedder       embedding.Provider
	otelShutdown   func(context.Context) error
	hooks          []EventHook
	categoryAnchor []float32
	logger         *slog.Logger
	version        string
}

// New initializes the pipeline: it loads episodes, connects to the
// configured engagement/vector backends, and wires the session manager.
// It does not start any background HTTP listeners — this is a library,
// not a server; see cmd/podreco for the MCP server that embeds it.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.sqliteDSN != "" {
		cfg.SQLiteDSN = o.sqliteDSN
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("podreco starting", "version", version, "embedding_provider", cfg.EmbeddingProvider)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Embedding provider — external override takes priority over config-driven selection.
	var embedder embedding.Provider
	if o.embeddingProvider != nil {
		embedder = &embeddingAdapter{p: o.embeddingProvider}
	} else {
		embedder, err = embedding.NewFromConfig(embedding.Config{
			Provider:     cfg.EmbeddingProvider,
			OpenAIAPIKey: cfg.OpenAIAPIKey,
			Model:        cfg.EmbeddingModel,
			Dimensions:   cfg.EmbeddingDimensions,
			OllamaURL:    cfg.OllamaURL,
			OllamaModel:  cfg.OllamaModel,
		})
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("embedding: %w", err)
		}
	}
	logger.Info("embedding provider ready", "dimensions", embedder.Dimensions())

	// Episode provider.
	episodeProvider, err := newEpisodeProvider(cfg)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("episode provider: %w", err)
	}

	// Engagement store + Postgres pool, when configured.
	var pool *pgxpool.Pool
	var engStore engagement.Store
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		pgEng := engagement.NewPostgresStore(pool, logger, cfg.EngagementBufferSize, cfg.EngagementFlushTimeout)
		if err := pgEng.EnsureSchema(context.Background()); err != nil {
			pool.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("engagement schema: %w", err)
		}
		pgEng.Start(context.Background())
		engStore = pgEng
		logger.Info("engagement store: postgres (buffered writes)")
	} else {
		engStore = engagement.NewMemoryStore()
		logger.Info("engagement store: in-memory (no DATABASE_URL)")
	}

	// Vector store, when configured.
	vectors, err := newVectorStore(cfg, logger, pool)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("vector store: %w", err)
	}

	ns := model.Namespace{
		AlgorithmVersion: cfg.AlgorithmVersion,
		StrategyVersion:  embedding.StrategyVersion,
		DatasetVersion:   cfg.DatasetVersion,
	}

	mgr := session.NewManager(episodeProvider, engStore, vectors, ns, cfg.SessionTTL, cfg.SessionMaxCount, cfg.SessionSweepInterval, logger)

	return &App{
		cfg:            cfg,
		manager:        mgr,
		engagements:    engStore,
		vectors:        vectors,
		pool:           pool,
		embedder:       embedder,
		otelShutdown:   otelShutdown,
		hooks:          o.eventHooks,
		categoryAnchor: o.categoryAnchor,
		logger:         logger,
		version:        version,
	}, nil
}

// CreateSession resolves engagement history, builds a user vector, runs
// the ranking pipeline, and returns the first page of a fresh session.
func (a *App) CreateSession(ctx context.Context, engagements []Engagement, excludedIDs []string, userID string) (Page, error) {
	page, err := a.manager.CreateSession(ctx, toModelEngagements(engagements), excludedIDs, userID, a.categoryAnchor, nil, config.DefaultRecommendationConfig())
	if err != nil {
		return Page{}, err
	}
	for _, h := range a.hooks {
		h := h
		go func() {
			if err := h.OnSessionCreated(context.Background(), page.SessionID, page.ColdStart); err != nil {
				a.logger.Warn("event hook OnSessionCreated failed", "error", err)
			}
		}()
	}
	return toPublicPage(page), nil
}

// LoadMore walks the persisted ranked queue for sessionID, skipping shown
// or engaged episodes, without ever re-ranking.
func (a *App) LoadMore(ctx context.Context, sessionID string, limit int) (Page, error) {
	page, err := a.manager.LoadMore(ctx, sessionID, limit)
	if err != nil {
		return Page{}, err
	}
	return toPublicPage(page), nil
}

// Engage records an engagement against sessionID and excludes the episode
// from future pages in that session. Returns the session's engaged count.
func (a *App) Engage(ctx context.Context, sessionID, episodeID, engagementType, userID string) (int, error) {
	count, err := a.manager.Engage(ctx, sessionID, episodeID, engagementType, userID)
	if err != nil {
		return 0, err
	}
	for _, h := range a.hooks {
		h := h
		go func() {
			e := Engagement{UserID: userID, EpisodeID: episodeID, Type: engagementType}
			if err := h.OnEngagement(context.Background(), sessionID, e); err != nil {
				a.logger.Warn("event hook OnEngagement failed", "error", err)
			}
		}()
	}
	return count, nil
}

// Close stops background goroutines (session sweep, engagement buffer
// flush loop) and releases the Postgres pool and OTEL providers.
func (a *App) Close() error {
	a.logger.Info("podreco shutting down")
	if err := a.manager.Close(); err != nil {
		a.logger.Warn("session manager close error", "error", err)
	}
	if pg, ok := a.engagements.(*engagement.PostgresStore); ok {
		pg.Drain(context.Background())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.otelShutdown(context.Background())
	a.logger.Info("podreco stopped")
	return nil
}

// ── Adapters (defined here because this file imports both sides) ───────────

// embeddingAdapter wraps a public EmbeddingProvider to satisfy the
// internal embedding.Provider interface.
type embeddingAdapter struct {
	p EmbeddingProvider
}

func (a *embeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return a.p.Embed(ctx, text)
}

func (a *embeddingAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return a.p.EmbedBatch(ctx, texts)
}

func (a *embeddingAdapter) Dimensions() int { return a.p.Dimensions() }

// ── Type converters ──────────────────────────────────────────────────────

func toModelEngagements(es []Engagement) []model.Engagement {
	if es == nil {
		return nil
	}
	out := make([]model.Engagement, len(es))
	for i, e := range es {
		out[i] = model.Engagement{UserID: e.UserID, EpisodeID: e.EpisodeID, Type: e.Type, Timestamp: e.Timestamp}
	}
	return out
}

func toPublicEpisode(e model.Episode) Episode {
	return Episode{
		ID:            e.ID,
		ContentID:     e.ContentID,
		Title:         e.Title,
		PublishedAt:   e.PublishedAt,
		Credibility:   e.Scores.Credibility,
		Insight:       e.Scores.Insight,
		Information:   e.Scores.Information,
		Entertainment: e.Scores.Entertainment,
		SeriesID:      e.Series.ID,
		SeriesName:    e.Series.Name,
		Categories:    e.Categories.Major,
		KeyInsight:    e.KeyInsight,
	}
}

func toPublicPage(p session.Page) Page {
	episodes := make([]RankedEpisode, len(p.Episodes))
	for i, se := range p.Episodes {
		episodes[i] = RankedEpisode{
			Episode:         toPublicEpisode(se.Episode),
			SimilarityScore: se.SimilarityScore,
			QualityScore:    se.QualityScore,
			RecencyScore:    se.RecencyScore,
			FinalScore:      se.FinalScore,
			Badges:          se.Badges,
			QueuePosition:   se.QueuePosition,
		}
	}
	out := Page{
		SessionID:      p.SessionID,
		Episodes:       episodes,
		TotalInQueue:   p.TotalInQueue,
		ShownCount:     p.ShownCount,
		RemainingCount: p.RemainingCount,
		ColdStart:      p.ColdStart,
	}
	out.Debug = &DebugInfo{
		UserVectorEpisodes:  p.Debug.UserVectorEpisodes,
		TopSimilarityScores: p.Debug.TopSimilarityScores,
		TopQualityScores:    p.Debug.TopQualityScores,
		TopFinalScores:      p.Debug.TopFinalScores,
	}
	return out
}

// ── Helpers ──────────────────────────────────────────────────────────────

func newEpisodeProvider(cfg config.Config) (providers.EpisodeProvider, error) {
	switch cfg.EpisodeSource {
	case "file":
		if cfg.EpisodeFilePath == "" {
			return nil, fmt.Errorf("PODRECO_EPISODE_FILE is required when PODRECO_EPISODE_SOURCE=file")
		}
		return providers.LoadFileProvider(cfg.EpisodeFilePath)
	case "sqlite", "":
		return providers.OpenSQLiteProvider(cfg.SQLiteDSN)
	default:
		return nil, fmt.Errorf("unknown episode source %q (want sqlite or file)", cfg.EpisodeSource)
	}
}

func newVectorStore(cfg config.Config, logger *slog.Logger, pool *pgxpool.Pool) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case "qdrant":
		return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			URL:    cfg.QdrantURL,
			APIKey: cfg.QdrantAPIKey,
			Dims:   uint64(cfg.EmbeddingDimensions), //nolint:gosec // validated positive in config.Validate
		}, logger)
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("PODRECO_VECTOR_BACKEND=postgres requires DATABASE_URL")
		}
		pg := vectorstore.NewPGStore(pool)
		if err := pg.EnsureSchema(context.Background(), cfg.EmbeddingDimensions); err != nil {
			return nil, err
		}
		return pg, nil
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	case "auto", "":
		if cfg.QdrantURL != "" {
			logger.Info("vector store: qdrant (auto-detected)")
			return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
				URL:    cfg.QdrantURL,
				APIKey: cfg.QdrantAPIKey,
				Dims:   uint64(cfg.EmbeddingDimensions), //nolint:gosec // validated positive in config.Validate
			}, logger)
		}
		logger.Warn("vector store: none configured — falling back to in-memory Stage A candidate pool (no ANN query)")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q (want auto, qdrant, postgres, or memory)", cfg.VectorBackend)
	}
}
