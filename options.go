package podreco

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger            *slog.Logger
	version           string
	databaseURL       string
	sqliteDSN         string
	embeddingProvider EmbeddingProvider
	eventHooks        []EventHook
	categoryAnchor    []float32
}

// WithLogger sets the structured logger for the App. If not set, the
// default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in telemetry and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithDatabaseURL overrides the Postgres connection string from config
// (DATABASE_URL env var), used for the engagement store.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithSQLiteDSN overrides the modernc.org/sqlite DSN from config
// (PODRECO_SQLITE_DSN env var), used for the document-store episode
// provider.
func WithSQLiteDSN(dsn string) Option {
	return func(o *resolvedOptions) { o.sqliteDSN = dsn }
}

// WithEmbeddingProvider replaces the auto-detected embedding provider
// (OpenAI/Ollama/noop).
func WithEmbeddingProvider(p EmbeddingProvider) Option {
	return func(o *resolvedOptions) { o.embeddingProvider = p }
}

// WithEventHook registers an event hook to receive session lifecycle
// notifications. Multiple hooks may be registered; all receive every
// event.
func WithEventHook(hook EventHook) Option {
	return func(o *resolvedOptions) { o.eventHooks = append(o.eventHooks, hook) }
}

// WithCategoryAnchorVector sets the category anchor vector blended into
// every user vector built from engagement history. Omit it to run
// with no category anchoring.
func WithCategoryAnchorVector(v []float32) Option {
	return func(o *resolvedOptions) { o.categoryAnchor = v }
}
