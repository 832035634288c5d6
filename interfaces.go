package podreco

import "context"

// EmbeddingProvider generates vector embeddings from text. When supplied
// via WithEmbeddingProvider, replaces the auto-detected OpenAI/Ollama/noop
// provider. Uses []float32 so external consumers never need to import
// internal/embedding.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// EventHook receives async notifications when a recommendation session
// lifecycle event occurs. Hook methods run in goroutines — they must not
// block indefinitely. Failures are logged but never fail the originating
// call.
type EventHook interface {
	OnSessionCreated(ctx context.Context, sessionID string, coldStart bool) error
	OnEngagement(ctx context.Context, sessionID string, e Engagement) error
}
