package embedding

import "fmt"

// NewFromConfig selects a Provider implementation from the declared
// PODRECO_EMBEDDING_PROVIDER setting:
//
//   - "openai": requires an API key, fails fast if absent.
//   - "ollama": points at a local/self-hosted Ollama server.
//   - "noop":   always reports ErrNoProvider; used in tests and for
//     deployments that only want Stage A recency/quality ranking.
//   - "auto":   prefers OpenAI when an API key is present, else falls
//     back to Ollama, so operators get a working default without having
//     to set the provider explicitly.
func NewFromConfig(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.Model, cfg.Dimensions)
	case "ollama":
		return NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimensions), nil
	case "noop":
		return NewNoopProvider(cfg.Dimensions), nil
	case "auto", "":
		if cfg.OpenAIAPIKey != "" {
			return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.Model, cfg.Dimensions)
		}
		return NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q (want auto, openai, ollama, or noop)", cfg.Provider)
	}
}

// Config is the subset of application configuration the factory needs to
// pick and construct a Provider. Kept local to this package (rather than
// importing internal/config) to avoid a dependency cycle since
// internal/config is imported by nearly everything else.
type Config struct {
	Provider     string
	OpenAIAPIKey string
	Model        string
	Dimensions   int
	OllamaURL    string
	OllamaModel  string
}
