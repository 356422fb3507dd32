package embed

import (
	"context"
	"log/slog"
)

// FactoryConfig selects and configures an embedding provider.
type FactoryConfig struct {
	// Provider is "ollama", "static", or empty for auto-detection.
	Provider string

	// Ollama holds provider-specific settings.
	Ollama OllamaConfig

	// CacheSize is the LRU embedding cache size. 0 uses the default.
	CacheSize int
}

// NewEmbedder creates an embedder per the configured provider, wrapped in
// an LRU cache. With an empty provider it auto-detects: Ollama when the
// endpoint answers, static otherwise. Answers stay grounded either way;
// only retrieval quality degrades on the static path.
func NewEmbedder(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	var inner Embedder

	switch cfg.Provider {
	case "static":
		inner = NewStaticEmbedder()

	case "ollama":
		ollama, err := NewOllamaEmbedder(ctx, cfg.Ollama)
		if err != nil {
			return nil, err
		}
		inner = ollama

	default:
		// Auto-detect: prefer Ollama, fall back to static
		ollama, err := NewOllamaEmbedder(ctx, cfg.Ollama)
		if err == nil && ollama.Available(ctx) {
			inner = ollama
		} else {
			if err == nil {
				_ = ollama.Close()
			}
			slog.Warn("ollama unreachable, using static embeddings",
				slog.String("host", cfg.Ollama.Host))
			inner = NewStaticEmbedder()
		}
	}

	slog.Info("embedder ready",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
