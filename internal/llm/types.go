// Package llm provides text generation over local LLM runtimes.
package llm

import (
	"context"
	"time"
)

// Generation defaults.
const (
	// DefaultTimeout bounds a single generation request.
	DefaultTimeout = 120 * time.Second

	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultModel is the default generation model.
	DefaultModel = "llama3.1:8b"

	// DefaultMaxTokens bounds the length of a single generation.
	DefaultMaxTokens = 2048
)

// Options tunes a single generation call.
type Options struct {
	// Temperature controls sampling randomness. 0 is deterministic.
	Temperature float64

	// MaxTokens caps the number of generated tokens. 0 uses the default.
	MaxTokens int

	// JSONMode requests strict JSON output from the runtime.
	JSONMode bool
}

// StreamFunc receives each generated text delta as it arrives.
type StreamFunc func(delta string)

// Generator produces text completions.
type Generator interface {
	// Generate returns the full completion for a prompt.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// GenerateStream produces a completion incrementally, invoking fn for
	// each delta, and returns the full accumulated text.
	GenerateStream(ctx context.Context, prompt string, opts Options, fn StreamFunc) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the generator is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}
