package agent

import (
	"context"
	"log/slog"

	"github.com/inquira/inquira/internal/llm"
)

// Synthesizer polishes a draft for presentation. It reformats only; the
// draft carries all claims.
type Synthesizer struct {
	gen       llm.Generator
	maxTokens int
}

// NewSynthesizer creates a synthesizer over the given generator.
func NewSynthesizer(gen llm.Generator, maxTokens int) *Synthesizer {
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	return &Synthesizer{gen: gen, maxTokens: maxTokens}
}

// Synthesize returns the polished answer, streaming deltas to fn when
// it is non-nil. A failed polish falls back to the raw draft: the draft
// is already a complete answer, formatting must not lose it.
func (s *Synthesizer) Synthesize(ctx context.Context, question, draft string, fn llm.StreamFunc) (string, error) {
	prompt := buildSynthesizerPrompt(question, draft)

	streamed := false
	wrapped := fn
	if fn != nil {
		wrapped = func(delta string) {
			streamed = true
			fn(delta)
		}
	}

	answer, err := s.gen.GenerateStream(ctx, prompt, llm.Options{
		Temperature: 0.1,
		MaxTokens:   s.maxTokens,
	}, wrapped)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Warn("synthesis failed, returning unpolished draft",
			slog.String("error", err.Error()))
		if fn != nil && !streamed {
			fn(draft)
		}
		return draft, nil
	}
	if answer == "" {
		return draft, nil
	}
	return answer, nil
}
