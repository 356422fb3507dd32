package agent

import (
	"context"
	"log/slog"

	"github.com/inquira/inquira/internal/llm"
)

// Judge evaluates a candidate answer against the gathered evidence.
type Judge struct {
	gen       llm.Generator
	maxTokens int
}

// NewJudge creates a judge over the given generator.
func NewJudge(gen llm.Generator, maxTokens int) *Judge {
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	return &Judge{gen: gen, maxTokens: maxTokens}
}

// Judge returns the model's verdict on the answer. When the judge stage
// itself is unusable (generation down, output unparseable) the answer
// is accepted with an unverified note rather than burning retry budget
// on a stage that cannot improve the outcome.
func (j *Judge) Judge(ctx context.Context, question, answer string, evidence []Evidence) (*Verdict, error) {
	prompt := buildJudgePrompt(question, answer, evidence)

	raw, err := j.gen.Generate(ctx, prompt, llm.Options{
		Temperature: 0,
		MaxTokens:   j.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("judge generation failed, accepting unverified answer",
			slog.String("error", err.Error()))
		return unverifiedVerdict(), nil
	}

	var verdict Verdict
	if err := decodeValidated(raw, verdictSchema, &verdict); err != nil {
		slog.Warn("judge output invalid, accepting unverified answer",
			slog.String("error", err.Error()))
		return unverifiedVerdict(), nil
	}
	return &verdict, nil
}

func unverifiedVerdict() *Verdict {
	return &Verdict{
		Decision: DecisionAccept,
		Critique: "answer accepted without judge verification",
	}
}
