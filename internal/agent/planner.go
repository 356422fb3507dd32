package agent

import (
	"context"
	"log/slog"
	"strings"

	inqerrors "github.com/inquira/inquira/internal/errors"
	"github.com/inquira/inquira/internal/llm"
)

// PlannerConfig tunes the planning and drafting stages.
type PlannerConfig struct {
	// Temperature for plan generation; drafting runs colder.
	Temperature float64
	MaxTokens   int
	// MaxQueries caps how many retrieval queries one plan may request.
	MaxQueries int
}

// Planner produces retrieval plans and evidence-grounded drafts.
type Planner struct {
	gen    llm.Generator
	config PlannerConfig
}

// NewPlanner creates a planner over the given generator.
func NewPlanner(gen llm.Generator, cfg PlannerConfig) *Planner {
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = DefaultMaxQueriesPerPlan
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = llm.DefaultMaxTokens
	}
	return &Planner{gen: gen, config: cfg}
}

// Plan asks the model for retrieval queries and a seed draft. Critique
// and missing-evidence feedback from a rejected attempt are folded into
// the prompt. When the model's output cannot be used, a single-query
// fallback plan built from the question keeps the run alive.
func (p *Planner) Plan(ctx context.Context, question, critique, missing string, suggested []string, remaining int) (*Plan, error) {
	prompt := buildPlannerPrompt(question, critique, missing, suggested, remaining, p.config.MaxQueries)

	raw, err := p.gen.Generate(ctx, prompt, llm.Options{
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("planner generation failed, using fallback plan",
			slog.String("error", err.Error()))
		return fallbackPlan(question, suggested), nil
	}

	var plan Plan
	if err := decodeValidated(raw, planSchema, &plan); err != nil {
		slog.Warn("planner output invalid, using fallback plan",
			slog.String("error", err.Error()))
		return fallbackPlan(question, suggested), nil
	}

	plan.Queries = sanitizeQueries(plan.Queries, p.config.MaxQueries)
	if len(plan.Queries) == 0 {
		return fallbackPlan(question, suggested), nil
	}
	return &plan, nil
}

// Draft writes an evidence-grounded draft answer.
func (p *Planner) Draft(ctx context.Context, question string, evidence []Evidence) (string, error) {
	prompt := buildDraftPrompt(question, evidence)

	raw, err := p.gen.Generate(ctx, prompt, llm.Options{
		Temperature: 0.2,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", inqerrors.GenerationError("draft generation failed", err)
	}

	draft := extractMarkerBlock(raw, draftMarker)
	if draft == "" {
		return "", inqerrors.New(inqerrors.ErrCodeStageOutputInvalid, "draft stage produced no text", nil)
	}
	return draft, nil
}

// fallbackPlan retrieves with the question itself (plus any judge
// suggestions) when planning is unavailable.
func fallbackPlan(question string, suggested []string) *Plan {
	queries := []SearchCall{{Query: question}}
	for _, q := range suggested {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, SearchCall{Query: q})
		}
	}
	return &Plan{Queries: sanitizeQueries(queries, DefaultMaxQueriesPerPlan)}
}

// sanitizeQueries drops blank queries and enforces the per-plan cap.
func sanitizeQueries(calls []SearchCall, max int) []SearchCall {
	out := make([]SearchCall, 0, len(calls))
	for _, c := range calls {
		c.Query = strings.TrimSpace(c.Query)
		if c.Query == "" {
			continue
		}
		out = append(out, c)
		if len(out) == max {
			break
		}
	}
	return out
}
