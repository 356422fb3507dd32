package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	inqerrors "github.com/inquira/inquira/internal/errors"
	"github.com/inquira/inquira/internal/llm"
)

// planStage, toolStage, synthStage and judgeStage are the orchestrator's
// view of its collaborators; the concrete Planner/Executor/Synthesizer/
// Judge satisfy them.
type planStage interface {
	Plan(ctx context.Context, question, critique, missing string, suggested []string, remaining int) (*Plan, error)
	Draft(ctx context.Context, question string, evidence []Evidence) (string, error)
}

type toolStage interface {
	Execute(ctx context.Context, session *Session, calls []SearchCall, events EventFunc, attempt int) error
}

type synthStage interface {
	Synthesize(ctx context.Context, question, draft string, fn llm.StreamFunc) (string, error)
}

type judgeStage interface {
	Judge(ctx context.Context, question, answer string, evidence []Evidence) (*Verdict, error)
}

var (
	_ planStage  = (*Planner)(nil)
	_ toolStage  = (*Executor)(nil)
	_ synthStage = (*Synthesizer)(nil)
	_ judgeStage = (*Judge)(nil)
)

// OrchestratorConfig bounds a run.
type OrchestratorConfig struct {
	// RetryLimit is how many times a rejected answer may be retried
	// after the initial attempt.
	RetryLimit int

	// StageTimeout bounds each individual stage.
	StageTimeout time.Duration
}

// Orchestrator drives the bounded plan → retrieve → draft → synthesize
// → judge loop for one question at a time.
type Orchestrator struct {
	planner     planStage
	executor    toolStage
	synthesizer synthStage
	judge       judgeStage
	config      OrchestratorConfig
}

// NewOrchestrator wires the stages together.
func NewOrchestrator(planner *Planner, executor *Executor, synthesizer *Synthesizer, judge *Judge, cfg OrchestratorConfig) *Orchestrator {
	return newOrchestrator(planner, executor, synthesizer, judge, cfg)
}

func newOrchestrator(planner planStage, executor toolStage, synthesizer synthStage, judge judgeStage, cfg OrchestratorConfig) *Orchestrator {
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = DefaultRetryLimit
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	return &Orchestrator{
		planner:     planner,
		executor:    executor,
		synthesizer: synthesizer,
		judge:       judge,
		config:      cfg,
	}
}

// Run answers one question. The loop always terminates: either the
// judge accepts, or the retry budget runs out and the best draft is
// returned with Degraded set. events and stream may be nil.
func (o *Orchestrator) Run(ctx context.Context, question string, events EventFunc, stream llm.StreamFunc) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, inqerrors.New(inqerrors.ErrCodeInvalidInput, "question is empty", nil)
	}

	session := NewSession(question)
	var critique, missing string
	var suggested []string
	var bestAnswer string

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := o.config.RetryLimit - session.Retries

		emit(events, StageEvent{Type: EventPlanning, State: StatePlanning, Attempt: attempt, Text: question})
		plan, err := o.plan(ctx, question, critique, missing, suggested, remaining)
		if err != nil {
			return nil, err
		}

		// Only the final attempt streams deltas to the caller; earlier
		// attempts may be rejected and replaced.
		var stageStream llm.StreamFunc
		if stream != nil && remaining == 0 {
			stageStream = stream
		}

		if err := o.executeTools(ctx, session, plan.Queries, events, attempt); err != nil {
			return nil, err
		}

		emit(events, StageEvent{Type: EventDraft, State: StateDrafting, Attempt: attempt})
		draft, err := o.draft(ctx, question, session.Evidence)
		if err != nil {
			return nil, err
		}
		session.Draft = draft

		answer, err := o.synthesize(ctx, question, draft, stageStream, events, attempt)
		if err != nil {
			return nil, err
		}
		bestAnswer = answer

		verdict, err := o.judgeAnswer(ctx, question, answer, session.Evidence)
		if err != nil {
			return nil, err
		}
		session.LastVerdict = verdict
		session.Verdicts = append(session.Verdicts, *verdict)
		emit(events, StageEvent{
			Type: EventJudgeVerdict, State: StateJudging, Attempt: attempt,
			Text: string(verdict.Decision),
		})

		if verdict.Decision == DecisionAccept {
			if stream != nil && stageStream == nil {
				stream(answer)
			}
			return o.finish(session, answer, StateAccepted, events), nil
		}

		if session.Retries >= o.config.RetryLimit {
			slog.Warn("retry budget exhausted, returning best draft",
				slog.String("session", session.ID),
				slog.Int("retries", session.Retries))
			if stream != nil && stageStream == nil {
				stream(bestAnswer)
			}
			return o.finish(session, bestAnswer, StateRetryExceeded, events), nil
		}

		session.Retries++
		critique = verdict.Critique
		missing = verdict.MissingEvidenceHint
		suggested = verdict.SuggestedQueries
		emit(events, StageEvent{
			Type: EventPlanning, State: StateRetrying, Attempt: attempt,
			Text: fmt.Sprintf("retry %d/%d: %s", session.Retries, o.config.RetryLimit, verdict.Critique),
		})
	}
}

func (o *Orchestrator) finish(session *Session, answer string, state State, events EventFunc) *Result {
	emit(events, StageEvent{Type: EventFinal, State: state, Text: answer})
	return &Result{
		SessionID: session.ID,
		Answer:    answer,
		State:     state,
		Degraded:  state == StateRetryExceeded,
		Retries:   session.Retries,
		Evidence:  session.Evidence,
		Verdicts:  session.Verdicts,
		Trace:     session.Trace,
	}
}

func (o *Orchestrator) plan(ctx context.Context, question, critique, missing string, suggested []string, remaining int) (*Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.StageTimeout)
	defer cancel()
	return o.planner.Plan(ctx, question, critique, missing, suggested, remaining)
}

func (o *Orchestrator) executeTools(ctx context.Context, session *Session, calls []SearchCall, events EventFunc, attempt int) error {
	ctx, cancel := context.WithTimeout(ctx, o.config.StageTimeout)
	defer cancel()
	return o.executor.Execute(ctx, session, calls, events, attempt)
}

func (o *Orchestrator) draft(ctx context.Context, question string, evidence []Evidence) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.StageTimeout)
	defer cancel()
	return o.planner.Draft(ctx, question, evidence)
}

func (o *Orchestrator) synthesize(ctx context.Context, question, draft string, stream llm.StreamFunc, events EventFunc, attempt int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.StageTimeout)
	defer cancel()

	var fn llm.StreamFunc
	if stream != nil {
		fn = func(delta string) {
			emit(events, StageEvent{Type: EventAnswerDelta, State: StateSynthesizing, Attempt: attempt, Text: delta})
			stream(delta)
		}
	}
	return o.synthesizer.Synthesize(ctx, question, draft, fn)
}

func (o *Orchestrator) judgeAnswer(ctx context.Context, question, answer string, evidence []Evidence) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.StageTimeout)
	defer cancel()
	return o.judge.Judge(ctx, question, answer, evidence)
}
