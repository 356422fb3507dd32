// Package agent implements the question-answering loop: a Planner
// proposes retrieval queries and a draft, a Tool Executor gathers
// evidence, a Synthesizer polishes the evidence-grounded draft, and a
// Judge accepts the answer or sends the loop back to planning with a
// critique. The loop is explicitly bounded.
package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/inquira/inquira/internal/search"
)

// State names the orchestrator's position in the loop.
type State string

const (
	StatePlanning       State = "PLANNING"
	StateExecutingTools State = "EXECUTING_TOOLS"
	StateDrafting       State = "DRAFTING"
	StateSynthesizing   State = "SYNTHESIZING"
	StateJudging        State = "JUDGING"
	StateAccepted       State = "ACCEPTED"
	StateRetrying       State = "RETRYING"
	StateRetryExceeded  State = "RETRY_EXCEEDED"
)

// Decision is the judge's ruling on a candidate answer.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionRetry  Decision = "retry"
)

// Orchestration defaults.
const (
	DefaultRetryLimit        = 3
	DefaultTopK              = 10
	DefaultMaxQueriesPerPlan = 5
	DefaultStageTimeout      = 90 * time.Second
)

// SearchCall is one retrieval query requested by the planner.
type SearchCall struct {
	Query string `json:"query"`
	// K overrides the result count; 0 uses the orchestrator default.
	K int `json:"k,omitempty"`
	// Optional fusion weight overrides; both zero means defaults.
	KeywordWeight  float64 `json:"keyword_weight,omitempty"`
	SemanticWeight float64 `json:"semantic_weight,omitempty"`
}

// Plan is the planner's structured output.
type Plan struct {
	Queries []SearchCall `json:"queries"`
	// Draft is the planner's hypothetical answer sketch, used to seed
	// retrieval, not shown to the user.
	Draft string `json:"draft"`
}

// Verdict is the judge's structured output.
type Verdict struct {
	Decision Decision `json:"decision"`
	Critique string   `json:"critique"`
	// MissingEvidenceHint names what evidence the judge found lacking.
	MissingEvidenceHint string   `json:"missing"`
	SuggestedQueries    []string `json:"suggested_queries"`
}

// Evidence is one retrieved chunk attributed to its document.
type Evidence struct {
	ChunkID      string
	DocumentID   string
	DocumentName string
	Text         string
	Provenance   search.Provenance
	Score        float64
}

// EventType labels a stage event emitted during a run.
type EventType string

const (
	EventPlanning     EventType = "planning"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventDraft        EventType = "draft"
	EventJudgeVerdict EventType = "judge_verdict"
	EventAnswerDelta  EventType = "answer_delta"
	EventFinal        EventType = "final"
)

// StageEvent is one observable step of a run, for streaming consumers.
type StageEvent struct {
	Type    EventType
	State   State
	Attempt int
	// Text carries the event payload, whatever the event type implies:
	// a query, an answer delta, a verdict summary.
	Text string
}

// EventFunc receives stage events. May be nil.
type EventFunc func(StageEvent)

// Session accumulates one run's state. It is owned by a single
// orchestrator run and discarded afterwards.
type Session struct {
	ID       string
	Question string
	Retries  int

	// Evidence is append-only and deduplicated by chunk ID; first-seen
	// order is preserved across retries.
	Evidence []Evidence
	seen     map[string]bool

	Draft       string
	LastVerdict *Verdict
	Verdicts    []Verdict

	// Trace records each executed search call with its result count.
	Trace []TraceEntry
}

// TraceEntry records one executed retrieval call.
type TraceEntry struct {
	Query   string
	Results int
	Added   int
}

// NewSession creates a session for one question.
func NewSession(question string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Question: question,
		seen:     make(map[string]bool),
	}
}

// AddEvidence appends unseen evidence, preserving first-seen order, and
// returns how many items were new.
func (s *Session) AddEvidence(items []Evidence) int {
	added := 0
	for _, item := range items {
		if s.seen[item.ChunkID] {
			continue
		}
		s.seen[item.ChunkID] = true
		s.Evidence = append(s.Evidence, item)
		added++
	}
	return added
}

// Result is the outcome of one orchestrator run.
type Result struct {
	SessionID string
	Answer    string
	State     State
	// Degraded is set when the retry budget ran out and the best
	// available draft was returned without judge acceptance.
	Degraded bool
	Retries  int
	Evidence []Evidence
	Verdicts []Verdict
	Trace    []TraceEntry
}
