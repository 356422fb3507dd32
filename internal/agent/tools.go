package agent

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/inquira/inquira/internal/search"
	"github.com/inquira/inquira/internal/store"
)

// Searcher is the retrieval capability the executor drives.
type Searcher interface {
	Search(ctx context.Context, query string, opts *search.Options) ([]*search.Result, error)
}

// DocumentNamer resolves document IDs to their records, for evidence
// attribution. May be nil.
type DocumentNamer interface {
	GetDocument(ctx context.Context, id string) (*store.Document, error)
}

// Executor runs a plan's search calls and folds the results into the
// session's evidence.
type Executor struct {
	searcher Searcher
	namer    DocumentNamer
	topK     int
}

// NewExecutor creates a tool executor. topK is the per-call default
// result count when the planner does not set one.
func NewExecutor(searcher Searcher, namer DocumentNamer, topK int) *Executor {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Executor{searcher: searcher, namer: namer, topK: topK}
}

// Execute runs the calls concurrently and merges their evidence into
// the session in call order, so evidence order is deterministic for a
// given plan regardless of completion order. Individual failed calls
// are logged and skipped; Execute fails only when every call failed.
func (e *Executor) Execute(ctx context.Context, session *Session, calls []SearchCall, events EventFunc, attempt int) error {
	if len(calls) == 0 {
		return nil
	}

	perCall := make([][]Evidence, len(calls))
	errs := make([]error, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		emit(events, StageEvent{
			Type: EventToolCall, State: StateExecutingTools, Attempt: attempt,
			Text: call.Query,
		})

		g.Go(func() error {
			perCall[i], errs[i] = e.run(gctx, call)
			return nil
		})
	}
	_ = g.Wait()

	names := make(map[string]string)
	failed := 0
	for i, call := range calls {
		if errs[i] != nil {
			failed++
			slog.Warn("search call failed",
				slog.String("query", call.Query),
				slog.String("error", errs[i].Error()))
			continue
		}

		e.attachDocumentNames(ctx, perCall[i], names)
		added := session.AddEvidence(perCall[i])
		session.Trace = append(session.Trace, TraceEntry{
			Query:   call.Query,
			Results: len(perCall[i]),
			Added:   added,
		})
		emit(events, StageEvent{
			Type: EventToolResult, State: StateExecutingTools, Attempt: attempt,
			Text: fmt.Sprintf("%q: %d results, %d new", call.Query, len(perCall[i]), added),
		})
	}

	if failed == len(calls) {
		return errs[0]
	}
	return nil
}

func (e *Executor) run(ctx context.Context, call SearchCall) ([]Evidence, error) {
	opts := &search.Options{
		K:              call.K,
		KeywordWeight:  call.KeywordWeight,
		SemanticWeight: call.SemanticWeight,
	}
	if opts.K <= 0 {
		opts.K = e.topK
	}

	results, err := e.searcher.Search(ctx, call.Query, opts)
	if err != nil {
		return nil, err
	}

	evidence := make([]Evidence, 0, len(results))
	for _, r := range results {
		ev := Evidence{
			ChunkID:    r.ChunkID,
			Provenance: r.Provenance,
			Score:      r.Score,
		}
		if r.Chunk != nil {
			ev.DocumentID = r.Chunk.DocumentID
			ev.Text = r.Chunk.Text
		}
		evidence = append(evidence, ev)
	}
	return evidence, nil
}

// attachDocumentNames fills evidence attribution, memoizing lookups in
// names across the whole plan.
func (e *Executor) attachDocumentNames(ctx context.Context, evidence []Evidence, names map[string]string) {
	if e.namer == nil {
		return
	}
	for i := range evidence {
		docID := evidence[i].DocumentID
		if docID == "" {
			continue
		}
		name, ok := names[docID]
		if !ok {
			doc, err := e.namer.GetDocument(ctx, docID)
			if err == nil && doc != nil {
				name = doc.Name
			}
			names[docID] = name
		}
		evidence[i].DocumentName = name
	}
}

func emit(events EventFunc, event StageEvent) {
	if events != nil {
		events(event)
	}
}
