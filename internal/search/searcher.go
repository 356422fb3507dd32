package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/inquira/inquira/internal/embed"
	inqerrors "github.com/inquira/inquira/internal/errors"
	"github.com/inquira/inquira/internal/store"
)

// Searcher runs hybrid retrieval over the keyword and vector indexes.
type Searcher struct {
	keyword  store.KeywordIndex
	vector   store.VectorStore
	embedder embed.Embedder
	meta     store.MetadataStore
	config   Config
}

// New creates a hybrid searcher. meta may be nil, in which case results
// are not hydrated with chunk records.
func New(keyword store.KeywordIndex, vector store.VectorStore, embedder embed.Embedder, meta store.MetadataStore, cfg Config) *Searcher {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.FetchMultiplier <= 0 {
		cfg.FetchMultiplier = DefaultFetchMultiplier
	}
	if cfg.KeywordWeight <= 0 && cfg.SemanticWeight <= 0 {
		cfg.KeywordWeight = DefaultKeywordWeight
		cfg.SemanticWeight = DefaultSemanticWeight
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Searcher{
		keyword:  keyword,
		vector:   vector,
		embedder: embedder,
		meta:     meta,
		config:   cfg,
	}
}

// Search runs both retrieval paths in parallel and fuses the results.
//
// A single failed path degrades to single-path results with the
// surviving path's weight treated as 1.0; both paths failing is an
// index-unavailable error.
func (s *Searcher) Search(ctx context.Context, query string, opts *Options) ([]*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, inqerrors.New(inqerrors.ErrCodeInvalidInput, "search query is empty", nil)
	}

	k := s.config.TopK
	kwWeight, semWeight := s.config.KeywordWeight, s.config.SemanticWeight
	if opts != nil {
		if opts.K > 0 {
			k = opts.K
		}
		if opts.KeywordWeight > 0 || opts.SemanticWeight > 0 {
			kwWeight, semWeight = opts.KeywordWeight, opts.SemanticWeight
		}
	}
	fetch := k * s.config.FetchMultiplier

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var (
		kwResults  []*store.KeywordResult
		semResults []*store.VectorResult
		kwErr      error
		semErr     error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kwResults, kwErr = s.searchKeyword(gctx, query, fetch)
		return nil
	})
	g.Go(func() error {
		semResults, semErr = s.searchSemantic(gctx, query, fetch)
		return nil
	})
	_ = g.Wait()

	if kwErr != nil && semErr != nil {
		return nil, inqerrors.IndexUnavailableError(
			"both keyword and semantic search paths failed",
			errors.Join(kwErr, semErr))
	}
	if kwErr != nil {
		slog.Warn("keyword search degraded, using semantic results only",
			slog.String("error", kwErr.Error()))
	}
	if semErr != nil {
		slog.Warn("semantic search degraded, using keyword results only",
			slog.String("error", semErr.Error()))
	}

	// When one path produced nothing, the surviving path carries the
	// full weight so scores stay comparable across queries.
	switch {
	case len(kwResults) == 0 && len(semResults) > 0:
		kwWeight, semWeight = 0, 1
	case len(semResults) == 0 && len(kwResults) > 0:
		kwWeight, semWeight = 1, 0
	}

	results := fuse(kwResults, semResults, kwWeight, semWeight, k)

	if err := s.hydrate(ctx, results); err != nil {
		return nil, err
	}

	slog.Debug("hybrid search complete",
		slog.String("query", query),
		slog.Int("keyword_hits", len(kwResults)),
		slog.Int("semantic_hits", len(semResults)),
		slog.Int("returned", len(results)))
	return results, nil
}

func (s *Searcher) searchKeyword(ctx context.Context, query string, fetch int) ([]*store.KeywordResult, error) {
	if s.keyword == nil {
		return nil, inqerrors.IndexUnavailableError("keyword index not configured", nil)
	}
	return s.keyword.Search(ctx, query, fetch)
}

func (s *Searcher) searchSemantic(ctx context.Context, query string, fetch int) ([]*store.VectorResult, error) {
	if s.vector == nil || s.embedder == nil {
		return nil, inqerrors.IndexUnavailableError("vector index not configured", nil)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.vector.Search(ctx, vec, fetch)
}

// hydrate attaches chunk records to results.
func (s *Searcher) hydrate(ctx context.Context, results []*Result) error {
	if s.meta == nil || len(results) == 0 {
		return nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}

	chunks, err := s.meta.GetChunks(ctx, ids)
	if err != nil {
		return inqerrors.Wrap(inqerrors.ErrCodeIndexUnavailable, err)
	}

	byID := make(map[string]*store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	for _, r := range results {
		r.Chunk = byID[r.ChunkID]
	}
	return nil
}
