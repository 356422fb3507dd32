// Package search implements hybrid retrieval: keyword (BM25) and
// semantic (vector) paths queried in parallel, normalized, and fused
// into one weighted ranking.
package search

import (
	"time"

	"github.com/inquira/inquira/internal/store"
)

// Provenance labels which retrieval path produced a result.
type Provenance string

const (
	ProvenanceKeyword  Provenance = "KEYWORD"
	ProvenanceSemantic Provenance = "SEMANTIC"
	// ProvenanceHybrid marks chunks surfaced by both paths.
	ProvenanceHybrid Provenance = "HYBRID"
)

// Defaults for the hybrid searcher.
const (
	DefaultKeywordWeight   = 0.4
	DefaultSemanticWeight  = 0.6
	DefaultTopK            = 10
	DefaultFetchMultiplier = 2
	DefaultTimeout         = 10 * time.Second
)

// Result is one fused search result.
type Result struct {
	ChunkID string

	// Score is the fused, weighted score used for ranking.
	Score float64

	Provenance Provenance

	// Per-path normalized scores; zero when the path did not return
	// this chunk.
	KeywordScore  float64
	SemanticScore float64

	// 1-based ranks within each path's result list; 0 means absent.
	KeywordRank  int
	SemanticRank int

	// MatchedTerms are the analyzed query terms the keyword path matched.
	MatchedTerms []string

	// Chunk is hydrated from the metadata store; nil when hydration is
	// disabled or the chunk record is missing.
	Chunk *store.Chunk
}

// Options override per-call search behavior. Zero values fall back to
// the searcher's configuration.
type Options struct {
	// K is the number of results to return.
	K int

	// KeywordWeight and SemanticWeight control fusion. Both must be set
	// together and should sum to 1.0.
	KeywordWeight  float64
	SemanticWeight float64
}

// Config configures a Searcher.
type Config struct {
	KeywordWeight   float64
	SemanticWeight  float64
	TopK            int
	FetchMultiplier int
	Timeout         time.Duration
}

// DefaultSearchConfig returns the default searcher configuration.
func DefaultSearchConfig() Config {
	return Config{
		KeywordWeight:   DefaultKeywordWeight,
		SemanticWeight:  DefaultSemanticWeight,
		TopK:            DefaultTopK,
		FetchMultiplier: DefaultFetchMultiplier,
		Timeout:         DefaultTimeout,
	}
}
