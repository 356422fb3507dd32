package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquira/inquira/internal/store"
)

func kwResult(id string, score float64) *store.KeywordResult {
	return &store.KeywordResult{ChunkID: id, Score: score, MatchedTerms: []string{"term"}}
}

func semResult(id string, score float32) *store.VectorResult {
	return &store.VectorResult{ID: id, Score: score, Distance: 2 * (1 - score)}
}

func TestMinMaxNormalize(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []float64
	}{
		{"empty", nil, nil},
		{"single element becomes one", []float64{3.7}, []float64{1.0}},
		{"all equal become one", []float64{2, 2, 2}, []float64{1, 1, 1}},
		{"spread rescales to unit range", []float64{10, 5, 0}, []float64{1, 0.5, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := minMaxNormalize(tt.scores)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}
}

func TestFuse_ProvenanceLabels(t *testing.T) {
	kw := []*store.KeywordResult{kwResult("both", 10), kwResult("kw-only", 5)}
	sem := []*store.VectorResult{semResult("both", 0.9), semResult("sem-only", 0.7)}

	results := fuse(kw, sem, 0.4, 0.6, 10)

	require.Len(t, results, 3)
	byID := make(map[string]*Result)
	for _, r := range results {
		byID[r.ChunkID] = r
	}

	assert.Equal(t, ProvenanceHybrid, byID["both"].Provenance)
	assert.Equal(t, ProvenanceKeyword, byID["kw-only"].Provenance)
	assert.Equal(t, ProvenanceSemantic, byID["sem-only"].Provenance)
	assert.Equal(t, []string{"term"}, byID["kw-only"].MatchedTerms)
}

func TestFuse_HybridOutranksSinglePath(t *testing.T) {
	// "both" tops both lists; it must outrank every single-path chunk
	kw := []*store.KeywordResult{kwResult("both", 10), kwResult("kw-only", 2)}
	sem := []*store.VectorResult{semResult("both", 0.95), semResult("sem-only", 0.5)}

	results := fuse(kw, sem, 0.4, 0.6, 10)

	require.NotEmpty(t, results)
	assert.Equal(t, "both", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9) // 0.4*1.0 + 0.6*1.0
}

func TestFuse_RanksAreOneBased(t *testing.T) {
	kw := []*store.KeywordResult{kwResult("a", 10), kwResult("b", 5)}
	sem := []*store.VectorResult{semResult("b", 0.9)}

	results := fuse(kw, sem, 0.5, 0.5, 10)

	byID := make(map[string]*Result)
	for _, r := range results {
		byID[r.ChunkID] = r
	}
	assert.Equal(t, 1, byID["a"].KeywordRank)
	assert.Equal(t, 0, byID["a"].SemanticRank)
	assert.Equal(t, 2, byID["b"].KeywordRank)
	assert.Equal(t, 1, byID["b"].SemanticRank)
}

func TestFuse_TieBreakBySemanticRankThenChunkID(t *testing.T) {
	// Three semantic-only chunks with equal normalized scores would tie
	// on fused score; order falls back to semantic rank.
	sem := []*store.VectorResult{semResult("c", 0.8), semResult("a", 0.8), semResult("b", 0.8)}

	results := fuse(nil, sem, 0, 1, 10)

	require.Len(t, results, 3)
	assert.Equal(t, "c", results[0].ChunkID)
	assert.Equal(t, "a", results[1].ChunkID)
	assert.Equal(t, "b", results[2].ChunkID)

	// Keyword-only ties with no semantic rank fall back to chunk ID
	kw := []*store.KeywordResult{kwResult("z", 1), kwResult("m", 1), kwResult("a", 1)}
	results = fuse(kw, nil, 1, 0, 10)

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "m", results[1].ChunkID)
	assert.Equal(t, "z", results[2].ChunkID)
}

func TestFuse_TruncatesToK(t *testing.T) {
	kw := []*store.KeywordResult{kwResult("a", 3), kwResult("b", 2), kwResult("c", 1)}

	results := fuse(kw, nil, 1, 0, 2)

	assert.Len(t, results, 2)
}

func TestFuse_MonotonicInSemanticWeight(t *testing.T) {
	// "semfav" leads the semantic list and trails the keyword list.
	// Raising the semantic weight must never lower its fused score.
	kw := []*store.KeywordResult{kwResult("kwfav", 10), kwResult("semfav", 1)}
	sem := []*store.VectorResult{semResult("semfav", 0.9), semResult("kwfav", 0.2)}

	var prev float64 = -1
	for _, semWeight := range []float64{0.0, 0.25, 0.5, 0.75, 1.0} {
		results := fuse(kw, sem, 1-semWeight, semWeight, 10)

		var score float64
		for _, r := range results {
			if r.ChunkID == "semfav" {
				score = r.Score
			}
		}
		assert.GreaterOrEqual(t, score, prev, "semantic weight %v", semWeight)
		prev = score
	}
}

func TestFuse_Empty(t *testing.T) {
	assert.Nil(t, fuse(nil, nil, 0.4, 0.6, 10))
	assert.Nil(t, fuse([]*store.KeywordResult{kwResult("a", 1)}, nil, 1, 0, 0))
}
