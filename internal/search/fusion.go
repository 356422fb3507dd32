package search

import (
	"sort"

	"github.com/inquira/inquira/internal/store"
)

// fuse merges the two ranked result lists into one weighted ranking.
//
// Each list's scores are min-max normalized independently, then combined
// as kwWeight*normKW + semWeight*normSEM. Chunks present in only one
// list contribute only that term. Ordering is deterministic: fused score
// descending, then semantic rank ascending (chunks the semantic path
// never saw rank last), then chunk ID ascending.
func fuse(kw []*store.KeywordResult, sem []*store.VectorResult, kwWeight, semWeight float64, k int) []*Result {
	if k <= 0 || (len(kw) == 0 && len(sem) == 0) {
		return nil
	}

	byID := make(map[string]*Result, len(kw)+len(sem))

	kwScores := make([]float64, len(kw))
	for i, r := range kw {
		kwScores[i] = r.Score
	}
	for i, norm := range minMaxNormalize(kwScores) {
		r := kw[i]
		byID[r.ChunkID] = &Result{
			ChunkID:      r.ChunkID,
			Provenance:   ProvenanceKeyword,
			KeywordScore: norm,
			KeywordRank:  i + 1,
			MatchedTerms: r.MatchedTerms,
		}
	}

	semScores := make([]float64, len(sem))
	for i, r := range sem {
		semScores[i] = float64(r.Score)
	}
	for i, norm := range minMaxNormalize(semScores) {
		r := sem[i]
		if existing, ok := byID[r.ID]; ok {
			existing.Provenance = ProvenanceHybrid
			existing.SemanticScore = norm
			existing.SemanticRank = i + 1
			continue
		}
		byID[r.ID] = &Result{
			ChunkID:       r.ID,
			Provenance:    ProvenanceSemantic,
			SemanticScore: norm,
			SemanticRank:  i + 1,
		}
	}

	results := make([]*Result, 0, len(byID))
	for _, r := range byID {
		r.Score = kwWeight*r.KeywordScore + semWeight*r.SemanticScore
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ra, rb := semanticTieRank(a), semanticTieRank(b); ra != rb {
			return ra < rb
		}
		return a.ChunkID < b.ChunkID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

func semanticTieRank(r *Result) int {
	if r.SemanticRank == 0 {
		return int(^uint(0) >> 1)
	}
	return r.SemanticRank
}

// minMaxNormalize rescales scores into [0, 1]. When all scores are equal
// (including a single-element list) every score becomes 1.0.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	normalized := make([]float64, len(scores))
	if max == min {
		for i := range normalized {
			normalized[i] = 1.0
		}
		return normalized
	}

	span := max - min
	for i, s := range scores {
		normalized[i] = (s - min) / span
	}
	return normalized
}
