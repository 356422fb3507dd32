package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inqerrors "github.com/inquira/inquira/internal/errors"
	"github.com/inquira/inquira/internal/store"
)

// fakeKeywordIndex returns canned results or a canned error.
type fakeKeywordIndex struct {
	results []*store.KeywordResult
	err     error
}

func (f *fakeKeywordIndex) Index(context.Context, []*store.Chunk) error { return nil }
func (f *fakeKeywordIndex) Search(_ context.Context, _ string, limit int) ([]*store.KeywordResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}
func (f *fakeKeywordIndex) Delete(context.Context, []string) error { return nil }
func (f *fakeKeywordIndex) AllIDs() ([]string, error)              { return nil, nil }
func (f *fakeKeywordIndex) Count() int                             { return len(f.results) }
func (f *fakeKeywordIndex) Close() error                           { return nil }

// fakeVectorStore returns canned results or a canned error.
type fakeVectorStore struct {
	results []*store.VectorResult
	err     error
}

func (f *fakeVectorStore) Add(context.Context, []string, [][]float32) error { return nil }
func (f *fakeVectorStore) Search(_ context.Context, _ []float32, k int) ([]*store.VectorResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}
func (f *fakeVectorStore) Delete(context.Context, []string) error { return nil }
func (f *fakeVectorStore) AllIDs() []string                       { return nil }
func (f *fakeVectorStore) Contains(string) bool                   { return false }
func (f *fakeVectorStore) Count() int                             { return len(f.results) }
func (f *fakeVectorStore) Save(string) error                      { return nil }
func (f *fakeVectorStore) Load(string) error                      { return nil }
func (f *fakeVectorStore) Close() error                           { return nil }

// fixedEmbedder returns the same vector for every input.
type fixedEmbedder struct {
	err error
}

func (f fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}
func (f fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
func (fixedEmbedder) Dimensions() int                  { return 2 }
func (fixedEmbedder) ModelName() string                { return "fixed-test" }
func (fixedEmbedder) Available(_ context.Context) bool { return true }
func (fixedEmbedder) Close() error                     { return nil }

func newTestSearcher(kw *fakeKeywordIndex, vec *fakeVectorStore, emb fixedEmbedder) *Searcher {
	return New(kw, vec, emb, nil, DefaultSearchConfig())
}

func TestSearcher_FusesBothPaths(t *testing.T) {
	kw := &fakeKeywordIndex{results: []*store.KeywordResult{
		kwResult("shared", 8), kwResult("kw-only", 4),
	}}
	vec := &fakeVectorStore{results: []*store.VectorResult{
		semResult("shared", 0.9), semResult("sem-only", 0.6),
	}}
	s := newTestSearcher(kw, vec, fixedEmbedder{})

	results, err := s.Search(context.Background(), "volcano", nil)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "shared", results[0].ChunkID)
	assert.Equal(t, ProvenanceHybrid, results[0].Provenance)
}

func TestSearcher_KeywordFailureDegradesToSemantic(t *testing.T) {
	kw := &fakeKeywordIndex{err: inqerrors.IndexUnavailableError("index rebuilding", nil)}
	vec := &fakeVectorStore{results: []*store.VectorResult{
		semResult("a", 0.9), semResult("b", 0.5),
	}}
	s := newTestSearcher(kw, vec, fixedEmbedder{})

	results, err := s.Search(context.Background(), "volcano", nil)

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, ProvenanceSemantic, r.Provenance)
	}
	// Surviving path carries full weight
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestSearcher_EmbedderFailureDegradesToKeyword(t *testing.T) {
	kw := &fakeKeywordIndex{results: []*store.KeywordResult{kwResult("a", 3)}}
	vec := &fakeVectorStore{}
	s := newTestSearcher(kw, vec, fixedEmbedder{err: fmt.Errorf("model offline")})

	results, err := s.Search(context.Background(), "volcano", nil)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ProvenanceKeyword, results[0].Provenance)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestSearcher_BothPathsFailed(t *testing.T) {
	kw := &fakeKeywordIndex{err: fmt.Errorf("keyword down")}
	vec := &fakeVectorStore{err: fmt.Errorf("vector down")}
	s := newTestSearcher(kw, vec, fixedEmbedder{})

	_, err := s.Search(context.Background(), "volcano", nil)

	require.Error(t, err)
	assert.Equal(t, inqerrors.ErrCodeIndexUnavailable, inqerrors.GetCode(err))
}

func TestSearcher_EmptyQueryRejected(t *testing.T) {
	s := newTestSearcher(&fakeKeywordIndex{}, &fakeVectorStore{}, fixedEmbedder{})

	_, err := s.Search(context.Background(), "   ", nil)

	require.Error(t, err)
	assert.Equal(t, inqerrors.ErrCodeInvalidInput, inqerrors.GetCode(err))
}

func TestSearcher_PerCallOverrides(t *testing.T) {
	kw := &fakeKeywordIndex{results: []*store.KeywordResult{
		kwResult("kwfav", 10), kwResult("semfav", 1),
	}}
	vec := &fakeVectorStore{results: []*store.VectorResult{
		semResult("semfav", 0.9), semResult("kwfav", 0.1),
	}}
	s := newTestSearcher(kw, vec, fixedEmbedder{})

	// All keyword weight: the keyword favorite must lead
	results, err := s.Search(context.Background(), "volcano",
		&Options{KeywordWeight: 1.0, SemanticWeight: 0.0})
	require.NoError(t, err)
	assert.Equal(t, "kwfav", results[0].ChunkID)

	// All semantic weight: the semantic favorite must lead
	results, err = s.Search(context.Background(), "volcano",
		&Options{KeywordWeight: 0.0, SemanticWeight: 1.0})
	require.NoError(t, err)
	assert.Equal(t, "semfav", results[0].ChunkID)

	// K truncates
	results, err = s.Search(context.Background(), "volcano", &Options{K: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearcher_HydratesChunks(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	doc := &store.Document{ID: store.DocumentID("notes.md"), Name: "notes.md", Size: 10, ChunkCount: 1}
	require.NoError(t, meta.SaveDocument(context.Background(), doc))
	chunk := &store.Chunk{
		ID: store.ChunkID(doc.ID, 0, "volcano text"), DocumentID: doc.ID,
		Ordinal: 0, Text: "volcano text", Start: 0, End: 12,
	}
	require.NoError(t, meta.SaveChunks(context.Background(), []*store.Chunk{chunk}))

	kw := &fakeKeywordIndex{results: []*store.KeywordResult{kwResult(chunk.ID, 5)}}
	s := New(kw, &fakeVectorStore{}, fixedEmbedder{}, meta, DefaultSearchConfig())

	results, err := s.Search(context.Background(), "volcano", nil)

	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Chunk)
	assert.Equal(t, "volcano text", results[0].Chunk.Text)
}
