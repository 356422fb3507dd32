package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetadataStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDocument(name string) *Document {
	return &Document{
		ID:         DocumentID(name),
		Name:       name,
		Size:       2048,
		ChunkCount: 2,
		IndexedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func sampleChunks(docID string) []*Chunk {
	return []*Chunk{
		{
			ID: ChunkID(docID, 0, "first chunk body"), DocumentID: docID, Ordinal: 0,
			Text: "first chunk body", Start: 0, End: 16, Overlap: 0,
		},
		{
			ID: ChunkID(docID, 1, "second chunk body"), DocumentID: docID, Ordinal: 1,
			Text: "second chunk body", Start: 10, End: 27, Overlap: 6,
		},
	}
}

func TestSQLiteStore_DocumentRoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	doc := sampleDocument("notes.md")

	require.NoError(t, s.SaveDocument(context.Background(), doc))

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, doc.Size, got.Size)
	assert.Equal(t, doc.ChunkCount, got.ChunkCount)
	assert.True(t, doc.IndexedAt.Equal(got.IndexedAt))

	byName, err := s.GetDocumentByName(context.Background(), "notes.md")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, doc.ID, byName.ID)
}

func TestSQLiteStore_MissingDocumentIsNil(t *testing.T) {
	s := newTestMetadataStore(t)

	got, err := s.GetDocument(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	byName, err := s.GetDocumentByName(context.Background(), "nope.md")
	require.NoError(t, err)
	assert.Nil(t, byName)
}

func TestSQLiteStore_SaveDocumentUpserts(t *testing.T) {
	s := newTestMetadataStore(t)
	doc := sampleDocument("notes.md")
	require.NoError(t, s.SaveDocument(context.Background(), doc))

	doc.ChunkCount = 7
	require.NoError(t, s.SaveDocument(context.Background(), doc))

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.ChunkCount)

	count, err := s.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_ListDocumentsSortedByName(t *testing.T) {
	s := newTestMetadataStore(t)
	require.NoError(t, s.SaveDocument(context.Background(), sampleDocument("zebra.md")))
	require.NoError(t, s.SaveDocument(context.Background(), sampleDocument("alpha.md")))

	docs, err := s.ListDocuments(context.Background())

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "alpha.md", docs[0].Name)
	assert.Equal(t, "zebra.md", docs[1].Name)
}

func TestSQLiteStore_ChunkRoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	doc := sampleDocument("notes.md")
	require.NoError(t, s.SaveDocument(context.Background(), doc))
	chunks := sampleChunks(doc.ID)

	require.NoError(t, s.SaveChunks(context.Background(), chunks))

	got, err := s.GetChunk(context.Background(), chunks[1].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second chunk body", got.Text)
	assert.Equal(t, 10, got.Start)
	assert.Equal(t, 27, got.End)
	assert.Equal(t, 6, got.Overlap)
	assert.False(t, got.CreatedAt.IsZero())

	byDoc, err := s.GetChunksByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, byDoc, 2)
	assert.Equal(t, 0, byDoc[0].Ordinal)
	assert.Equal(t, 1, byDoc[1].Ordinal)
}

func TestSQLiteStore_GetChunksPreservesRequestOrder(t *testing.T) {
	s := newTestMetadataStore(t)
	doc := sampleDocument("notes.md")
	require.NoError(t, s.SaveDocument(context.Background(), doc))
	chunks := sampleChunks(doc.ID)
	require.NoError(t, s.SaveChunks(context.Background(), chunks))

	// Request in reverse, with an unknown ID mixed in
	got, err := s.GetChunks(context.Background(), []string{chunks[1].ID, "missing", chunks[0].ID})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, chunks[1].ID, got[0].ID)
	assert.Equal(t, chunks[0].ID, got[1].ID)
}

func TestSQLiteStore_DeleteDocumentCascades(t *testing.T) {
	s := newTestMetadataStore(t)
	doc := sampleDocument("notes.md")
	require.NoError(t, s.SaveDocument(context.Background(), doc))
	chunks := sampleChunks(doc.ID)
	require.NoError(t, s.SaveChunks(context.Background(), chunks))
	require.NoError(t, s.SaveEmbeddings(context.Background(),
		[]string{chunks[0].ID, chunks[1].ID},
		[][]float32{{0.1, 0.2}, {0.3, 0.4}}, "static"))

	require.NoError(t, s.DeleteDocument(context.Background(), doc.ID))

	count, err := s.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	embeddings, err := s.GetAllEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestSQLiteStore_EmbeddingRoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	doc := sampleDocument("notes.md")
	require.NoError(t, s.SaveDocument(context.Background(), doc))
	chunks := sampleChunks(doc.ID)
	require.NoError(t, s.SaveChunks(context.Background(), chunks))

	vectors := [][]float32{{0.5, -0.25, 0.125}, {1, 0, -1}}
	require.NoError(t, s.SaveEmbeddings(context.Background(),
		[]string{chunks[0].ID, chunks[1].ID}, vectors, "static"))

	got, err := s.GetAllEmbeddings(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, vectors[0], got[chunks[0].ID])
	assert.Equal(t, vectors[1], got[chunks[1].ID])
}

func TestSQLiteStore_EmbeddingLengthMismatch(t *testing.T) {
	s := newTestMetadataStore(t)

	err := s.SaveEmbeddings(context.Background(), []string{"a", "b"}, [][]float32{{1}}, "static")

	assert.Error(t, err)
}

func TestSQLiteStore_State(t *testing.T) {
	s := newTestMetadataStore(t)

	value, err := s.GetState(context.Background(), StateKeyIndexModel)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, s.SetState(context.Background(), StateKeyIndexModel, "nomic-embed-text"))
	require.NoError(t, s.SetState(context.Background(), StateKeyIndexModel, "static"))

	value, err = s.GetState(context.Background(), StateKeyIndexModel)
	require.NoError(t, err)
	assert.Equal(t, "static", value)
}

func TestSQLiteStore_AllChunksOrderedByDocumentAndOrdinal(t *testing.T) {
	s := newTestMetadataStore(t)
	docA := sampleDocument("a.md")
	docB := sampleDocument("b.md")
	require.NoError(t, s.SaveDocument(context.Background(), docA))
	require.NoError(t, s.SaveDocument(context.Background(), docB))
	require.NoError(t, s.SaveChunks(context.Background(), sampleChunks(docA.ID)))
	require.NoError(t, s.SaveChunks(context.Background(), sampleChunks(docB.ID)))

	all, err := s.AllChunks(context.Background())

	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		if all[i].DocumentID == all[i-1].DocumentID {
			assert.Greater(t, all[i].Ordinal, all[i-1].Ordinal)
		}
	}
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, 1, -1, 0.5, 3.14159}

	decoded, err := decodeVector(encodeVector(vec), len(vec))

	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeVector([]byte{1, 2, 3}, 2)
	assert.Error(t, err)
}

func TestIDDerivation(t *testing.T) {
	// Document IDs are stable and name-derived
	assert.Equal(t, DocumentID("notes.md"), DocumentID("notes.md"))
	assert.NotEqual(t, DocumentID("notes.md"), DocumentID("other.md"))
	assert.Len(t, DocumentID("notes.md"), 64)

	// Chunk IDs vary with parent, position, and content
	docID := DocumentID("notes.md")
	assert.Equal(t, ChunkID(docID, 0, "text"), ChunkID(docID, 0, "text"))
	assert.NotEqual(t, ChunkID(docID, 0, "text"), ChunkID(docID, 1, "text"))
	assert.NotEqual(t, ChunkID(docID, 0, "text"), ChunkID(docID, 0, "other"))
}
