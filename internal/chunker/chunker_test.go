package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// topicEmbedder returns one of two orthogonal vectors depending on which
// topic keyword a sentence mentions. Sentences within a topic are
// identical vectors; crossing the topic boundary gives maximum distance.
type topicEmbedder struct{}

func (topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "volcano") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func (e topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (topicEmbedder) Dimensions() int                  { return 2 }
func (topicEmbedder) ModelName() string                { return "topic-test" }
func (topicEmbedder) Available(_ context.Context) bool { return true }
func (topicEmbedder) Close() error                     { return nil }

// failingEmbedder always errors, simulating an unreachable model.
type failingEmbedder struct{}

func (failingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("connection refused")
}

func (failingEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, fmt.Errorf("connection refused")
}

func (failingEmbedder) Dimensions() int                  { return 2 }
func (failingEmbedder) ModelName() string                { return "failing-test" }
func (failingEmbedder) Available(_ context.Context) bool { return false }
func (failingEmbedder) Close() error                     { return nil }

// reconstruct strips each piece's leading overlap and concatenates.
func reconstruct(pieces []Piece) string {
	var sb strings.Builder
	for _, p := range pieces {
		sb.WriteString(p.Text[p.Overlap:])
	}
	return sb.String()
}

// topicDocument builds a two-topic document: volcano sentences followed
// by harvest sentences, long enough to force multiple windows.
func topicDocument(perTopic int) string {
	var sb strings.Builder
	for i := 0; i < perTopic; i++ {
		sb.WriteString(fmt.Sprintf("The volcano erupted again in year %d with lava flows reaching the coast. ", 1900+i))
	}
	for i := 0; i < perTopic; i++ {
		sb.WriteString(fmt.Sprintf("The wheat harvest in season %d exceeded every regional forecast by far. ", 2000+i))
	}
	return sb.String()
}

func TestChunk_ShortDocumentIsSingleChunk(t *testing.T) {
	c := New(DefaultConfig(), nil)

	pieces, err := c.Chunk(context.Background(), "A short note about nothing in particular.")

	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Ordinal)
	assert.Equal(t, 0, pieces[0].Overlap)
	assert.Equal(t, "A short note about nothing in particular.", pieces[0].Text)
}

func TestChunk_EmptyDocument(t *testing.T) {
	c := New(DefaultConfig(), nil)

	pieces, err := c.Chunk(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, pieces)
}

func TestChunk_ReconstructsDocumentExactly(t *testing.T) {
	c := New(DefaultConfig(), topicEmbedder{})
	text := topicDocument(40)

	pieces, err := c.Chunk(context.Background(), text)

	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)
	assert.Equal(t, text, reconstruct(pieces))
}

func TestChunk_FixedWindowsWithoutEmbedder(t *testing.T) {
	cfg := Config{WindowSize: 1000, Overlap: 200, MinChunkSize: 100, BoundaryPercentile: 90}
	c := New(cfg, nil)
	text := strings.Repeat("x", 3000)

	pieces, err := c.Chunk(context.Background(), text)

	require.NoError(t, err)
	// Cuts at 0, 800, 1600, 2400, 3000
	require.Len(t, pieces, 4)

	assert.Equal(t, 0, pieces[0].Start)
	assert.Equal(t, 800, pieces[0].End)
	assert.Equal(t, 0, pieces[0].Overlap)

	// Later chunks carry the configured leading overlap
	assert.Equal(t, 600, pieces[1].Start)
	assert.Equal(t, 1600, pieces[1].End)
	assert.Equal(t, 200, pieces[1].Overlap)

	assert.Equal(t, text, reconstruct(pieces))
}

func TestChunk_EmbedderFailureFallsBackToFixedWindows(t *testing.T) {
	// Given an embedder that always fails
	c := New(DefaultConfig(), failingEmbedder{})
	text := topicDocument(40)

	// When chunking
	pieces, err := c.Chunk(context.Background(), text)

	// Then ingestion still succeeds with window-based chunks
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)
	assert.Equal(t, text, reconstruct(pieces))
}

func TestChunk_SemanticCutAtTopicBoundary(t *testing.T) {
	c := New(DefaultConfig(), topicEmbedder{})
	text := topicDocument(30)

	// The topic flips at the first harvest sentence
	boundary := strings.Index(text, "The wheat harvest")
	require.Positive(t, boundary)

	pieces, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)

	// Some chunk must begin its own content exactly at the topic boundary
	var found bool
	for _, p := range pieces {
		if p.Start+p.Overlap == boundary {
			found = true
			break
		}
	}
	assert.True(t, found, "expected a cut at the topic boundary (offset %d)", boundary)
}

func TestChunk_MergesSmallChunks(t *testing.T) {
	c := New(DefaultConfig(), topicEmbedder{})
	text := topicDocument(40)

	pieces, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)

	for i, p := range pieces {
		body := p.End - (p.Start + p.Overlap)
		assert.GreaterOrEqual(t, body, DefaultMinChunkSize,
			"chunk %d body is %d chars", i, body)
	}
}

func TestChunk_OrdinalsAreSequential(t *testing.T) {
	c := New(DefaultConfig(), nil)
	text := strings.Repeat("word ", 1000)

	pieces, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)

	for i, p := range pieces {
		assert.Equal(t, i, p.Ordinal)
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 90, 0},
		{"single", []float64{0.5}, 90, 0.5},
		{"median", []float64{1, 2, 3}, 50, 2},
		{"interpolated", []float64{0, 10}, 90, 9},
		{"max", []float64{1, 2, 3, 4}, 100, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, percentile(tt.values, tt.p), 1e-9)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, cosineDistance([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 1.0, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2.0, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	// Zero vectors and mismatched lengths yield max distance
	assert.Equal(t, 1.0, cosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 1.0, cosineDistance([]float32{1}, []float32{1, 0}))
}
