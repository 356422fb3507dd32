// Package chunker splits document text into overlapping, semantically
// coherent chunks for indexing.
//
// Chunk boundaries are modeled as cut points: a sorted list of offsets
// c0=0 < c1 < ... < cn=len(text). Chunk i spans
// text[max(0, c_i-overlap) : c_{i+1}], so stripping each chunk's leading
// overlap and concatenating reconstructs the document exactly.
package chunker

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/inquira/inquira/internal/embed"
)

// Defaults for the semantic chunker.
const (
	DefaultWindowSize         = 1500
	DefaultOverlap            = 300
	DefaultMinChunkSize       = 350
	DefaultBoundaryPercentile = 90.0
)

// Config configures the chunker.
type Config struct {
	// WindowSize is the base chunk window in characters.
	WindowSize int

	// Overlap is the number of characters duplicated from the previous
	// chunk at the start of each chunk.
	Overlap int

	// MinChunkSize is the minimum chunk body size; smaller chunks are
	// merged into a neighbor.
	MinChunkSize int

	// BoundaryPercentile is the percentile of the document's sentence
	// distance distribution above which a semantic cut is placed.
	BoundaryPercentile float64
}

// DefaultConfig returns the default chunker configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:         DefaultWindowSize,
		Overlap:            DefaultOverlap,
		MinChunkSize:       DefaultMinChunkSize,
		BoundaryPercentile: DefaultBoundaryPercentile,
	}
}

// Piece is one chunk of a document.
type Piece struct {
	// Ordinal is the chunk's position within the document, starting at 0.
	Ordinal int

	// Text is the chunk content, including the leading overlap region.
	Text string

	// Start and End are byte offsets of Text within the document.
	Start int
	End   int

	// Overlap is the length of the leading region duplicated from the
	// previous chunk. Text[Overlap:] is this chunk's own content.
	Overlap int
}

// Chunker splits text into overlapping chunks at semantic boundaries.
type Chunker struct {
	config   Config
	embedder embed.Embedder
}

// New creates a chunker. The embedder refines boundaries; when it is nil
// or fails, chunking falls back to fixed windows.
func New(cfg Config, embedder embed.Embedder) *Chunker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.WindowSize {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.MinChunkSize < 0 {
		cfg.MinChunkSize = DefaultMinChunkSize
	}
	if cfg.BoundaryPercentile <= 0 || cfg.BoundaryPercentile > 100 {
		cfg.BoundaryPercentile = DefaultBoundaryPercentile
	}
	return &Chunker{config: cfg, embedder: embedder}
}

// Chunk splits text into pieces. Documents at or below the window size
// become exactly one chunk.
func (c *Chunker) Chunk(ctx context.Context, text string) ([]Piece, error) {
	if text == "" {
		return nil, nil
	}

	if len(text) <= c.config.WindowSize {
		return []Piece{{Ordinal: 0, Text: text, Start: 0, End: len(text), Overlap: 0}}, nil
	}

	cuts := c.baseCuts(len(text))

	if c.embedder != nil {
		semantic, err := c.semanticCuts(ctx, text)
		if err != nil {
			// Embedding failure degrades to fixed windows, never fails ingestion
			slog.Warn("semantic boundary detection unavailable, using fixed windows",
				slog.String("error", err.Error()))
		} else {
			cuts = mergeCuts(cuts, semantic, len(text))
		}
	}

	cuts = c.mergeSmallChunks(cuts)

	return c.piecesFromCuts(text, cuts), nil
}

// baseCuts places a cut every windowSize-overlap characters so that
// consecutive windows share exactly the configured overlap.
func (c *Chunker) baseCuts(textLen int) []int {
	stride := c.config.WindowSize - c.config.Overlap

	cuts := []int{0}
	for pos := stride; pos < textLen; pos += stride {
		cuts = append(cuts, pos)
	}
	cuts = append(cuts, textLen)
	return cuts
}

// semanticCuts embeds the document's sentences and places a cut before
// each sentence whose distance from its predecessor exceeds the
// configured percentile of the document's own distance distribution.
func (c *Chunker) semanticCuts(ctx context.Context, text string) ([]int, error) {
	sentences := splitSentences(text)
	if len(sentences) < 3 {
		return nil, nil
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.text
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	distances := make([]float64, len(vectors)-1)
	for i := 0; i < len(vectors)-1; i++ {
		distances[i] = cosineDistance(vectors[i], vectors[i+1])
	}

	threshold := percentile(distances, c.config.BoundaryPercentile)

	var cuts []int
	for i, d := range distances {
		if d > threshold {
			cuts = append(cuts, sentences[i+1].start)
		}
	}
	return cuts, nil
}

// mergeCuts unions base and semantic cuts into a sorted, deduplicated
// cut list with the 0 and textLen endpoints.
func mergeCuts(base, semantic []int, textLen int) []int {
	seen := make(map[int]bool, len(base)+len(semantic))
	var cuts []int

	add := func(pos int) {
		if pos <= 0 || pos >= textLen || seen[pos] {
			return
		}
		seen[pos] = true
		cuts = append(cuts, pos)
	}

	for _, pos := range base {
		add(pos)
	}
	for _, pos := range semantic {
		add(pos)
	}

	sort.Ints(cuts)

	merged := make([]int, 0, len(cuts)+2)
	merged = append(merged, 0)
	merged = append(merged, cuts...)
	merged = append(merged, textLen)
	return merged
}

// mergeSmallChunks removes cuts that produce chunks smaller than the
// minimum: a small chunk merges into the following neighbor, or into the
// preceding one when it is last. Repeats until stable.
func (c *Chunker) mergeSmallChunks(cuts []int) []int {
	minSize := c.config.MinChunkSize

	for len(cuts) > 2 {
		merged := false
		for i := 0; i < len(cuts)-1; i++ {
			if cuts[i+1]-cuts[i] >= minSize {
				continue
			}
			if i+1 == len(cuts)-1 {
				// Last chunk too small: merge into the preceding chunk
				cuts = append(cuts[:i], cuts[i+1:]...)
			} else {
				// Merge into the following chunk
				cuts = append(cuts[:i+1], cuts[i+2:]...)
			}
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return cuts
}

// piecesFromCuts materializes chunks from the cut list, extending each
// chunk backwards by the overlap.
func (c *Chunker) piecesFromCuts(text string, cuts []int) []Piece {
	pieces := make([]Piece, 0, len(cuts)-1)

	for i := 0; i < len(cuts)-1; i++ {
		cut, next := cuts[i], cuts[i+1]

		start := cut - c.config.Overlap
		if start < 0 {
			start = 0
		}

		pieces = append(pieces, Piece{
			Ordinal: i,
			Text:    text[start:next],
			Start:   start,
			End:     next,
			Overlap: cut - start,
		})
	}

	return pieces
}

// cosineDistance computes 1 - cosine similarity between two vectors.
// Mismatched lengths or zero vectors yield the maximum distance.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1.0
	}

	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// percentile computes the p-th percentile of values using linear
// interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
