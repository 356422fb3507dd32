package store

import (
	"context"
	"log/slog"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/search"

	inqerrors "github.com/inquira/inquira/internal/errors"
)

// indexedChunk is the document shape stored in the bleve index.
type indexedChunk struct {
	Text string `json:"text"`
}

// BleveIndex is an in-memory BM25 keyword index over chunk text.
// It is rebuilt from the metadata store at startup, so nothing is
// persisted to disk.
type BleveIndex struct {
	index bleve.Index
}

var _ KeywordIndex = (*BleveIndex)(nil)

// NewBleveIndex creates an empty in-memory keyword index using the
// English analyzer (stemming and stop words for prose).
func NewBleveIndex() (*BleveIndex, error) {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName
	textField.Store = false
	textField.IncludeTermVectors = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, inqerrors.New(inqerrors.ErrCodeIndexUnavailable, "failed to create keyword index", err)
	}

	return &BleveIndex{index: index}, nil
}

// Index adds chunks to the index in a single batch.
func (b *BleveIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(chunk.ID, indexedChunk{Text: chunk.Text}); err != nil {
			return inqerrors.New(inqerrors.ErrCodeIndexUnavailable, "failed to batch chunk for keyword index", err).
				WithDetail("chunk_id", chunk.ID)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return inqerrors.New(inqerrors.ErrCodeIndexUnavailable, "keyword index batch failed", err)
	}

	slog.Debug("indexed chunks for keyword search", slog.Int("count", len(chunks)))
	return nil
}

// Search returns up to limit chunks matching the query, scored by BM25.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}

	mq := bleve.NewMatchQuery(query)
	mq.SetField("text")

	req := bleve.NewSearchRequestOptions(mq, limit, 0, false)
	req.IncludeLocations = true

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, inqerrors.New(inqerrors.ErrCodeIndexUnavailable, "keyword search failed", err)
	}

	results := make([]*KeywordResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, &KeywordResult{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit.Locations),
		})
	}
	return results, nil
}

// extractMatchedTerms flattens a hit's term locations into a sorted,
// deduplicated list of matched terms.
func extractMatchedTerms(locations search.FieldTermLocationMap) []string {
	seen := make(map[string]bool)
	for _, termLocs := range locations {
		for term := range termLocs {
			seen[term] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Delete removes chunks from the index.
func (b *BleveIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return inqerrors.New(inqerrors.ErrCodeIndexUnavailable, "keyword index delete failed", err)
	}
	return nil
}

// AllIDs returns every chunk ID in the index.
func (b *BleveIndex) AllIDs() ([]string, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return nil, inqerrors.New(inqerrors.ErrCodeIndexUnavailable, "keyword index count failed", err)
	}
	if count == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := b.index.Search(req)
	if err != nil {
		return nil, inqerrors.New(inqerrors.ErrCodeIndexUnavailable, "keyword index scan failed", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Count returns the number of indexed chunks.
func (b *BleveIndex) Count() int {
	count, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(count)
}

// Close releases index resources.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
