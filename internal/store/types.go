// Package store provides the persistence layer: the keyword index (bleve),
// the vector index (HNSW), and durable document metadata (SQLite).
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// State keys for the metadata store.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index.
	StateKeyIndexModel = "index_embedding_model"
)

// Document represents an ingested document.
type Document struct {
	ID         string    // SHA256(name)
	Name       string    // Logical name (usually the file name)
	Size       int64     // Extracted text size in bytes
	ChunkCount int       // Number of chunks produced
	IndexedAt  time.Time // When ingestion completed
}

// Chunk is a retrievable unit of document text.
type Chunk struct {
	ID         string // SHA256(document_id + ordinal + text)
	DocumentID string // Parent document ID
	Ordinal    int    // Position within the document, starting at 0
	Text       string // Chunk content, including the leading overlap
	Start      int    // Byte offset of Text within the document
	End        int    // Byte offset one past the end of Text
	Overlap    int    // Leading bytes duplicated from the previous chunk
	CreatedAt  time.Time
}

// DocumentID derives the stable document ID from its name.
func DocumentID(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives the stable chunk ID from its parent, position, and content.
func ChunkID(documentID string, ordinal int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", documentID, ordinal, text)))
	return hex.EncodeToString(sum[:])
}

// KeywordResult represents a single keyword search result.
type KeywordResult struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// KeywordIndex provides BM25 keyword search over chunk text.
// The index is in-memory and rebuilt from the metadata store at startup.
type KeywordIndex interface {
	// Index adds chunks to the index.
	Index(ctx context.Context, chunks []*Chunk) error

	// Search returns chunks matching the query, scored by BM25.
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)

	// Delete removes chunks from the index.
	Delete(ctx context.Context, chunkIDs []string) error

	// AllIDs returns all chunk IDs in the index (for consistency checks).
	AllIDs() ([]string, error)

	// Count returns the number of indexed chunks.
	Count() int

	// Close releases resources.
	Close() error
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides semantic search using the HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks).
	AllIDs() []string

	// Contains checks if an ID exists.
	Contains(id string) bool

	// Count returns the number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// MetadataStore persists documents, chunks, and embeddings durably.
type MetadataStore interface {
	// Document operations
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetDocumentByName(ctx context.Context, name string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Chunk operations
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error)
	AllChunks(ctx context.Context) ([]*Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error

	// Embedding operations (for vector index rebuilds)
	SaveEmbeddings(ctx context.Context, chunkIDs []string, embeddings [][]float32, model string) error
	GetAllEmbeddings(ctx context.Context) (map[string][]float32, error)

	// State operations (key-value store for runtime state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Stats
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)

	// Lifecycle
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (re-ingest with the current embedding model)", e.Expected, e.Got)
}
