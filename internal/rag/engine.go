// Package rag wires storage, retrieval, and the agent loop into one
// engine behind a small facade: Index, Search, Ask, Clear, Stats.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/inquira/inquira/internal/agent"
	"github.com/inquira/inquira/internal/chunker"
	"github.com/inquira/inquira/internal/config"
	"github.com/inquira/inquira/internal/embed"
	inqerrors "github.com/inquira/inquira/internal/errors"
	"github.com/inquira/inquira/internal/extract"
	"github.com/inquira/inquira/internal/llm"
	"github.com/inquira/inquira/internal/search"
	"github.com/inquira/inquira/internal/store"
)

const (
	metadataFile = "metadata.db"
	vectorFile   = "vectors.hnsw"
	lockFile     = ".inquira.lock"
)

// Engine is the top-level entry point for indexing and answering.
type Engine struct {
	config *config.Config

	meta      store.MetadataStore
	vector    store.VectorStore
	keyword   *store.SwappableKeywordIndex
	embedder  embed.Embedder
	generator llm.Generator

	chunker      *chunker.Chunker
	extractor    *extract.Registry
	orchestrator *agent.Orchestrator

	// searcher is swapped when Clear replaces the indexes; reads are
	// lock-free.
	searcher atomic.Pointer[search.Searcher]

	vectorPath string

	// fileLock guards the data directory against a second inquira
	// process; the in-memory indexes are not multi-process safe.
	fileLock *flock.Flock

	// indexMu serializes writes; searches and asks run lock-free on the
	// read-mostly indexes.
	indexMu sync.Mutex

	// inconsistent lists document IDs whose index membership disagreed
	// at startup; they need re-ingestion.
	inconsistent []string
}

var _ agent.Searcher = (*Engine)(nil)

// Option customizes engine construction, mainly for tests.
type Option func(*options)

type options struct {
	embedder  embed.Embedder
	generator llm.Generator
	meta      store.MetadataStore
}

// WithEmbedder injects a pre-built embedder.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithGenerator injects a pre-built generator.
func WithGenerator(g llm.Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithMetadataStore injects a pre-built metadata store.
func WithMetadataStore(m store.MetadataStore) Option {
	return func(o *options) { o.meta = m }
}

// New builds an engine from config: opens the durable stores, rebuilds
// the in-memory keyword index from SQLite, restores or rebuilds the
// vector index, and verifies cross-index consistency.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fileLock, err := lockDataDir(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	meta := o.meta
	if meta == nil {
		var err error
		meta, err = store.NewSQLiteStore(filepath.Join(cfg.Storage.DataDir, metadataFile))
		if err != nil {
			fileLock.Unlock()
			return nil, err
		}
	}

	embedder := o.embedder
	if embedder == nil {
		var err error
		embedder, err = embed.NewEmbedder(ctx, embed.FactoryConfig{
			Provider: cfg.Embeddings.Provider,
			Ollama: embed.OllamaConfig{
				Host:       cfg.Embeddings.OllamaHost,
				Model:      cfg.Embeddings.Model,
				Dimensions: cfg.Embeddings.Dimensions,
				BatchSize:  cfg.Embeddings.BatchSize,
				Timeout:    cfg.Embeddings.Timeout,
			},
			CacheSize: cfg.Embeddings.CacheSize,
		})
		if err != nil {
			meta.Close()
			fileLock.Unlock()
			return nil, err
		}
	}

	generator := o.generator
	if generator == nil {
		generator = llm.NewOllamaGenerator(llm.OllamaConfig{
			Host:    cfg.LLM.OllamaHost,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
	}

	e := &Engine{
		config:     cfg,
		meta:       meta,
		embedder:   embedder,
		generator:  generator,
		keyword:    store.NewSwappableKeywordIndex(nil),
		extractor:  extract.NewRegistry(),
		vectorPath: filepath.Join(cfg.Storage.DataDir, vectorFile),
		fileLock:   fileLock,
	}

	e.chunker = chunker.New(chunker.Config{
		WindowSize:         cfg.Chunking.WindowSize,
		Overlap:            cfg.Chunking.Overlap,
		MinChunkSize:       cfg.Chunking.MinChunkSize,
		BoundaryPercentile: cfg.Chunking.BoundaryPercentile,
	}, embedder)

	if err := e.checkStoredDimensions(ctx); err != nil {
		e.closePartial()
		return nil, err
	}
	if err := e.openVectorStore(ctx); err != nil {
		e.closePartial()
		return nil, err
	}

	// Startup rebuild runs on its own context: cancelling the caller's
	// ctx must not leave a half-built index behind.
	if err := e.rebuildKeywordIndex(context.Background()); err != nil {
		e.closePartial()
		return nil, err
	}

	e.searcher.Store(e.newSearcher())

	planner := agent.NewPlanner(generator, agent.PlannerConfig{
		Temperature: cfg.LLM.PlanTemperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		MaxQueries:  cfg.Orchestrator.MaxQueriesPerPlan,
	})
	// The executor searches through the engine so it always sees the
	// current indexes, even across Clear.
	executor := agent.NewExecutor(e, meta, cfg.Orchestrator.TopK)
	synthesizer := agent.NewSynthesizer(generator, cfg.LLM.MaxTokens)
	judge := agent.NewJudge(generator, cfg.LLM.MaxTokens)
	e.orchestrator = agent.NewOrchestrator(planner, executor, synthesizer, judge, agent.OrchestratorConfig{
		RetryLimit:   cfg.Orchestrator.RetryLimit,
		StageTimeout: cfg.Orchestrator.StageTimeout,
	})

	e.inconsistent = e.checkConsistency(ctx)

	slog.Info("engine ready",
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.String("embedding_model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()),
		slog.Int("keyword_chunks", e.keyword.Count()),
		slog.Int("vectors", e.vector.Count()))
	return e, nil
}

func (e *Engine) closePartial() {
	if e.vector != nil {
		e.vector.Close()
	}
	e.keyword.Close()
	e.embedder.Close()
	e.generator.Close()
	e.meta.Close()
	e.fileLock.Unlock()
}

// lockDataDir takes the exclusive cross-process lock on the data
// directory. A held lock means another inquira process is running
// against the same data.
func lockDataDir(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	fileLock := flock.New(filepath.Join(dataDir, lockFile))
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data directory: %w", err)
	}
	if !locked {
		return nil, inqerrors.New(inqerrors.ErrCodeInvalidInput,
			fmt.Sprintf("data directory %s is in use by another inquira process", dataDir), nil)
	}
	return fileLock, nil
}

// checkStoredDimensions rejects startup when the stored index was built
// with a different embedding dimension than the active embedder.
func (e *Engine) checkStoredDimensions(ctx context.Context) error {
	stored, err := e.meta.GetState(ctx, store.StateKeyIndexDimension)
	if err != nil {
		return err
	}
	if stored == "" {
		return nil
	}
	dims, err := strconv.Atoi(stored)
	if err != nil {
		return nil
	}
	if dims != e.embedder.Dimensions() {
		return inqerrors.New(inqerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index was built with %d-dimension embeddings, current model %q produces %d",
				dims, e.embedder.ModelName(), e.embedder.Dimensions()), nil).
			WithSuggestion("run 'inquira clear' and re-index with the current embedding model")
	}
	return nil
}

// openVectorStore restores the persisted HNSW index, or rebuilds it
// from the embeddings stored in SQLite when no index file exists.
func (e *Engine) openVectorStore(ctx context.Context) error {
	vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(e.embedder.Dimensions()))
	if err != nil {
		return err
	}
	e.vector = vector

	if _, statErr := os.Stat(e.vectorPath); statErr == nil {
		if err := vector.Load(e.vectorPath); err == nil {
			return nil
		}
		slog.Warn("vector index file unreadable, rebuilding from metadata store",
			slog.String("path", e.vectorPath))
	}

	embeddings, err := e.meta.GetAllEmbeddings(ctx)
	if err != nil {
		return err
	}
	if len(embeddings) == 0 {
		return nil
	}

	ids := make([]string, 0, len(embeddings))
	for id := range embeddings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	vectors := make([][]float32, len(ids))
	for i, id := range ids {
		vectors[i] = embeddings[id]
	}

	if err := vector.Add(ctx, ids, vectors); err != nil {
		return inqerrors.New(inqerrors.ErrCodeIndexUnavailable, "vector index rebuild failed", err)
	}
	slog.Info("vector index rebuilt from metadata store", slog.Int("vectors", len(ids)))
	return nil
}

// rebuildKeywordIndex builds a fresh in-memory keyword index from the
// durable store and swaps it in atomically; in-flight readers finish on
// the old instance.
func (e *Engine) rebuildKeywordIndex(ctx context.Context) error {
	chunks, err := e.meta.AllChunks(ctx)
	if err != nil {
		return err
	}

	idx, err := store.NewBleveIndex()
	if err != nil {
		return err
	}
	if err := idx.Index(ctx, chunks); err != nil {
		idx.Close()
		return err
	}

	if old := e.keyword.Swap(idx); old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("failed to close replaced keyword index", slog.String("error", err.Error()))
		}
	}
	slog.Debug("keyword index rebuilt", slog.Int("chunks", len(chunks)))
	return nil
}

// checkConsistency compares chunk-ID membership across the three stores
// and returns the IDs of documents that need re-ingestion.
func (e *Engine) checkConsistency(ctx context.Context) []string {
	docs, err := e.meta.ListDocuments(ctx)
	if err != nil || len(docs) == 0 {
		return nil
	}

	keywordIDs, err := e.keyword.AllIDs()
	if err != nil {
		return nil
	}
	inKeyword := make(map[string]bool, len(keywordIDs))
	for _, id := range keywordIDs {
		inKeyword[id] = true
	}

	var bad []string
	for _, doc := range docs {
		chunks, err := e.meta.GetChunksByDocument(ctx, doc.ID)
		if err != nil {
			continue
		}
		consistent := true
		for _, chunk := range chunks {
			if !inKeyword[chunk.ID] || !e.vector.Contains(chunk.ID) {
				consistent = false
				break
			}
		}
		if !consistent {
			bad = append(bad, doc.ID)
			indexErr := inqerrors.InconsistentIndexError(doc.ID, nil)
			slog.Error("document indexes are inconsistent, re-ingest required",
				slog.String("document", doc.Name),
				slog.String("code", inqerrors.GetCode(indexErr)))
		}
	}
	return bad
}

// Inconsistent returns the document IDs flagged at startup.
func (e *Engine) Inconsistent() []string {
	return e.inconsistent
}

// IndexDocument ingests one document: chunk, embed, persist, index.
// Embedding runs before any store write, so a failed document leaves no
// half-indexed state behind. Re-indexing an existing name replaces it.
func (e *Engine) IndexDocument(ctx context.Context, name, text string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, inqerrors.New(inqerrors.ErrCodeInvalidInput, "document name is empty", nil)
	}
	if strings.TrimSpace(text) == "" {
		return 0, inqerrors.New(inqerrors.ErrCodeDocumentEmpty, "document has no content", nil).
			WithDetail("document", name)
	}

	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	start := time.Now()
	docID := store.DocumentID(name)

	pieces, err := e.chunker.Chunk(ctx, text)
	if err != nil {
		return 0, err
	}

	chunks := make([]*store.Chunk, len(pieces))
	texts := make([]string, len(pieces))
	ids := make([]string, len(pieces))
	for i, piece := range pieces {
		chunk := &store.Chunk{
			ID:         store.ChunkID(docID, piece.Ordinal, piece.Text),
			DocumentID: docID,
			Ordinal:    piece.Ordinal,
			Text:       piece.Text,
			Start:      piece.Start,
			End:        piece.End,
			Overlap:    piece.Overlap,
			CreatedAt:  time.Now(),
		}
		chunks[i] = chunk
		texts[i] = piece.Text
		ids[i] = chunk.ID
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, inqerrors.EmbeddingError("embedding failed, document not indexed", err).
			WithDetail("document", name)
	}

	if err := e.removeExisting(ctx, docID); err != nil {
		return 0, err
	}

	doc := &store.Document{
		ID:         docID,
		Name:       name,
		Size:       int64(len(text)),
		ChunkCount: len(chunks),
		IndexedAt:  time.Now().UTC(),
	}
	if err := e.meta.SaveDocument(ctx, doc); err != nil {
		return 0, err
	}
	if err := e.meta.SaveChunks(ctx, chunks); err != nil {
		return 0, err
	}
	if err := e.meta.SaveEmbeddings(ctx, ids, vectors, e.embedder.ModelName()); err != nil {
		return 0, err
	}

	if err := e.vector.Add(ctx, ids, vectors); err != nil {
		return 0, err
	}
	if err := e.keyword.Index(ctx, chunks); err != nil {
		return 0, err
	}

	if err := e.vector.Save(e.vectorPath); err != nil {
		slog.Warn("vector index save failed, will rebuild from metadata on next start",
			slog.String("error", err.Error()))
	}
	if err := e.saveIndexState(ctx); err != nil {
		return 0, err
	}

	slog.Info("document indexed",
		slog.String("document", name),
		slog.Int("chunks", len(chunks)),
		slog.Duration("took", time.Since(start)))
	return len(chunks), nil
}

// IndexFile extracts a file's text and indexes it under its base name.
func (e *Engine) IndexFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, inqerrors.ExtractionError("failed to read file", err).
			WithDetail("path", path)
	}

	name := filepath.Base(path)
	text, err := e.extractor.Extract(name, data)
	if err != nil {
		return 0, err
	}
	return e.IndexDocument(ctx, name, text)
}

// removeExisting clears a previously indexed document from all stores.
func (e *Engine) removeExisting(ctx context.Context, docID string) error {
	existing, err := e.meta.GetChunksByDocument(ctx, docID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	oldIDs := make([]string, len(existing))
	for i, chunk := range existing {
		oldIDs[i] = chunk.ID
	}
	if err := e.keyword.Delete(ctx, oldIDs); err != nil {
		return err
	}
	if err := e.vector.Delete(ctx, oldIDs); err != nil {
		return err
	}
	return e.meta.DeleteDocument(ctx, docID)
}

func (e *Engine) saveIndexState(ctx context.Context) error {
	if err := e.meta.SetState(ctx, store.StateKeyIndexDimension,
		strconv.Itoa(e.embedder.Dimensions())); err != nil {
		return err
	}
	return e.meta.SetState(ctx, store.StateKeyIndexModel, e.embedder.ModelName())
}

// newSearcher builds a searcher over the engine's current indexes.
func (e *Engine) newSearcher() *search.Searcher {
	return search.New(e.keyword, e.vector, e.embedder, e.meta, search.Config{
		KeywordWeight:   e.config.Search.KeywordWeight,
		SemanticWeight:  e.config.Search.SemanticWeight,
		TopK:            e.config.Search.TopK,
		FetchMultiplier: e.config.Search.FetchMultiplier,
		Timeout:         e.config.Search.Timeout,
	})
}

// GetDocument looks up an indexed document by ID. Returns nil when the
// document does not exist.
func (e *Engine) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	return e.meta.GetDocument(ctx, id)
}

// Supported reports whether an extractor is registered for the file.
func (e *Engine) Supported(name string) bool {
	return e.extractor.Supported(name)
}

// Search runs one hybrid retrieval query.
func (e *Engine) Search(ctx context.Context, query string, opts *search.Options) ([]*search.Result, error) {
	return e.searcher.Load().Search(ctx, query, opts)
}

// Ask answers a question through the full agent loop.
func (e *Engine) Ask(ctx context.Context, question string) (*agent.Result, error) {
	return e.orchestrator.Run(ctx, question, nil, nil)
}

// AskStream answers a question, emitting stage events and answer deltas
// as the run progresses. Both callbacks may be nil.
func (e *Engine) AskStream(ctx context.Context, question string, events agent.EventFunc, stream llm.StreamFunc) (*agent.Result, error) {
	return e.orchestrator.Run(ctx, question, events, stream)
}

// Stats summarizes the indexed corpus.
type Stats struct {
	Documents      int
	Chunks         int
	Vectors        int
	KeywordChunks  int
	EmbeddingModel string
	Inconsistent   int
}

// Stats reports corpus and index counts.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	docs, err := e.meta.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := e.meta.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Documents:      docs,
		Chunks:         chunks,
		Vectors:        e.vector.Count(),
		KeywordChunks:  e.keyword.Count(),
		EmbeddingModel: e.embedder.ModelName(),
		Inconsistent:   len(e.inconsistent),
	}, nil
}

// Clear drops every document, both indexes, and the persisted vector
// files.
func (e *Engine) Clear(ctx context.Context) error {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	docs, err := e.meta.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := e.meta.DeleteDocument(ctx, doc.ID); err != nil {
			return err
		}
	}
	if err := e.meta.SetState(ctx, store.StateKeyIndexDimension, ""); err != nil {
		return err
	}
	if err := e.meta.SetState(ctx, store.StateKeyIndexModel, ""); err != nil {
		return err
	}

	fresh, err := store.NewBleveIndex()
	if err != nil {
		return err
	}
	if old := e.keyword.Swap(fresh); old != nil {
		old.Close()
	}

	vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(e.embedder.Dimensions()))
	if err != nil {
		return err
	}
	e.vector.Close()
	e.vector = vector
	e.searcher.Store(e.newSearcher())

	os.Remove(e.vectorPath)
	os.Remove(e.vectorPath + ".meta")
	e.inconsistent = nil

	slog.Info("all documents cleared", slog.Int("removed", len(docs)))
	return nil
}

// Close releases every resource the engine holds.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range []func() error{
		e.keyword.Close,
		e.vector.Close,
		e.embedder.Close,
		e.generator.Close,
		e.meta.Close,
		e.fileLock.Unlock,
	} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
