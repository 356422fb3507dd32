package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeOllama starts a test server that answers /api/embed with a fixed
// 4-dimensional vector per input and /api/tags with an empty model list.
func newFakeOllama(t *testing.T, requestCount *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_ = json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
		case "/api/embed":
			if requestCount != nil {
				requestCount.Add(1)
			}
			var req ollamaEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			count := 1
			if arr, ok := req.Input.([]any); ok {
				count = len(arr)
			}
			embeddings := make([][]float64, count)
			for i := range embeddings {
				embeddings[i] = []float64{1, 2, 3, 4}
			}
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: embeddings})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := newFakeOllama(t, nil)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  srv.URL,
		Model: "test-model",
	})
	require.NoError(t, err)
	defer e.Close()

	// Dimensions auto-detected from the health check embedding
	assert.Equal(t, 4, e.Dimensions())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, vec, 4)
	// Vectors come back unit-normalized
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-5)
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv := newFakeOllama(t, nil)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		Model:           "test-model",
		Dimensions:      4,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "", "c"})
	require.NoError(t, err)

	require.Len(t, vecs, 4)
	// Empty input gets a zero vector without an API call
	assert.Zero(t, vectorNorm(vecs[2]))
	assert.InDelta(t, 1.0, vectorNorm(vecs[0]), 1e-5)
}

func TestOllamaEmbedder_RetriesTransientFailure(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{1, 0, 0, 0}}})
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		Model:           "test-model",
		Dimensions:      4,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "retry me")

	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestOllamaEmbedder_UnreachableHostFailsWithEmbeddingError(t *testing.T) {
	srv := newFakeOllama(t, nil)
	srv.Close() // Immediately closed: connection refused

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		Model:           "test-model",
		Dimensions:      4,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "no one listening")

	require.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestOllamaEmbedder_Available(t *testing.T) {
	srv := newFakeOllama(t, nil)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		Model:           "test-model",
		Dimensions:      4,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	assert.True(t, e.Available(context.Background()))
}
