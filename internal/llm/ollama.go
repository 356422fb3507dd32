package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	inqerrors "github.com/inquira/inquira/internal/errors"
)

// OllamaConfig configures the Ollama generator.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default http://localhost:11434).
	Host string

	// Model is the generation model name.
	Model string

	// Timeout bounds a single generation request.
	Timeout time.Duration
}

// ollamaGenerateRequest is the /api/generate request body.
type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// ollamaGenerateResponse is one NDJSON line of the /api/generate stream.
// The final line carries done=true.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaGenerator produces completions using Ollama's HTTP API.
type OllamaGenerator struct {
	client *http.Client
	config OllamaConfig

	mu     sync.RWMutex
	closed bool
}

var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a new Ollama generator.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OllamaGenerator{
		client: &http.Client{},
		config: cfg,
	}
}

// Generate returns the full completion for a prompt.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return g.GenerateStream(ctx, prompt, opts, nil)
}

// GenerateStream produces a completion incrementally. Each NDJSON line's
// response field is passed to fn; the line with done=true ends the stream.
// One bounded retry covers failures before the first delta; once streaming
// has begun, failures surface directly to avoid replaying output.
func (g *OllamaGenerator) GenerateStream(ctx context.Context, prompt string, opts Options, fn StreamFunc) (string, error) {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return "", fmt.Errorf("generator is closed")
	}
	g.mu.RUnlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}

		var streamed bool
		callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		text, err := g.doGenerate(callCtx, prompt, opts, func(delta string) {
			streamed = true
			if fn != nil {
				fn(delta)
			}
		})
		cancel()

		if err == nil {
			return text, nil
		}
		lastErr = err

		if streamed || ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", inqerrors.GenerationError("generation request failed", lastErr).
		WithDetail("host", g.config.Host).
		WithDetail("model", g.config.Model)
}

// doGenerate performs one streaming generation request.
func (g *OllamaGenerator) doGenerate(ctx context.Context, prompt string, opts Options, fn StreamFunc) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := ollamaGenerateRequest{
		Model:  g.config.Model,
		Prompt: prompt,
		Stream: true,
		Options: map[string]any{
			"temperature": opts.Temperature,
			"num_predict": maxTokens,
		},
	}
	if opts.JSONMode {
		reqBody.Format = "json"
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaGenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("malformed stream line: %w", err)
		}

		if chunk.Response != "" {
			sb.WriteString(chunk.Response)
			if fn != nil {
				fn(chunk.Response)
			}
		}

		if chunk.Done {
			return sb.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream interrupted: %w", err)
	}

	return "", fmt.Errorf("stream ended without completion marker")
}

// ModelName returns the model identifier.
func (g *OllamaGenerator) ModelName() string {
	return g.config.Model
}

// Available checks if Ollama is reachable.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return false
	}
	g.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Close releases resources.
func (g *OllamaGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	g.client.CloseIdleConnections()
	return nil
}
