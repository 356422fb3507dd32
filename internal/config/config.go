// Package config loads and validates Inquira configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Project config (.inquira.yaml in the working directory)
//  3. Environment variables (INQUIRA_*)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Inquira configuration.
type Config struct {
	Version      int                `yaml:"version" json:"version"`
	Storage      StorageConfig      `yaml:"storage" json:"storage"`
	Chunking     ChunkingConfig     `yaml:"chunking" json:"chunking"`
	Search       SearchConfig       `yaml:"search" json:"search"`
	Embeddings   EmbeddingsConfig   `yaml:"embeddings" json:"embeddings"`
	LLM          LLMConfig          `yaml:"llm" json:"llm"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" json:"orchestrator"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
}

// StorageConfig configures where durable state lives.
type StorageConfig struct {
	// DataDir is the directory for the SQLite database and vector index files.
	// Defaults to ~/.inquira/data.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// ChunkingConfig configures the semantic chunker.
type ChunkingConfig struct {
	// WindowSize is the base chunk window in characters.
	WindowSize int `yaml:"window_size" json:"window_size"`

	// Overlap is the number of characters duplicated from the previous
	// chunk at the start of each chunk.
	Overlap int `yaml:"overlap" json:"overlap"`

	// MinChunkSize is the minimum chunk size in characters; smaller chunks
	// are merged into a neighbor.
	MinChunkSize int `yaml:"min_chunk_size" json:"min_chunk_size"`

	// BoundaryPercentile is the percentile of the document's sentence
	// distance distribution above which a semantic cut is placed (0-100).
	BoundaryPercentile float64 `yaml:"boundary_percentile" json:"boundary_percentile"`
}

// SearchConfig configures hybrid retrieval.
// Weights must sum to 1.0 and can be overridden per request.
type SearchConfig struct {
	// KeywordWeight is the weight for BM25 keyword matching (0.0-1.0).
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// SemanticWeight is the weight for vector similarity (0.0-1.0).
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// TopK is the default number of fused results returned.
	TopK int `yaml:"top_k" json:"top_k"`

	// FetchMultiplier controls per-path over-fetch: each index is asked
	// for FetchMultiplier*k candidates before fusion.
	FetchMultiplier int `yaml:"fetch_multiplier" json:"fetch_multiplier"`

	// Timeout bounds a single hybrid search.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama", "static", or empty for
	// auto-detection (Ollama when reachable, static otherwise).
	Provider string `yaml:"provider" json:"provider"`

	// Model is the Ollama embedding model name.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the embedding vector size. 0 means auto-detect.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// Timeout bounds a single embedding request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// CacheSize is the number of embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	// Model is the Ollama generation model name.
	Model string `yaml:"model" json:"model"`

	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// Temperature for planning and judging stages (low, deterministic).
	PlanTemperature float64 `yaml:"plan_temperature" json:"plan_temperature"`

	// Temperature for drafting and synthesis stages.
	DraftTemperature float64 `yaml:"draft_temperature" json:"draft_temperature"`

	// MaxTokens bounds a single generation.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// Timeout bounds a single generation request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// OrchestratorConfig configures the agentic answer loop.
type OrchestratorConfig struct {
	// RetryLimit is the maximum number of judge-driven retries per question.
	RetryLimit int `yaml:"retry_limit" json:"retry_limit"`

	// TopK is the number of chunks retrieved per search call.
	TopK int `yaml:"top_k" json:"top_k"`

	// MaxQueriesPerPlan caps the number of search queries a plan may issue.
	MaxQueriesPerPlan int `yaml:"max_queries_per_plan" json:"max_queries_per_plan"`

	// StageTimeout bounds a single stage (plan, draft, synthesize, judge).
	StageTimeout time.Duration `yaml:"stage_timeout" json:"stage_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Chunking: ChunkingConfig{
			WindowSize:         1500,
			Overlap:            300,
			MinChunkSize:       350,
			BoundaryPercentile: 90,
		},
		Search: SearchConfig{
			KeywordWeight:   0.4,
			SemanticWeight:  0.6,
			TopK:            10,
			FetchMultiplier: 2,
			Timeout:         10 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // Empty triggers auto-detection: Ollama -> Static
			Model:      "nomic-embed-text",
			Dimensions: 0, // Auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "",
			Timeout:    30 * time.Second,
			CacheSize:  4096,
		},
		LLM: LLMConfig{
			Model:            "llama3.1:8b",
			OllamaHost:       "",
			PlanTemperature:  0.1,
			DraftTemperature: 0.4,
			MaxTokens:        2048,
			Timeout:          120 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			RetryLimit:        3,
			TopK:              10,
			MaxQueriesPerPlan: 4,
			StageTimeout:      150 * time.Second,
		},
		Logging: LoggingConfig{
			Level:     "info",
			FilePath:  "", // Empty uses the default log path
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "inquira", "data")
	}
	return filepath.Join(home, ".inquira", "data")
}

// Load loads configuration from the specified directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .inquira.yaml or .inquira.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".inquira.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".inquira.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}

	// Chunking
	if other.Chunking.WindowSize != 0 {
		c.Chunking.WindowSize = other.Chunking.WindowSize
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}
	if other.Chunking.MinChunkSize != 0 {
		c.Chunking.MinChunkSize = other.Chunking.MinChunkSize
	}
	if other.Chunking.BoundaryPercentile != 0 {
		c.Chunking.BoundaryPercentile = other.Chunking.BoundaryPercentile
	}

	// Search weights
	// 0 is not a practical value for weights, so only merge non-zero values
	if other.Search.KeywordWeight != 0 {
		c.Search.KeywordWeight = other.Search.KeywordWeight
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.FetchMultiplier != 0 {
		c.Search.FetchMultiplier = other.Search.FetchMultiplier
	}
	if other.Search.Timeout != 0 {
		c.Search.Timeout = other.Search.Timeout
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// LLM
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.OllamaHost != "" {
		c.LLM.OllamaHost = other.LLM.OllamaHost
	}
	if other.LLM.PlanTemperature != 0 {
		c.LLM.PlanTemperature = other.LLM.PlanTemperature
	}
	if other.LLM.DraftTemperature != 0 {
		c.LLM.DraftTemperature = other.LLM.DraftTemperature
	}
	if other.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = other.LLM.MaxTokens
	}
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}

	// Orchestrator
	if other.Orchestrator.RetryLimit != 0 {
		c.Orchestrator.RetryLimit = other.Orchestrator.RetryLimit
	}
	if other.Orchestrator.TopK != 0 {
		c.Orchestrator.TopK = other.Orchestrator.TopK
	}
	if other.Orchestrator.MaxQueriesPerPlan != 0 {
		c.Orchestrator.MaxQueriesPerPlan = other.Orchestrator.MaxQueriesPerPlan
	}
	if other.Orchestrator.StageTimeout != 0 {
		c.Orchestrator.StageTimeout = other.Orchestrator.StageTimeout
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies INQUIRA_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INQUIRA_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}

	// Search weights support explicit zero values via env vars
	if v := os.Getenv("INQUIRA_KEYWORD_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.KeywordWeight = w
		}
	}
	if v := os.Getenv("INQUIRA_SEMANTIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("INQUIRA_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.TopK = k
		}
	}

	if v := os.Getenv("INQUIRA_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("INQUIRA_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("INQUIRA_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.LLM.OllamaHost = v
	}
	if v := os.Getenv("INQUIRA_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv("INQUIRA_RETRY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Orchestrator.RetryLimit = n
		}
	}

	if v := os.Getenv("INQUIRA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	// Search weights
	if c.Search.KeywordWeight < 0 || c.Search.KeywordWeight > 1 {
		return fmt.Errorf("keyword_weight must be between 0 and 1, got %f", c.Search.KeywordWeight)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	sum := c.Search.KeywordWeight + c.Search.SemanticWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("keyword_weight + semantic_weight must equal 1.0, got %.2f", sum)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.FetchMultiplier < 1 {
		return fmt.Errorf("fetch_multiplier must be at least 1, got %d", c.Search.FetchMultiplier)
	}

	// Chunking
	if c.Chunking.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", c.Chunking.WindowSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.WindowSize {
		return fmt.Errorf("overlap must be in [0, window_size), got %d", c.Chunking.Overlap)
	}
	if c.Chunking.MinChunkSize < 0 {
		return fmt.Errorf("min_chunk_size must be non-negative, got %d", c.Chunking.MinChunkSize)
	}
	if c.Chunking.BoundaryPercentile < 0 || c.Chunking.BoundaryPercentile > 100 {
		return fmt.Errorf("boundary_percentile must be in [0, 100], got %f", c.Chunking.BoundaryPercentile)
	}

	// Embeddings provider (empty string allowed for auto-detection)
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	// Orchestrator
	if c.Orchestrator.RetryLimit < 0 {
		return fmt.Errorf("retry_limit must be non-negative, got %d", c.Orchestrator.RetryLimit)
	}

	// Log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
