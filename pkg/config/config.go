// Package config holds process-wide configuration for the document chat
// retrieval stack.
//
// Configuration is resolved in three layers: built-in defaults, environment
// variables (a .env file is honored when present), then an optional YAML file
// which overrides both.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/docuchat-ai/go-docuchat/pkg/helpers"
)

// Config is the root configuration shared by all components.
type Config struct {
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Chat       ChatConfig       `yaml:"chat"`
	Logging    LoggingConfig    `yaml:"logging"`
	UploadDir  string           `yaml:"upload_dir"`
}

// OpenSearchConfig configures the search engine connection and index naming.
type OpenSearchConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Index is the logical index name all components operate on. After a
	// migration this may resolve to an alias.
	Index string `yaml:"index"`

	// SearchPipeline is the named fusion pipeline used for hybrid queries.
	SearchPipeline string `yaml:"search_pipeline"`

	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// Address returns the full engine URL.
func (c OpenSearchConfig) Address() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider selects the backend: "ollama" or "openai".
	Provider string `yaml:"provider"`

	// Model is the embedding model name for the selected provider.
	Model string `yaml:"model"`

	// Dimension is the process-wide embedding dimension. Every vector
	// produced or queried must have exactly this length.
	Dimension int `yaml:"dimension"`

	// BatchSize bounds how many texts are encoded per provider call.
	BatchSize int `yaml:"batch_size"`

	// OllamaHost overrides the Ollama server address (OLLAMA_HOST otherwise).
	OllamaHost string `yaml:"ollama_host"`

	// Asymmetric prefixes indexed passages with "passage: " for models
	// trained on asymmetric query/passage pairs.
	Asymmetric bool `yaml:"asymmetric"`
}

// ChunkingConfig configures the text chunker defaults used at ingest time.
type ChunkingConfig struct {
	WordsPerChunk int `yaml:"words_per_chunk"`
	Overlap       int `yaml:"overlap"`
}

// ChatConfig configures the response generation boundary.
type ChatConfig struct {
	OpenAIModel string  `yaml:"openai_model"`
	OllamaModel string  `yaml:"ollama_model"`
	Temperature float64 `yaml:"temperature"`

	// MaxHistoryMessages bounds conversation history in prompts.
	MaxHistoryMessages int `yaml:"max_history_messages"`
}

// LoggingConfig configures process logging.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns the configuration resolved from environment variables over
// built-in defaults. A .env file in the working directory is loaded first
// when present.
func Default() *Config {
	_ = godotenv.Load()

	return &Config{
		OpenSearch: OpenSearchConfig{
			Host:           helpers.GetStringFromEnv("OPENSEARCH_HOST", "localhost"),
			Port:           helpers.GetIntFromEnv("OPENSEARCH_PORT", 9200),
			Index:          helpers.GetStringFromEnv("OPENSEARCH_INDEX", "documents"),
			SearchPipeline: helpers.GetStringFromEnv("OPENSEARCH_SEARCH_PIPELINE", "nlp-search-pipeline"),
			Timeout:        helpers.GetDurationFromEnv("OPENSEARCH_TIMEOUT", 30*time.Second),
			MaxRetries:     helpers.GetIntFromEnv("OPENSEARCH_MAX_RETRIES", 3),
		},
		Embedding: EmbeddingConfig{
			Provider:   helpers.GetStringFromEnv("EMBEDDING_PROVIDER", "ollama"),
			Model:      helpers.GetStringFromEnv("EMBEDDING_MODEL", "all-minilm"),
			Dimension:  helpers.GetIntFromEnv("EMBEDDING_DIMENSION", 768),
			BatchSize:  helpers.GetIntFromEnv("EMBEDDING_BATCH_SIZE", 32),
			OllamaHost: helpers.GetStringFromEnv("OLLAMA_HOST", ""),
			Asymmetric: helpers.GetBoolFromEnv("ASYMMETRIC_EMBEDDING", false),
		},
		Chunking: ChunkingConfig{
			WordsPerChunk: helpers.GetIntFromEnv("TEXT_CHUNK_SIZE", 300),
			Overlap:       helpers.GetIntFromEnv("TEXT_CHUNK_OVERLAP", 100),
		},
		Chat: ChatConfig{
			OpenAIModel:        helpers.GetStringFromEnv("OPENAI_MODEL_NAME", "gpt-4o-mini"),
			OllamaModel:        helpers.GetStringFromEnv("OLLAMA_MODEL_NAME", "qwen3:4b"),
			Temperature:        helpers.GetFloatFromEnv("CHAT_TEMPERATURE", 0.7),
			MaxHistoryMessages: helpers.GetIntFromEnv("CHAT_MAX_HISTORY", 6),
		},
		Logging: LoggingConfig{
			Level:   helpers.GetStringFromEnv("LOG_LEVEL", "info"),
			Console: helpers.GetBoolFromEnv("LOG_CONSOLE", true),
		},
		UploadDir: helpers.GetStringFromEnv("UPLOAD_DIR", "uploaded_files"),
	}
}

// Load returns Default overridden by the YAML file at path when path is
// non-empty.
//
// Example:
//
//	cfg, err := config.Load("docuchat.yaml")
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Chunking.WordsPerChunk <= 0 {
		return fmt.Errorf("words_per_chunk must be positive, got %d", c.Chunking.WordsPerChunk)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.WordsPerChunk {
		return fmt.Errorf("overlap must satisfy 0 <= overlap < words_per_chunk, got %d/%d",
			c.Chunking.Overlap, c.Chunking.WordsPerChunk)
	}
	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	return nil
}
