package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// Ollama encodes text through a local Ollama server's embed API.
//
// Implements Provider. Safe for concurrent use; the underlying client holds
// no per-call state.
type Ollama struct {
	client    *api.Client
	model     string
	dimension int
	batchSize int
	log       zerolog.Logger
}

// OllamaConfig holds Ollama embedding configuration.
type OllamaConfig struct {
	// Optional. Server address; OLLAMA_HOST or localhost:11434 when empty.
	Host string

	// Model is the embedding model name, e.g. "all-minilm".
	Model string

	// Dimension the model is expected to produce. Mismatches are hard errors.
	Dimension int

	// Optional. Sub-batch size for EmbedBatch, default 32.
	BatchSize int

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// NewOllama creates an Ollama embedding provider.
//
// Example:
//
//	provider, err := embed.NewOllama(&embed.OllamaConfig{
//	    Model:     "all-minilm",
//	    Dimension: 768,
//	})
func NewOllama(config *OllamaConfig) (*Ollama, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("embedding model name is required")
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", config.Dimension)
	}

	var client *api.Client
	if config.Host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client from environment: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(config.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host URL: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Ollama{
		client:    client,
		model:     config.Model,
		dimension: config.Dimension,
		batchSize: config.BatchSize,
		log:       log,
	}, nil
}

// Embed encodes a single text.
func (o *Ollama) Embed(ctx context.Context, text string) (Vector, error) {
	vectors, err := o.embedOnce(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch encodes texts in fixed-size sub-batches, preserving order.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	return embedInBatches(ctx, texts, o.batchSize, o.log, o.embedOnce)
}

// Dimension reports the configured embedding dimension.
func (o *Ollama) Dimension() int { return o.dimension }

func (o *Ollama) embedOnce(ctx context.Context, texts []string) ([]Vector, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed request failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([]Vector, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		v := Vector(e)
		if err := checkDimension(v, o.dimension); err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}
