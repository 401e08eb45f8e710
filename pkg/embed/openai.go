package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"
)

// OpenAI encodes text through the OpenAI embeddings API.
//
// Implements Provider. Requires an API key; the Dimensions request parameter
// is pinned to the configured dimension so stored and queried vectors always
// agree.
type OpenAI struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
	log       zerolog.Logger
}

// OpenAIConfig holds OpenAI embedding configuration.
type OpenAIConfig struct {
	// APIKey for the OpenAI API. OPENAI_API_KEY env var when empty.
	APIKey string

	// Optional. Model name, default "text-embedding-3-small".
	Model string

	// Dimension requested from the API. Mismatches are hard errors.
	Dimension int

	// Optional. Sub-batch size for EmbedBatch, default 32.
	BatchSize int

	// Optional. Base URL override for compatible endpoints.
	BaseURL string

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// NewOpenAI creates an OpenAI embedding provider.
//
// Example:
//
//	provider, err := embed.NewOpenAI(&embed.OpenAIConfig{Dimension: 768})
func NewOpenAI(config *OpenAIConfig) (*OpenAI, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", config.Dimension)
	}

	model := config.Model
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}

	var clientOptions []option.RequestOption
	if config.APIKey != "" {
		clientOptions = append(clientOptions, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(config.BaseURL))
	}
	client := openai.NewClient(clientOptions...)

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &OpenAI{
		client:    &client,
		model:     model,
		dimension: config.Dimension,
		batchSize: config.BatchSize,
		log:       log,
	}, nil
}

// Embed encodes a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) (Vector, error) {
	vectors, err := o.embedOnce(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch encodes texts in fixed-size sub-batches, preserving order.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	return embedInBatches(ctx, texts, o.batchSize, o.log, o.embedOnce)
}

// Dimension reports the configured embedding dimension.
func (o *OpenAI) Dimension() int { return o.dimension }

func (o *OpenAI) embedOnce(ctx context.Context, texts []string) ([]Vector, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: openai.Int(int64(o.dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// The API tags each embedding with its input index; place by index so
	// output order always matches input order.
	vectors := make([]Vector, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("openai returned out-of-range embedding index %d", d.Index)
		}
		v := make(Vector, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		if err := checkDimension(v, o.dimension); err != nil {
			return nil, err
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}
