package generate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// Ollama streams chat responses from a local Ollama server.
//
// Implements Generator.
type Ollama struct {
	client      *api.Client
	model       string
	temperature float64
	log         zerolog.Logger
}

// OllamaConfig holds Ollama chat configuration.
type OllamaConfig struct {
	// Optional. Server address; OLLAMA_HOST or localhost:11434 when empty.
	Host string

	// Optional. Model name, default "qwen3:4b".
	Model string

	// Optional. Sampling temperature, default 0.7.
	Temperature float64

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// NewOllama creates an Ollama chat generator.
func NewOllama(config *OllamaConfig) (*Ollama, error) {
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

	model := config.Model
	if model == "" {
		model = "qwen3:4b"
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Ollama{
		client:      client,
		model:       model,
		temperature: temperature,
		log:         log,
	}, nil
}

// Generate renders the conversation as a single prompt and streams the
// model's reply.
func (o *Ollama) Generate(ctx context.Context, query, contextBlock string, history []Message) (<-chan Fragment, error) {
	prompt := flatPrompt(query, contextBlock, history)
	stream := true
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
		Options:  map[string]any{"temperature": o.temperature},
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			select {
			case out <- Fragment{Text: resp.Message.Content}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			o.log.Error().Err(err).Msg("chat stream failed")
			select {
			case out <- Fragment{Err: fmt.Errorf("chat stream failed: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}
