package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"
)

// OpenAI streams chat completions from the OpenAI API.
//
// Implements Generator.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float64
	log         zerolog.Logger
}

// OpenAIConfig holds OpenAI chat configuration.
type OpenAIConfig struct {
	// APIKey for the OpenAI API. Keys not starting with "sk-" are
	// rejected up front so a placeholder never reaches the wire.
	APIKey string

	// Optional. Model name, default "gpt-4o-mini".
	Model string

	// Optional. Sampling temperature, default 0.7.
	Temperature float64

	// Optional. Base URL override for compatible endpoints.
	BaseURL string

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// NewOpenAI creates an OpenAI chat generator.
func NewOpenAI(config *OpenAIConfig) (*OpenAI, error) {
	if !strings.HasPrefix(config.APIKey, "sk-") {
		return nil, fmt.Errorf("OpenAI API key is missing or not configured")
	}

	model := config.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	client := openai.NewClient(opts...)

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &OpenAI{
		client:      &client,
		model:       model,
		temperature: temperature,
		log:         log,
	}, nil
}

// Generate streams the completion. The context block and each history turn
// ride along as chat messages; history is bounded to the most recent turns.
func (o *OpenAI) Generate(ctx context.Context, query, contextBlock string, history []Message) (<-chan Fragment, error) {
	messages := o.messages(query, contextBlock, history)

	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            messages,
		Temperature:         openai.Float(o.temperature),
		MaxCompletionTokens: openai.Int(1000),
	})

	out := make(chan Fragment)
	go func() {
		defer close(out)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				select {
				case out <- Fragment{Text: content}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			o.log.Error().Err(err).Msg("completion stream failed")
			select {
			case out <- Fragment{Err: fmt.Errorf("completion stream failed: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (o *OpenAI) messages(query, contextBlock string, history []Message) []openai.ChatCompletionMessageParamUnion {
	system := "You are a knowledgeable chatbot assistant."
	if contextBlock != "" {
		system += " Use the following context to answer the question."
	}

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}
	if contextBlock != "" {
		messages = append(messages, openai.SystemMessage("Context:\n"+contextBlock))
	}
	for _, msg := range trimHistory(history) {
		if msg.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		} else {
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return append(messages, openai.UserMessage(query))
}
