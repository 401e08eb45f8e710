package generate

import "fmt"

// Select builds the generator for the configured provider. "openai" and
// "ollama" bind that backend or fail; "auto" prefers OpenAI when a usable
// key is configured and falls back to Ollama otherwise.
func Select(provider string, openaiCfg *OpenAIConfig, ollamaCfg *OllamaConfig) (Generator, error) {
	switch provider {
	case "openai":
		return NewOpenAI(openaiCfg)
	case "ollama":
		return NewOllama(ollamaCfg)
	case "auto", "":
		if gen, err := NewOpenAI(openaiCfg); err == nil {
			return gen, nil
		}
		return NewOllama(ollamaCfg)
	default:
		return nil, fmt.Errorf("unknown chat provider %q", provider)
	}
}
