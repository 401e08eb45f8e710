// Package generate streams chat answers grounded in retrieved chunks.
package generate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/docuchat-ai/go-docuchat/pkg/engine"
)

// maxHistoryMessages bounds the conversation turns carried into the prompt
// so long sessions cannot overflow the model's context.
const maxHistoryMessages = 6

// maxContextChars truncates each retrieved chunk inside the prompt.
const maxContextChars = 500

// Fragment is one streamed piece of a response. Err, when set, ends the
// stream; Text is empty in that case.
type Fragment struct {
	Text string
	Err  error
}

// Message is one prior conversation turn. Role is "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Generator streams an answer to a question, grounded in retrieved context
// and bounded conversation history. The returned channel is closed when the
// stream ends.
type Generator interface {
	Generate(ctx context.Context, query, contextBlock string, history []Message) (<-chan Fragment, error)
}

// BuildContext flattens ranked hits into the prompt context block, one
// truncated chunk per document, skipping hits without text.
func BuildContext(hits []engine.Hit) string {
	var parts []string
	for i, hit := range hits {
		text, _ := hit.Source["text"].(string)
		if text == "" {
			continue
		}
		if len(text) > maxContextChars {
			cut := maxContextChars
			// Back off to a rune boundary so the prompt stays valid UTF-8.
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		parts = append(parts, fmt.Sprintf("Document %d:\n%s", i, text))
	}
	return strings.Join(parts, "\n\n")
}

// trimHistory keeps the most recent turns.
func trimHistory(history []Message) []Message {
	if len(history) > maxHistoryMessages {
		return history[len(history)-maxHistoryMessages:]
	}
	return history
}

// flatPrompt renders the whole conversation as one prompt string for models
// consumed through a single-prompt API.
func flatPrompt(query, context string, history []Message) string {
	var b strings.Builder
	b.WriteString("You are a knowledgeable chatbot assistant. ")
	if context != "" {
		b.WriteString("Use the following context to answer the question.\nContext:\n")
		b.WriteString(context)
		b.WriteString("\n")
	}
	if len(history) > 0 {
		b.WriteString("Conversation History:\n")
		for _, msg := range trimHistory(history) {
			role := "User"
			if msg.Role == "assistant" {
				role = "Assistant"
			}
			b.WriteString(role)
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(query)
	b.WriteString("\nAssistant:")
	return b.String()
}

// errStream returns an already-failed stream.
func errStream(err error) <-chan Fragment {
	ch := make(chan Fragment, 1)
	ch <- Fragment{Err: err}
	close(ch)
	return ch
}
