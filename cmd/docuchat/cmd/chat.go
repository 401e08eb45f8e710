package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docuchat-ai/go-docuchat/pkg/generate"
	"github.com/docuchat-ai/go-docuchat/pkg/retrieval"
)

func newChatCmd(configPath *string, verbose *bool) *cobra.Command {
	var provider string
	var topK int
	var noSearch bool

	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask questions about the indexed documents",
		Long: `Chat answers a single question, or starts an interactive session
when no question is given. Each question runs a hybrid search over the
indexed chunks, and the top results ground the model's streamed answer.

The provider "auto" uses OpenAI when OPENAI_API_KEY is configured and
falls back to a local Ollama server otherwise.

Examples:
  docuchat chat "what are the payment terms?"
  docuchat chat --provider ollama
  docuchat chat --no-search "hello"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *verbose)
			if err != nil {
				return err
			}

			gen, err := generate.Select(provider,
				&generate.OpenAIConfig{
					APIKey:      os.Getenv("OPENAI_API_KEY"),
					Model:       a.cfg.Chat.OpenAIModel,
					Temperature: a.cfg.Chat.Temperature,
					Logger:      &a.log,
				},
				&generate.OllamaConfig{
					Host:        a.cfg.Embedding.OllamaHost,
					Model:       a.cfg.Chat.OllamaModel,
					Temperature: a.cfg.Chat.Temperature,
					Logger:      &a.log,
				})
			if err != nil {
				return err
			}

			var retriever *retrieval.Engine
			if !noSearch {
				client, err := a.client()
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "search engine unavailable, answering without context: %v\n", err)
				} else if retriever, err = a.retriever(client); err != nil {
					return err
				}
			}

			if len(args) > 0 {
				question := strings.Join(args, " ")
				_, err := answer(cmd, a, gen, retriever, topK, question, nil)
				return err
			}
			return interactive(cmd, a, gen, retriever, topK)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "auto", "Chat backend: auto, openai, ollama")
	cmd.Flags().IntVarP(&topK, "limit", "n", 5, "Number of chunks to ground the answer on")
	cmd.Flags().BoolVar(&noSearch, "no-search", false, "Answer without retrieving context")
	return cmd
}

// answer streams one reply and returns it for the session history.
func answer(cmd *cobra.Command, a *app, gen generate.Generator, retriever *retrieval.Engine,
	topK int, question string, history []generate.Message) (string, error) {

	contextBlock := ""
	if retriever != nil {
		req := &retrieval.Request{
			Query:       question,
			Vector:      queryVector(cmd, a, question),
			TopK:        topK,
			Index:       a.cfg.OpenSearch.Index,
			TextField:   "text",
			VectorField: "embedding",
		}
		resp, err := retriever.Search(cmd.Context(), req)
		if err != nil {
			return "", err
		}
		contextBlock = generate.BuildContext(resp.Hits)
	}

	stream, err := gen.Generate(cmd.Context(), question, contextBlock, history)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for frag := range stream {
		if frag.Err != nil {
			fmt.Fprintln(cmd.OutOrStdout())
			return b.String(), frag.Err
		}
		fmt.Fprint(cmd.OutOrStdout(), frag.Text)
		b.WriteString(frag.Text)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return b.String(), nil
}

func interactive(cmd *cobra.Command, a *app, gen generate.Generator, retriever *retrieval.Engine, topK int) error {
	fmt.Fprintln(cmd.OutOrStdout(), "Ask about your documents. Ctrl-D to exit.")

	var history []generate.Message
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(cmd.OutOrStdout(), "> ")
		if !scanner.Scan() {
			fmt.Fprintln(cmd.OutOrStdout())
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		reply, err := answer(cmd, a, gen, retriever, topK, question, history)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		history = append(history,
			generate.Message{Role: "user", Content: question},
			generate.Message{Role: "assistant", Content: reply},
		)
	}
}
