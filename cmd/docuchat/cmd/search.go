package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docuchat-ai/go-docuchat/pkg/embed"
	"github.com/docuchat-ai/go-docuchat/pkg/retrieval"
)

func newSearchCmd(configPath *string, verbose *bool) *cobra.Command {
	var topK int
	var lexicalOnly bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed chunks with hybrid retrieval",
		Long: `Search runs the query as a hybrid lexical+vector search when the
index schema and embedding model allow it, and degrades to lexical
search otherwise. Degradations are reported on stderr.

Examples:
  docuchat search "payment terms"
  docuchat search --lexical "payment terms"
  docuchat search -n 3 "termination clause"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			a, err := newApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			retriever, err := a.retriever(client)
			if err != nil {
				return err
			}

			req := &retrieval.Request{
				Query:       query,
				TopK:        topK,
				Index:       a.cfg.OpenSearch.Index,
				TextField:   "text",
				VectorField: "embedding",
			}
			if !lexicalOnly {
				req.Vector = queryVector(cmd, a, query)
			}

			resp, err := retriever.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			for _, d := range resp.Degradations {
				fmt.Fprintf(cmd.ErrOrStderr(), "degraded (%s): %s\n", d.Step, d.Reason)
			}
			if len(resp.Hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d results (%s search):\n", len(resp.Hits), resp.Mode)
			for i, hit := range resp.Hits {
				name, _ := hit.Source["document_name"].(string)
				text, _ := hit.Source["text"].(string)
				if len(text) > 200 {
					text = text[:200] + "..."
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. [%.3f] %s\n    %s\n", i+1, hit.Score, name, text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&lexicalOnly, "lexical", false, "Skip the vector clause")
	return cmd
}

// queryVector embeds the query, treating an unavailable model as lexical-only.
func queryVector(cmd *cobra.Command, a *app, query string) embed.Vector {
	provider, err := a.embed.Provider()
	if err != nil {
		if errors.Is(err, embed.ErrModelUnavailable) {
			fmt.Fprintf(cmd.ErrOrStderr(), "embedding model unavailable, searching lexically: %v\n", err)
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "embedding failed, searching lexically: %v\n", err)
		return nil
	}
	if a.cfg.Embedding.Asymmetric {
		query = "passage: " + query
	}
	vector, err := provider.Embed(cmd.Context(), query)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "embedding failed, searching lexically: %v\n", err)
		return nil
	}
	return vector
}
