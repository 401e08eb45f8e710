package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docuchat-ai/go-docuchat/pkg/index"
)

func newEmbeddingsCmd(configPath *string, verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embeddings",
		Short: "Check or backfill chunk embeddings",
	}
	cmd.AddCommand(
		newEmbeddingsAddCmd(configPath, verbose),
		newEmbeddingsCheckCmd(configPath, verbose),
	)
	return cmd
}

func (a *app) backfiller() (*index.Backfiller, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	return index.NewBackfiller(&index.BackfillerConfig{
		Client:   client,
		Embedder: a.embed,
		Metrics:  a.metrics,
		Logger:   &a.log,
	})
}

// targetIndex resolves the optional positional index argument, falling back
// to the configured index.
func targetIndex(a *app, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.OpenSearch.Index
}

func newEmbeddingsAddCmd(configPath *string, verbose *bool) *cobra.Command {
	var textField string

	cmd := &cobra.Command{
		Use:   "add [index]",
		Short: "Embed every chunk that is missing a vector",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			backfiller, err := a.backfiller()
			if err != nil {
				return err
			}

			updated, err := backfiller.AddMissingEmbeddings(cmd.Context(), targetIndex(a, args), textField)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d chunks embedded.\n", updated)
			return nil
		},
	}

	cmd.Flags().StringVar(&textField, "text-field", "text", "Field whose content is embedded")
	return cmd
}

func newEmbeddingsCheckCmd(configPath *string, verbose *bool) *cobra.Command {
	var textField string

	cmd := &cobra.Command{
		Use:   "check [index]",
		Short: "Backfill embeddings only if some chunks are missing them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			backfiller, err := a.backfiller()
			if err != nil {
				return err
			}

			updated, err := backfiller.CheckAndBackfill(cmd.Context(), targetIndex(a, args), textField)
			if err != nil {
				return err
			}
			if updated == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All chunks already carry embeddings.")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%d chunks embedded.\n", updated)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&textField, "text-field", "text", "Field whose content is embedded")
	return cmd
}
