package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docuchat-ai/go-docuchat/pkg/index"
)

func newIndexCmd(configPath *string, verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create, inspect, or repair the chunk index",
	}
	cmd.AddCommand(
		newIndexCreateCmd(configPath, verbose),
		newIndexInspectCmd(configPath, verbose),
		newIndexRepairCmd(configPath, verbose),
	)
	return cmd
}

func newIndexCreateCmd(configPath *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the chunk index if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			schema, err := a.schema(client)
			if err != nil {
				return err
			}

			created, err := schema.CreateIfAbsent(cmd.Context(), a.cfg.OpenSearch.Index)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created index %q (dimension %d).\n",
					a.cfg.OpenSearch.Index, a.cfg.Embedding.Dimension)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Index %q already exists.\n", a.cfg.OpenSearch.Index)
			}
			return nil
		},
	}
}

func newIndexInspectCmd(configPath *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Classify the fields of the live index schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			schema, err := a.schema(client)
			if err != nil {
				return err
			}

			classes := schema.ClassifyFields(cmd.Context(), a.cfg.OpenSearch.Index)
			if len(classes.Fields) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No classifiable fields (index missing or engine unreachable).")
				return nil
			}
			for _, name := range classes.LexicalFields() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s lexical\n", name)
			}
			for _, name := range classes.VectorFields() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s vector (dimension %d)\n", name, classes.Fields[name].Dimension)
			}
			for _, name := range classes.MisconfiguredFields() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s MISCONFIGURED: holds vectors without a vector type, run \"index repair\"\n", name)
			}
			return nil
		},
	}
}

func newIndexRepairCmd(configPath *string, verbose *bool) *cobra.Command {
	var textField string

	cmd := &cobra.Command{
		Use:   "repair [index]",
		Short: "Migrate an index to a vector-capable schema",
		Long: `Repair rebuilds an index (the configured one when no argument is
given) with a vector-typed embedding field: documents are copied into
a new "<index>_knn" index, verified, the old index is replaced by an
alias, and missing embeddings are backfilled from the text field.

The migration is resumable; rerunning after a partial failure picks up
where it stopped. The original index is only deleted after the copy is
verified non-empty.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			migrator, err := index.NewMigrator(&index.MigratorConfig{
				Client:    client,
				Dimension: a.cfg.Embedding.Dimension,
				Embedder:  a.embed,
				TextField: textField,
				Metrics:   a.metrics,
				Logger:    &a.log,
			})
			if err != nil {
				return err
			}

			report, err := migrator.Migrate(cmd.Context(), targetIndex(a, args))
			for _, stage := range report.Stages {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", stage)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %q -> %q, %d embeddings backfilled.\n",
				report.Source, report.Target, report.Backfilled)
			if report.VectorsMissing {
				fmt.Fprintln(cmd.OutOrStdout(), "No document carries a vector yet; rerun \"embeddings add\".")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&textField, "text-field", "text", "Field the backfill embeds from")
	return cmd
}
