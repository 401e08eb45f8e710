package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDocumentsCmd(configPath *string, verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List or delete indexed documents",
	}
	cmd.AddCommand(
		newDocumentsListCmd(configPath, verbose),
		newDocumentsDeleteCmd(configPath, verbose),
	)
	return cmd
}

func newDocumentsListCmd(configPath *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the distinct document names in the index",
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
			indexer, err := a.indexer(client)
			if err != nil {
				return err
			}

			names, err := indexer.ListDocumentNames(cmd.Context())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents indexed.")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newDocumentsDeleteCmd(configPath *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document_name>...",
		Short: "Delete every chunk of the named documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			indexer, err := a.indexer(client)
			if err != nil {
				return err
			}

			for _, name := range args {
				deleted, err := indexer.DeleteByDocumentName(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks deleted\n", name, deleted)
			}
			return nil
		},
	}
}
