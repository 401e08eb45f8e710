package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd(configPath *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>...",
		Short: "Chunk, embed, and index PDF documents",
		Long: `Ingest extracts the text of each PDF, splits it into overlapping
word-window chunks, embeds the chunks, and indexes them under the
document's filename.

A document that is already indexed is skipped; delete it first to
re-ingest. When the embedding model is unreachable, chunks are indexed
text-only and can be embedded later with "embeddings add".

Examples:
  docuchat ingest report.pdf
  docuchat ingest uploads/*.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *verbose)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			pipeline, err := a.pipeline(client)
			if err != nil {
				return err
			}

			var failed int
			for _, path := range args {
				result, err := pipeline.IngestPDF(cmd.Context(), path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				note := ""
				if !result.Embedded {
					note = " (text-only, run \"embeddings add\" later)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks indexed%s\n",
					result.DocumentName, result.Indexed, note)
				for _, rej := range result.Rejected {
					fmt.Fprintf(cmd.ErrOrStderr(), "  rejected %s: %s\n", rej.ID, rej.Reason)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}
}
