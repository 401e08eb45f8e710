// Package cmd provides the CLI commands for docuchat.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/docuchat-ai/go-docuchat/pkg/config"
	"github.com/docuchat-ai/go-docuchat/pkg/embed"
	"github.com/docuchat-ai/go-docuchat/pkg/engine"
	"github.com/docuchat-ai/go-docuchat/pkg/index"
	"github.com/docuchat-ai/go-docuchat/pkg/ingest"
	"github.com/docuchat-ai/go-docuchat/pkg/logging"
	"github.com/docuchat-ai/go-docuchat/pkg/observability"
	"github.com/docuchat-ai/go-docuchat/pkg/retrieval"
)

// app bundles the lazily-connected shared resources every command needs.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	eng     *engine.Handle
	embed   *embed.Handle
	metrics *observability.Metrics
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "docuchat",
		Short: "Chat with your PDF documents over hybrid search",
		Long: `Docuchat ingests PDF documents into a search engine, combining
full-text and vector retrieval to answer questions about them.

Documents are chunked, embedded, and indexed; queries run as hybrid
searches that degrade gracefully when vector capability is missing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newIngestCmd(&configPath, &verbose),
		newDocumentsCmd(&configPath, &verbose),
		newSearchCmd(&configPath, &verbose),
		newChatCmd(&configPath, &verbose),
		newIndexCmd(&configPath, &verbose),
		newEmbeddingsCmd(&configPath, &verbose),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// newApp loads configuration and prepares the shared handles. Nothing
// connects until a command first uses the engine or the embedding model.
func newApp(configPath string, verbose bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	log := logging.New(logging.Config{
		Level:   level,
		Console: cfg.Logging.Console,
		Out:     os.Stderr,
	})

	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: observability.New(),
	}
	a.eng = engine.NewHandle(&engine.Config{
		Addresses:  []string{cfg.OpenSearch.Address()},
		Timeout:    cfg.OpenSearch.Timeout,
		MaxRetries: cfg.OpenSearch.MaxRetries,
		Logger:     &log,
	})
	a.embed = embed.NewHandle(func() (embed.Provider, error) {
		return newProvider(cfg, &log)
	})
	return a, nil
}

func newProvider(cfg *config.Config, log *zerolog.Logger) (embed.Provider, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embed.NewOpenAI(&embed.OpenAIConfig{
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			BatchSize: cfg.Embedding.BatchSize,
			Logger:    log,
		})
	case "ollama", "":
		return embed.NewOllama(&embed.OllamaConfig{
			Host:      cfg.Embedding.OllamaHost,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			BatchSize: cfg.Embedding.BatchSize,
			Logger:    log,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func (a *app) client() (*engine.Client, error) {
	return a.eng.Client()
}

func (a *app) schema(client *engine.Client) (*index.Manager, error) {
	return index.NewManager(&index.ManagerConfig{
		Client:    client,
		Dimension: a.cfg.Embedding.Dimension,
		Logger:    &a.log,
	})
}

func (a *app) indexer(client *engine.Client) (*index.Indexer, error) {
	return index.NewIndexer(&index.IndexerConfig{
		Client:  client,
		Index:   a.cfg.OpenSearch.Index,
		Metrics: a.metrics,
		Logger:  &a.log,
	})
}

func (a *app) pipeline(client *engine.Client) (*ingest.Pipeline, error) {
	schema, err := a.schema(client)
	if err != nil {
		return nil, err
	}
	indexer, err := a.indexer(client)
	if err != nil {
		return nil, err
	}
	return ingest.New(&ingest.Config{
		Schema:        schema,
		Indexer:       indexer,
		Embedder:      a.embed,
		Index:         a.cfg.OpenSearch.Index,
		WordsPerChunk: a.cfg.Chunking.WordsPerChunk,
		Overlap:       a.cfg.Chunking.Overlap,
		Asymmetric:    a.cfg.Embedding.Asymmetric,
		Logger:        &a.log,
	})
}

func (a *app) retriever(client *engine.Client) (*retrieval.Engine, error) {
	schema, err := a.schema(client)
	if err != nil {
		return nil, err
	}
	return retrieval.New(&retrieval.Config{
		Client:   client,
		Schema:   schema,
		Pipeline: a.cfg.OpenSearch.SearchPipeline,
		Metrics:  a.metrics,
		Logger:   &a.log,
	})
}
