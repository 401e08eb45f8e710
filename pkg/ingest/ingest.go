// Package ingest turns uploaded documents into indexed, embedded chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/docuchat-ai/go-docuchat/pkg/chunk"
	"github.com/docuchat-ai/go-docuchat/pkg/embed"
	"github.com/docuchat-ai/go-docuchat/pkg/extract"
	"github.com/docuchat-ai/go-docuchat/pkg/index"
)

// ErrAlreadyIngested is returned when chunks of the document are already
// indexed. Re-ingesting requires deleting the document first.
var ErrAlreadyIngested = errors.New("document already ingested")

// ErrNoText is returned when a document yields no indexable text.
var ErrNoText = errors.New("document contains no extractable text")

// Result summarizes one ingestion.
type Result struct {
	// DocumentName is the logical name the chunks were indexed under.
	DocumentName string

	// Chunks is how many chunks the text split into.
	Chunks int

	// Indexed is how many chunks the engine accepted.
	Indexed int

	// Rejected lists per-chunk indexing failures.
	Rejected []index.RecordError

	// Embedded is false when the embedding model was unavailable and the
	// chunks were indexed text-only, to be backfilled later.
	Embedded bool
}

// Pipeline chunks, embeds, and indexes documents.
type Pipeline struct {
	schema        *index.Manager
	indexer       *index.Indexer
	embedder      *embed.Handle
	indexName     string
	wordsPerChunk int
	overlap       int
	asymmetric    bool
	log           zerolog.Logger
}

// Config holds ingestion configuration.
type Config struct {
	// Schema creates the index on first ingestion.
	Schema *index.Manager

	// Indexer writes the chunk records.
	Indexer *index.Indexer

	// Embedder supplies the embedding provider.
	Embedder *embed.Handle

	// Index is the target index name.
	Index string

	// WordsPerChunk is the chunk window size. Defaults to 300.
	WordsPerChunk int

	// Overlap is the window overlap in words. Defaults to 100.
	Overlap int

	// Asymmetric prefixes chunk text with "passage: " for models trained
	// on asymmetric query/passage pairs.
	Asymmetric bool

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// New creates an ingestion pipeline.
func New(config *Config) (*Pipeline, error) {
	if config.Schema == nil {
		return nil, fmt.Errorf("schema manager is required")
	}
	if config.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if config.Embedder == nil {
		return nil, fmt.Errorf("embedding handle is required")
	}
	if config.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}

	words := config.WordsPerChunk
	if words <= 0 {
		words = 300
	}
	overlap := config.Overlap
	if overlap <= 0 {
		overlap = 100
	}
	if overlap >= words {
		return nil, fmt.Errorf("overlap %d must be less than words per chunk %d", overlap, words)
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Pipeline{
		schema:        config.Schema,
		indexer:       config.Indexer,
		embedder:      config.Embedder,
		indexName:     config.Index,
		wordsPerChunk: words,
		overlap:       overlap,
		asymmetric:    config.Asymmetric,
		log:           log,
	}, nil
}

// IngestText chunks, embeds, and indexes text under documentName. Chunk IDs
// are "<document_name>_<seq>" so re-ingestion after deletion is stable. An
// unavailable embedding model degrades to text-only indexing instead of
// failing; the backfill tool can add vectors later.
func (p *Pipeline) IngestText(ctx context.Context, documentName, text string) (*Result, error) {
	if documentName == "" {
		return nil, fmt.Errorf("document name is required")
	}

	if _, err := p.schema.CreateIfAbsent(ctx, p.indexName); err != nil {
		return nil, err
	}

	exists, err := p.indexer.HasDocument(ctx, documentName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%q: %w", documentName, ErrAlreadyIngested)
	}

	chunks, err := chunk.Split(chunk.Clean(text), p.wordsPerChunk, p.overlap)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%q: %w", documentName, ErrNoText)
	}

	result := &Result{DocumentName: documentName, Chunks: len(chunks)}

	records := make([]index.Record, len(chunks))
	for i, text := range chunks {
		if p.asymmetric {
			text = "passage: " + text
		}
		records[i] = index.Record{
			ID:           fmt.Sprintf("%s_%d", documentName, i),
			Text:         text,
			DocumentName: documentName,
		}
	}

	vectors, err := p.embedChunks(ctx, records)
	switch {
	case errors.Is(err, embed.ErrModelUnavailable):
		p.log.Warn().Err(err).Str("document", documentName).
			Msg("embedding model unavailable, indexing text-only")
	case err != nil:
		return nil, err
	default:
		for i := range records {
			records[i].Embedding = vectors[i]
		}
		result.Embedded = true
	}

	indexed, rejected, err := p.indexer.IndexChunks(ctx, records)
	if err != nil {
		return nil, err
	}
	result.Indexed = indexed
	result.Rejected = rejected

	p.log.Info().Str("document", documentName).Int("chunks", result.Chunks).
		Int("indexed", indexed).Bool("embedded", result.Embedded).Msg("document ingested")
	return result, nil
}

// IngestPDF extracts the text of the PDF at path and ingests it under its
// sanitized base filename.
func (p *Pipeline) IngestPDF(ctx context.Context, path string) (*Result, error) {
	name := extract.SafeName(path)
	if name == "" {
		return nil, fmt.Errorf("no usable document name in %q", path)
	}
	text, err := extract.PDF(path)
	if err != nil {
		return nil, err
	}
	return p.IngestText(ctx, name, text)
}

// Delete removes every chunk of the named document and returns how many were
// deleted.
func (p *Pipeline) Delete(ctx context.Context, documentName string) (int, error) {
	return p.indexer.DeleteByDocumentName(ctx, documentName)
}

func (p *Pipeline) embedChunks(ctx context.Context, records []index.Record) ([]embed.Vector, error) {
	provider, err := p.embedder.Provider()
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}
	vectors, err := provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d chunks: %w", len(texts), err)
	}
	return vectors, nil
}
