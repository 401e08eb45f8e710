package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/docuchat-ai/go-docuchat/pkg/embed"
	"github.com/docuchat-ai/go-docuchat/pkg/engine"
	"github.com/docuchat-ai/go-docuchat/pkg/observability"
)

// Record is one chunk ready for indexing.
type Record struct {
	// ID is the stable document ID, typically "<document_name>_<seq>".
	ID string

	// Text is the chunk body.
	Text string

	// Embedding is the chunk vector. Accepts embed.Vector, []float32,
	// []float64, or a decoded []any of numbers. Nil is the explicit
	// vectorless form: the chunk is indexed text-only and picked up by the
	// embedding backfill later.
	Embedding any

	// DocumentName is the source document this chunk belongs to.
	DocumentName string
}

// RecordError reports one record dropped during a bulk write, either by
// input validation before submission or by the engine afterwards. Err
// carries the taxonomy sentinel: engine.ErrValidation for the former,
// engine.ErrPartialWrite for the latter.
type RecordError struct {
	ID     string
	Reason string
	Err    error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %q rejected: %s", e.ID, e.Reason)
}

func (e RecordError) Unwrap() error { return e.Err }

// Indexer writes chunk records and manages documents on one index.
type Indexer struct {
	client  *engine.Client
	index   string
	metrics *observability.Metrics
	log     zerolog.Logger
}

// IndexerConfig holds indexer configuration.
type IndexerConfig struct {
	// Client is the shared engine client.
	Client *engine.Client

	// Index is the target index name.
	Index string

	// Optional. Metrics sink; nil disables instrumentation.
	Metrics *observability.Metrics

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// NewIndexer creates an indexer bound to one index.
func NewIndexer(config *IndexerConfig) (*Indexer, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("engine client is required")
	}
	if config.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Indexer{
		client:  config.Client,
		index:   config.Index,
		metrics: config.Metrics,
		log:     log,
	}, nil
}

// IndexChunks validates each record, bulk-indexes the valid ones in one
// request, refreshes the index, and returns the count of records accepted
// plus a per-record error for each rejection. A malformed record is dropped
// and recorded, never aborting the batch: every valid record is still
// submitted, and partial failure is not an error. Only a batch with no valid
// record at all fails as a whole.
func (ix *Indexer) IndexChunks(ctx context.Context, records []Record) (int, []RecordError, error) {
	if len(records) == 0 {
		return 0, nil, nil
	}

	var rejected []RecordError
	actions := make([]engine.BulkAction, 0, len(records))
	for _, rec := range records {
		if reason := validateRecord(rec); reason != "" {
			rejected = append(rejected, RecordError{ID: rec.ID, Reason: reason, Err: engine.ErrValidation})
			continue
		}
		source := map[string]any{
			"text":          rec.Text,
			"document_name": rec.DocumentName,
		}
		if rec.Embedding != nil {
			vector, err := normalizeEmbedding(rec.Embedding)
			if err != nil {
				rejected = append(rejected, RecordError{ID: rec.ID, Reason: err.Error(), Err: engine.ErrValidation})
				continue
			}
			source["embedding"] = vector
		}
		actions = append(actions, engine.BulkAction{
			Op:     "index",
			Index:  ix.index,
			ID:     rec.ID,
			Source: source,
		})
	}
	if len(actions) == 0 {
		ix.metrics.AddRejected(len(rejected))
		return 0, rejected, fmt.Errorf("no valid record among %d: %w", len(records), engine.ErrValidation)
	}

	body, err := engine.EncodeBulk(actions)
	if err != nil {
		return 0, rejected, err
	}
	result, err := ix.client.Bulk(ctx, body)
	if err != nil {
		return 0, rejected, fmt.Errorf("bulk index failed: %w", err)
	}

	for _, item := range result.Failed {
		rejected = append(rejected, RecordError{ID: item.ID, Reason: item.Reason, Err: engine.ErrPartialWrite})
	}

	if err := ix.client.Refresh(ctx, ix.index); err != nil {
		ix.log.Warn().Err(err).Str("index", ix.index).Msg("refresh after bulk index failed")
	}

	ix.metrics.AddIndexed(result.Succeeded)
	ix.metrics.AddRejected(len(rejected))
	ix.log.Info().Str("index", ix.index).
		Int("indexed", result.Succeeded).
		Int("rejected", len(rejected)).
		Msg("indexed chunk records")
	return result.Succeeded, rejected, nil
}

// DeleteByDocumentName removes every chunk belonging to the named document
// and returns how many were deleted. Zero deletions is a success: the end
// state is identical.
func (ix *Indexer) DeleteByDocumentName(ctx context.Context, documentName string) (int, error) {
	if documentName == "" {
		return 0, fmt.Errorf("document name is required")
	}

	deleted, err := ix.client.DeleteByQuery(ctx, ix.index, map[string]any{
		"query": map[string]any{
			"term": map[string]any{
				"document_name.keyword": documentName,
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete document %q: %w", documentName, err)
	}

	if err := ix.client.Refresh(ctx, ix.index); err != nil {
		ix.log.Warn().Err(err).Str("index", ix.index).Msg("refresh after delete failed")
	}

	ix.log.Info().Str("index", ix.index).Str("document", documentName).
		Int("deleted", deleted).Msg("deleted document chunks")
	return deleted, nil
}

// ListDocumentNames returns the distinct document names present in the index,
// sorted. The primary path is a terms aggregation; when the engine rejects
// aggregations, a bounded plain scan collects names instead.
func (ix *Indexer) ListDocumentNames(ctx context.Context) ([]string, error) {
	names, err := ix.client.SearchAggregationKeys(ctx, ix.index, map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"unique_docs": map[string]any{
				"terms": map[string]any{
					"field": "document_name.keyword",
					"size":  10000,
				},
			},
		},
	}, "unique_docs")
	if err == nil {
		sort.Strings(names)
		return names, nil
	}
	ix.log.Warn().Err(err).Str("index", ix.index).Msg("aggregation listing failed, falling back to document scan")

	result, err := ix.client.Search(ctx, ix.index, map[string]any{
		"size":    10000,
		"_source": []string{"document_name"},
	}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	seen := make(map[string]struct{})
	for _, hit := range result.Hits {
		if name, ok := hit.Source["document_name"].(string); ok && name != "" {
			seen[name] = struct{}{}
		}
	}
	names = make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HasDocument reports whether any chunk of the named document is indexed.
func (ix *Indexer) HasDocument(ctx context.Context, documentName string) (bool, error) {
	result, err := ix.client.Search(ctx, ix.index, map[string]any{
		"size": 1,
		"query": map[string]any{
			"term": map[string]any{
				"document_name.keyword": documentName,
			},
		},
		"_source": false,
	}, "")
	if err != nil {
		return false, fmt.Errorf("failed to check document %q: %w", documentName, err)
	}
	return len(result.Hits) > 0, nil
}

// validateRecord returns the reason a record is malformed, or "". A nil
// embedding passes: that is the documented vectorless write.
func validateRecord(rec Record) string {
	switch {
	case rec.ID == "":
		return "missing id"
	case rec.Text == "":
		return "missing text"
	case rec.DocumentName == "":
		return "missing document_name"
	}
	return ""
}

// normalizeEmbedding converts the accepted embedding shapes to []float32.
func normalizeEmbedding(value any) ([]float32, error) {
	switch v := value.(type) {
	case embed.Vector:
		return []float32(v), nil
	case []float32:
		return v, nil
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(v))
		for i, item := range v {
			switch n := item.(type) {
			case float64:
				out[i] = float32(n)
			case float32:
				out[i] = n
			case int:
				out[i] = float32(n)
			default:
				return nil, fmt.Errorf("embedding element %d has unsupported type %T", i, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported embedding type %T", value)
	}
}
