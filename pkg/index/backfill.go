package index

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/docuchat-ai/go-docuchat/pkg/embed"
	"github.com/docuchat-ai/go-docuchat/pkg/engine"
	"github.com/docuchat-ai/go-docuchat/pkg/observability"
)

// backfillScanSize is how many chunks one scan page fetches.
const backfillScanSize = 100

// backfillBulkSize is how many embedding updates one bulk call carries.
const backfillBulkSize = 5

// Backfiller adds embeddings to indexed chunks that lack them, in place,
// without reindexing the text.
type Backfiller struct {
	client      *engine.Client
	embedder    *embed.Handle
	vectorField string
	metrics     *observability.Metrics
	log         zerolog.Logger
}

// BackfillerConfig holds backfill configuration.
type BackfillerConfig struct {
	// Client is the shared engine client.
	Client *engine.Client

	// Embedder supplies the embedding provider.
	Embedder *embed.Handle

	// Optional. Vector field written by the backfill, default "embedding".
	VectorField string

	// Optional. Metrics sink.
	Metrics *observability.Metrics

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// NewBackfiller creates a backfiller.
func NewBackfiller(config *BackfillerConfig) (*Backfiller, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("engine client is required")
	}
	if config.Embedder == nil {
		return nil, fmt.Errorf("embedding handle is required")
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	vectorField := config.VectorField
	if vectorField == "" {
		vectorField = "embedding"
	}

	return &Backfiller{
		client:      config.Client,
		embedder:    config.Embedder,
		vectorField: vectorField,
		metrics:     config.Metrics,
		log:         log,
	}, nil
}

// AddMissingEmbeddings finds chunks without a vector field, computes vectors
// for their textField content, and writes them back as partial updates. It
// loops until a refresh shows no chunk missing a vector, and stops early
// when a full pass updates nothing, so persistently rejected chunks cannot
// spin it forever. An empty textField means "text". Returns the number of
// chunks updated.
func (b *Backfiller) AddMissingEmbeddings(ctx context.Context, index, textField string) (int, error) {
	provider, err := b.embedder.Provider()
	if err != nil {
		return 0, err
	}
	if textField == "" {
		textField = "text"
	}

	total := 0
	for {
		result, err := b.client.Search(ctx, index, map[string]any{
			"size": backfillScanSize,
			"query": map[string]any{
				"bool": map[string]any{
					"must_not": map[string]any{
						"exists": map[string]any{"field": b.vectorField},
					},
				},
			},
			"_source": []string{textField},
		}, "")
		if err != nil {
			return total, fmt.Errorf("failed to find chunks missing embeddings: %w", err)
		}
		if len(result.Hits) == 0 {
			break
		}

		updated, err := b.embedAndUpdate(ctx, index, textField, provider, result.Hits)
		total += updated
		if err != nil {
			return total, err
		}
		if updated == 0 {
			b.log.Warn().Str("index", index).Int("remaining", len(result.Hits)).
				Msg("backfill pass updated nothing, stopping")
			break
		}

		if err := b.client.Refresh(ctx, index); err != nil {
			return total, fmt.Errorf("failed to refresh %q during backfill: %w", index, err)
		}
	}

	b.metrics.AddBackfilled(total)
	b.log.Info().Str("index", index).Int("updated", total).Msg("embedding backfill complete")
	return total, nil
}

// CheckAndBackfill probes a sample of chunks and runs the backfill only when
// some lack embeddings. Returns the number of chunks updated, zero when the
// index was already complete.
func (b *Backfiller) CheckAndBackfill(ctx context.Context, index, textField string) (int, error) {
	result, err := b.client.Search(ctx, index, map[string]any{
		"size": 1,
		"query": map[string]any{
			"bool": map[string]any{
				"must_not": map[string]any{
					"exists": map[string]any{"field": b.vectorField},
				},
			},
		},
		"_source": false,
	}, "")
	if err != nil {
		return 0, fmt.Errorf("failed to probe %q for missing embeddings: %w", index, err)
	}
	if len(result.Hits) == 0 {
		b.log.Debug().Str("index", index).Msg("all chunks already carry embeddings")
		return 0, nil
	}
	return b.AddMissingEmbeddings(ctx, index, textField)
}

// embedAndUpdate computes vectors for the hits and writes them back in small
// bulk-update calls. Chunks whose update the engine rejects are skipped and
// counted out; the rest stay updated.
func (b *Backfiller) embedAndUpdate(ctx context.Context, index, textField string, provider embed.Provider, hits []engine.Hit) (int, error) {
	ids := make([]string, 0, len(hits))
	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		text, _ := hit.Source[textField].(string)
		if text == "" {
			b.log.Warn().Str("id", hit.ID).Msg("chunk has no text, skipping backfill")
			continue
		}
		ids = append(ids, hit.ID)
		texts = append(texts, text)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	vectors, err := provider.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %d chunks: %w", len(texts), err)
	}

	updated := 0
	for start := 0; start < len(ids); start += backfillBulkSize {
		end := start + backfillBulkSize
		if end > len(ids) {
			end = len(ids)
		}

		actions := make([]engine.BulkAction, 0, end-start)
		for i := start; i < end; i++ {
			actions = append(actions, engine.BulkAction{
				Op:          "update",
				Index:       index,
				ID:          ids[i],
				Doc:         map[string]any{b.vectorField: vectors[i]},
				DocAsUpsert: true,
			})
		}

		body, err := engine.EncodeBulk(actions)
		if err != nil {
			return updated, err
		}
		result, err := b.client.Bulk(ctx, body)
		if err != nil {
			return updated, fmt.Errorf("bulk embedding update failed: %w", err)
		}
		updated += result.Succeeded
		for _, item := range result.Failed {
			b.log.Warn().Str("id", item.ID).Int("status", item.Status).
				Str("reason", item.Reason).Msg("embedding update rejected")
		}
	}
	return updated, nil
}
