package index

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/docuchat-ai/go-docuchat/pkg/embed"
	"github.com/docuchat-ai/go-docuchat/pkg/engine"
	"github.com/docuchat-ai/go-docuchat/pkg/observability"
)

// Stage names one completed step of an index migration.
type Stage string

const (
	StageSourceChecked      Stage = "source_checked"
	StageNewIndexReady      Stage = "new_index_ready"
	StageDataCopied         Stage = "data_copied"
	StageVerified           Stage = "verified"
	StageAliasSwapped       Stage = "alias_swapped"
	StageEmbeddingsBackfill Stage = "embeddings_backfilled"
	StageDone               Stage = "done"
)

// Report describes what a migration run did.
type Report struct {
	// Source is the migrated index.
	Source string

	// Target is the vector-capable index that now serves reads under the
	// source name.
	Target string

	// Stages lists the steps completed, in order.
	Stages []Stage

	// Copied is the document count the post-copy verification saw.
	Copied int

	// Backfilled is the number of chunks that received embeddings.
	Backfilled int

	// VectorsMissing is set when the final sample found no document
	// carrying a vector. The migration is still committed; only the
	// backfill needs rerunning.
	VectorsMissing bool
}

// Migrator rebuilds a text-only index as a vector-capable one. The sequence
// is ordered so the destructive step runs only after the copied data has been
// verified:
//
//  1. confirm the source index exists and is open
//  2. create "<source>_knn" carrying the source's fields plus a vector
//     field, preserving the source's shard and replica counts; when the
//     target already exists, reuse it and skip the copy
//  3. reindex source into the new index, waiting for completion
//  4. refresh and verify the copy holds documents; an empty copy aborts
//     the run with the source untouched
//  5. delete the source and bind its name as an alias of the new index
//  6. backfill embeddings for the copied chunks
//  7. sample one document for a vector; absence is reported, not fatal
//
// A failure before step 5 leaves the source intact and the run safe to
// retry. A failure at or after step 5 leaves the system migrated but not
// fully embedded; rerunning resumes at the backfill.
type Migrator struct {
	client     *engine.Client
	backfiller *Backfiller
	dimension  int
	textField  string
	metrics    *observability.Metrics
	log        zerolog.Logger
}

// MigratorConfig holds migration configuration.
type MigratorConfig struct {
	// Client is the shared engine client.
	Client *engine.Client

	// Dimension is the embedding dimension of the target schema.
	Dimension int

	// Embedder supplies the provider used for the backfill step.
	Embedder *embed.Handle

	// Optional. Field the backfill embeds from, default "text".
	TextField string

	// Optional. Metrics sink.
	Metrics *observability.Metrics

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// NewMigrator creates a migrator.
func NewMigrator(config *MigratorConfig) (*Migrator, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("engine client is required")
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", config.Dimension)
	}
	if config.Embedder == nil {
		return nil, fmt.Errorf("embedding handle is required")
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	backfiller, err := NewBackfiller(&BackfillerConfig{
		Client:   config.Client,
		Embedder: config.Embedder,
		Metrics:  config.Metrics,
		Logger:   &log,
	})
	if err != nil {
		return nil, err
	}

	textField := config.TextField
	if textField == "" {
		textField = "text"
	}

	return &Migrator{
		client:     config.Client,
		backfiller: backfiller,
		dimension:  config.Dimension,
		textField:  textField,
		metrics:    config.Metrics,
		log:        log,
	}, nil
}

// Migrate runs the migration for source and returns a report of the stages
// completed. On error the report still lists the stages that finished, so a
// rerun can be judged against it.
func (m *Migrator) Migrate(ctx context.Context, source string) (*Report, error) {
	report := &Report{Source: source, Target: source + "_knn"}

	err := m.migrate(ctx, source, report)
	if err != nil {
		m.metrics.ObserveMigration("failure")
		return report, err
	}
	m.metrics.ObserveMigration("success")
	return report, nil
}

func (m *Migrator) migrate(ctx context.Context, source string, report *Report) error {
	exists, err := m.client.IndexExists(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to check source index %q: %w", source, err)
	}
	if !exists {
		return fmt.Errorf("source index %q: %w", source, engine.ErrIndexNotFound)
	}
	if err := m.client.OpenIndex(ctx, source); err != nil {
		// Already-open is the common case; a real failure surfaces again
		// on the reindex.
		m.log.Debug().Err(err).Str("index", source).Msg("open request not acknowledged")
	}
	report.Stages = append(report.Stages, StageSourceChecked)

	// The source can already be an alias pointing at the target when a
	// previous run finished the swap but died during backfill.
	if m.sourceIsAliasOfTarget(ctx, source, report.Target) {
		m.log.Info().Str("source", source).Msg("alias swap already done, resuming at backfill")
		report.Stages = append(report.Stages, StageNewIndexReady, StageAliasSwapped)
		return m.finishBackfill(ctx, source, report)
	}

	targetExists, err := m.client.IndexExists(ctx, report.Target)
	if err != nil {
		return fmt.Errorf("failed to check target index %q: %w", report.Target, err)
	}
	if targetExists {
		m.log.Info().Str("index", report.Target).Msg("reusing existing migration target, skipping copy")
	} else {
		body, err := m.targetBody(ctx, source)
		if err != nil {
			return err
		}
		if err := m.client.CreateIndex(ctx, report.Target, body); err != nil {
			return fmt.Errorf("failed to create index %q: %w", report.Target, err)
		}
	}
	report.Stages = append(report.Stages, StageNewIndexReady)

	if !targetExists {
		if err := m.client.Reindex(ctx, source, report.Target); err != nil {
			return fmt.Errorf("failed to copy %q into %q: %w", source, report.Target, err)
		}
		report.Stages = append(report.Stages, StageDataCopied)
	}

	if err := m.client.Refresh(ctx, report.Target); err != nil {
		return fmt.Errorf("failed to refresh %q: %w", report.Target, err)
	}
	sample, err := m.client.Search(ctx, report.Target, map[string]any{
		"size":  1,
		"query": map[string]any{"match_all": map[string]any{}},
	}, "")
	if err != nil {
		return fmt.Errorf("failed to verify copy in %q: %w", report.Target, err)
	}
	if sample.Total == 0 {
		// Abort before anything destructive: the source index is intact.
		return fmt.Errorf("index %q after copying %q: %w", report.Target, source, engine.ErrMigrationEmpty)
	}
	report.Copied = sample.Total
	report.Stages = append(report.Stages, StageVerified)

	if err := m.client.DeleteIndex(ctx, source); err != nil {
		return fmt.Errorf("failed to delete source index %q: %w", source, err)
	}
	if err := m.client.PutAlias(ctx, report.Target, source); err != nil {
		return fmt.Errorf("failed to alias %q as %q: %w", report.Target, source, err)
	}
	report.Stages = append(report.Stages, StageAliasSwapped)

	return m.finishBackfill(ctx, source, report)
}

// targetBody derives the new index body: the source's fields plus a
// vector-typed embedding field, with the source's shard layout preserved.
func (m *Migrator) targetBody(ctx context.Context, source string) (map[string]any, error) {
	body := Template(m.dimension)

	mapping, err := m.client.GetMapping(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping of %q: %w", source, err)
	}
	properties := body["mappings"].(map[string]any)["properties"].(map[string]any)
	for name, fm := range mapping {
		if _, ok := properties[name]; ok {
			continue
		}
		prop := map[string]any{"type": fm.Type}
		if fm.Dimension > 0 {
			prop["dimension"] = fm.Dimension
		}
		properties[name] = prop
	}

	shards, replicas := "1", "0"
	settings, err := m.client.GetSettings(ctx, source)
	if err != nil {
		m.log.Warn().Err(err).Str("index", source).Msg("failed to read source settings, using defaults")
	} else {
		if settings.NumberOfShards != "" {
			shards = settings.NumberOfShards
		}
		if settings.NumberOfReplicas != "" {
			replicas = settings.NumberOfReplicas
		}
	}
	idx := body["settings"].(map[string]any)["index"].(map[string]any)
	idx["number_of_shards"] = shards
	idx["number_of_replicas"] = replicas

	return body, nil
}

func (m *Migrator) finishBackfill(ctx context.Context, index string, report *Report) error {
	backfilled, err := m.backfiller.AddMissingEmbeddings(ctx, index, m.textField)
	report.Backfilled = backfilled
	if err != nil {
		return fmt.Errorf("migration backfill on %q: %w", index, err)
	}
	report.Stages = append(report.Stages, StageEmbeddingsBackfill)

	// Committed either way: absence of vectors here only means the
	// backfill needs another run.
	sample, err := m.client.Search(ctx, index, map[string]any{
		"size": 1,
		"query": map[string]any{
			"exists": map[string]any{"field": "embedding"},
		},
		"_source": false,
	}, "")
	if err != nil || len(sample.Hits) == 0 {
		report.VectorsMissing = true
		m.log.Warn().Str("index", index).Msg("no document carries a vector after backfill")
	}

	report.Stages = append(report.Stages, StageDone)
	m.log.Info().Str("source", report.Source).Str("target", report.Target).
		Int("backfilled", backfilled).Msg("index migration complete")
	return nil
}

// sourceIsAliasOfTarget reports whether name resolves to target, meaning a
// prior run already swapped the alias.
func (m *Migrator) sourceIsAliasOfTarget(ctx context.Context, name, target string) bool {
	if name == target {
		return true
	}
	indices, err := m.client.ListIndices(ctx)
	if err != nil {
		return false
	}
	for _, idx := range indices {
		if idx == name {
			// A physical index with the source name still exists.
			return false
		}
	}
	exists, err := m.client.IndexExists(ctx, name)
	return err == nil && exists
}
