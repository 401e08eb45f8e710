// Package index manages chunk indices on the search engine: declarative
// creation, live schema classification, bulk document writes, embedding
// backfill, and the repair migration to a vector-capable schema.
package index

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/docuchat-ai/go-docuchat/pkg/engine"
)

// CapabilityKind tags what a field can be used for.
type CapabilityKind int

const (
	// CapabilityLexical marks a full-text field usable for match queries.
	CapabilityLexical CapabilityKind = iota

	// CapabilityVector marks a knn_vector field usable for nearest-neighbor
	// queries.
	CapabilityVector

	// CapabilityMisconfigured marks a field holding array-valued embedding
	// data without a vector-capable type. It must never be used for vector
	// search.
	CapabilityMisconfigured
)

// String returns the capability name for logs.
func (k CapabilityKind) String() string {
	switch k {
	case CapabilityLexical:
		return "lexical"
	case CapabilityVector:
		return "vector"
	case CapabilityMisconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}

// FieldCapability is the tagged classification of one field, computed once
// per call and passed into query building as a plain value.
type FieldCapability struct {
	Kind CapabilityKind

	// Dimension is set for vector-capable fields.
	Dimension int
}

// Classification is the usable-field view of one index's live mapping.
type Classification struct {
	Fields map[string]FieldCapability
}

// LexicalFields lists the full-text fields.
func (c Classification) LexicalFields() []string {
	return c.fieldsOfKind(CapabilityLexical)
}

// VectorFields lists the vector-capable fields.
func (c Classification) VectorFields() []string {
	return c.fieldsOfKind(CapabilityVector)
}

// MisconfiguredFields lists fields excluded from vector search despite
// holding embedding-shaped data.
func (c Classification) MisconfiguredFields() []string {
	return c.fieldsOfKind(CapabilityMisconfigured)
}

// IsVectorCapable reports whether the named field may serve vector queries.
func (c Classification) IsVectorCapable(field string) bool {
	cap, ok := c.Fields[field]
	return ok && cap.Kind == CapabilityVector
}

func (c Classification) fieldsOfKind(kind CapabilityKind) []string {
	var names []string
	for name, cap := range c.Fields {
		if cap.Kind == kind {
			names = append(names, name)
		}
	}
	return names
}

// Manager creates indices from the declarative template and classifies the
// fields of existing indices.
type Manager struct {
	client    *engine.Client
	dimension int
	log       zerolog.Logger
}

// ManagerConfig holds schema manager configuration.
type ManagerConfig struct {
	// Client is the shared engine client.
	Client *engine.Client

	// Dimension is the process-wide embedding dimension injected into the
	// index template.
	Dimension int

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// NewManager creates a schema manager.
//
// Example:
//
//	manager, err := index.NewManager(&index.ManagerConfig{
//	    Client:    client,
//	    Dimension: 768,
//	})
func NewManager(config *ManagerConfig) (*Manager, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("engine client is required")
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", config.Dimension)
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Manager{client: config.Client, dimension: config.Dimension, log: log}, nil
}

// CreateIfAbsent creates the index from the template when it does not exist.
// Idempotent: an existing index is a no-op success. Returns whether an index
// was created.
func (m *Manager) CreateIfAbsent(ctx context.Context, index string) (bool, error) {
	exists, err := m.client.IndexExists(ctx, index)
	if err != nil {
		return false, fmt.Errorf("failed to check index %q: %w", index, err)
	}
	if exists {
		m.log.Debug().Str("index", index).Msg("index already exists")
		return false, nil
	}

	if err := m.client.CreateIndex(ctx, index, Template(m.dimension)); err != nil {
		return false, fmt.Errorf("failed to create index %q: %w", index, err)
	}
	return true, nil
}

// ClassifyFields inspects the live mapping of index and classifies each field
// by capability. Engine or mapping failures yield an empty classification
// rather than an error: the surrounding application must keep offering
// lexical search.
//
// A field literally named "embedding" whose declared type is neither text nor
// knn_vector is probed with a one-document sample; list-valued data marks it
// misconfigured and keeps it out of vector search.
func (m *Manager) ClassifyFields(ctx context.Context, index string) Classification {
	result := Classification{Fields: make(map[string]FieldCapability)}

	mapping, err := m.client.GetMapping(ctx, index)
	if err != nil {
		m.log.Warn().Err(err).Str("index", index).Msg("schema inspection failed, returning empty classification")
		return result
	}

	for name, fm := range mapping {
		switch fm.Type {
		case "text":
			result.Fields[name] = FieldCapability{Kind: CapabilityLexical}
		case "knn_vector":
			result.Fields[name] = FieldCapability{Kind: CapabilityVector, Dimension: fm.Dimension}
		default:
			if name != "embedding" {
				continue
			}
			if m.sampleHoldsVectorData(ctx, index, name) {
				m.log.Warn().Str("index", index).Str("field", name).Str("type", fm.Type).
					Msg("field holds embedding data but is not knn_vector typed, excluding from vector search")
				result.Fields[name] = FieldCapability{Kind: CapabilityMisconfigured}
			}
		}
	}

	m.log.Info().Str("index", index).
		Int("lexical", len(result.LexicalFields())).
		Int("vector", len(result.VectorFields())).
		Msg("classified index fields")
	return result
}

// sampleHoldsVectorData reads one document and reports whether the field
// carries a non-empty array value. An empty sample is inconclusive: other
// documents may still carry vectors, so the outcome is logged and the field
// left unclassified rather than silently resolved either way.
func (m *Manager) sampleHoldsVectorData(ctx context.Context, index, field string) bool {
	result, err := m.client.Search(ctx, index, map[string]any{
		"size":    1,
		"_source": []string{field},
	}, "")
	if err != nil {
		m.log.Debug().Err(err).Str("index", index).Str("field", field).Msg("sample probe failed")
		return false
	}
	if len(result.Hits) == 0 {
		m.log.Warn().Str("index", index).Str("field", field).
			Msg("sample probe found no documents, field capability undetermined")
		return false
	}

	value, ok := result.Hits[0].Source[field]
	if !ok {
		return false
	}
	list, ok := value.([]any)
	return ok && len(list) > 0
}
