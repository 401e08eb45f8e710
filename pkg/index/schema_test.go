package index

import (
	"context"
	"testing"
)

func newTestManager(t *testing.T, store *fakeStore, dimension int) *Manager {
	t.Helper()
	manager, err := NewManager(&ManagerConfig{
		Client:    newFakeClient(t, store),
		Dimension: dimension,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return manager
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(&ManagerConfig{Dimension: 768}); err == nil {
		t.Error("NewManager() without client should fail")
	}

	store := newFakeStore()
	if _, err := NewManager(&ManagerConfig{Client: newFakeClient(t, store)}); err == nil {
		t.Error("NewManager() without dimension should fail")
	}
}

func TestCreateIfAbsent(t *testing.T) {
	store := newFakeStore()
	manager := newTestManager(t, store, 768)
	ctx := context.Background()

	created, err := manager.CreateIfAbsent(ctx, "documents")
	if err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	if !created {
		t.Error("first CreateIfAbsent() should create the index")
	}
	if !store.hasIndex("documents") {
		t.Fatal("index was not created")
	}

	created, err = manager.CreateIfAbsent(ctx, "documents")
	if err != nil {
		t.Fatalf("second CreateIfAbsent() error = %v", err)
	}
	if created {
		t.Error("second CreateIfAbsent() should be a no-op")
	}
}

func TestCreateIfAbsentUsesTemplate(t *testing.T) {
	store := newFakeStore()
	manager := newTestManager(t, store, 384)
	ctx := context.Background()

	if _, err := manager.CreateIfAbsent(ctx, "documents"); err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}

	classes := manager.ClassifyFields(ctx, "documents")
	cap, ok := classes.Fields["embedding"]
	if !ok || cap.Kind != CapabilityVector {
		t.Fatalf("embedding field = %+v, want vector capability", cap)
	}
	if cap.Dimension != 384 {
		t.Errorf("embedding dimension = %d, want 384", cap.Dimension)
	}
	if text, ok := classes.Fields["text"]; !ok || text.Kind != CapabilityLexical {
		t.Errorf("text field = %+v, want lexical capability", text)
	}
}

func TestClassifyFieldsUnreachableEngine(t *testing.T) {
	store := newFakeStore()
	manager := newTestManager(t, store, 768)

	classes := manager.ClassifyFields(context.Background(), "missing")
	if len(classes.Fields) != 0 {
		t.Errorf("classification of missing index = %+v, want empty", classes.Fields)
	}
}

func TestClassifyFieldsMisconfiguredEmbedding(t *testing.T) {
	store := newFakeStore()
	// A text-typed embedding field holding real vector data must be flagged
	// and kept out of vector search.
	store.seed("documents", map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"text":      map[string]any{"type": "text"},
				"embedding": map[string]any{"type": "float"},
			},
		},
	}, map[string]map[string]any{
		"report.pdf_0": {
			"text":      "alpha",
			"embedding": []any{0.1, 0.2, 0.3},
		},
	})
	manager := newTestManager(t, store, 768)

	classes := manager.ClassifyFields(context.Background(), "documents")
	cap, ok := classes.Fields["embedding"]
	if !ok || cap.Kind != CapabilityMisconfigured {
		t.Fatalf("embedding field = %+v, want misconfigured", cap)
	}
	if classes.IsVectorCapable("embedding") {
		t.Error("misconfigured embedding must not be vector capable")
	}
	if got := classes.MisconfiguredFields(); len(got) != 1 || got[0] != "embedding" {
		t.Errorf("MisconfiguredFields() = %v", got)
	}
}

func TestClassifyFieldsEmptySampleLeavesFieldOut(t *testing.T) {
	store := newFakeStore()
	store.seed("documents", map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"text":      map[string]any{"type": "text"},
				"embedding": map[string]any{"type": "float"},
			},
		},
	}, nil)
	manager := newTestManager(t, store, 768)

	classes := manager.ClassifyFields(context.Background(), "documents")
	if _, ok := classes.Fields["embedding"]; ok {
		t.Error("empty sample must not classify the embedding field")
	}
}
