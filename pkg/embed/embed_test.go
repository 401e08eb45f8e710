package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeOllamaServer answers /api/embed with deterministic vectors: input i of
// request r embeds to [seq, seq, seq] where seq is a global input counter.
func fakeOllamaServer(t *testing.T, dimension int, requestSizes *[]int) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	seq := 0

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		*requestSizes = append(*requestSizes, len(req.Input))
		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			v := make([]float32, dimension)
			for d := range v {
				v[d] = float32(seq)
			}
			embeddings[i] = v
			seq++
		}
		mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
}

func newTestOllama(t *testing.T, host string, dimension, batchSize int) *Ollama {
	t.Helper()
	p, err := NewOllama(&OllamaConfig{
		Host:      host,
		Model:     "all-minilm",
		Dimension: dimension,
		BatchSize: batchSize,
	})
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	return p
}

func TestOllamaEmbedBatchOrderAndSubBatching(t *testing.T) {
	var sizes []int
	srv := fakeOllamaServer(t, 4, &sizes)
	defer srv.Close()

	p := newTestOllama(t, srv.URL, 4, 3)

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}

	vectors, err := p.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("EmbedBatch() returned %d vectors, want %d", len(vectors), len(texts))
	}

	// Output order matches input order: vector i carries value i.
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Errorf("vector[%d][0] = %v, want %v", i, v[0], float32(i))
		}
		if len(v) != 4 {
			t.Errorf("vector[%d] has dimension %d, want 4", i, len(v))
		}
	}

	// 8 inputs at sub-batch size 3 means requests of 3, 3, 2.
	wantSizes := []int{3, 3, 2}
	if len(sizes) != len(wantSizes) {
		t.Fatalf("made %d requests %v, want %v", len(sizes), sizes, wantSizes)
	}
	for i := range wantSizes {
		if sizes[i] != wantSizes[i] {
			t.Errorf("request %d carried %d inputs, want %d", i, sizes[i], wantSizes[i])
		}
	}
}

func TestOllamaDimensionMismatch(t *testing.T) {
	var sizes []int
	srv := fakeOllamaServer(t, 4, &sizes)
	defer srv.Close()

	p := newTestOllama(t, srv.URL, 768, 32)

	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Error("Embed() with wrong server dimension should fail")
	}
}

func TestOllamaConfigValidation(t *testing.T) {
	if _, err := NewOllama(&OllamaConfig{Model: "", Dimension: 768}); err == nil {
		t.Error("NewOllama() without model should fail")
	}
	if _, err := NewOllama(&OllamaConfig{Model: "all-minilm", Dimension: 0}); err == nil {
		t.Error("NewOllama() without dimension should fail")
	}
}

func TestHandleLazyInit(t *testing.T) {
	var sizes []int
	srv := fakeOllamaServer(t, 4, &sizes)
	defer srv.Close()

	builds := 0
	h := NewHandle(func() (Provider, error) {
		builds++
		return newTestOllama(t, srv.URL, 4, 32), nil
	})

	if builds != 0 {
		t.Fatal("Handle built provider before first use")
	}

	for range 3 {
		p, err := h.Provider()
		if err != nil {
			t.Fatalf("Provider() error = %v", err)
		}
		if p == nil {
			t.Fatal("Provider() returned nil provider")
		}
	}
	if builds != 1 {
		t.Errorf("build ran %d times, want 1", builds)
	}
}

func TestHandleCachesFailure(t *testing.T) {
	builds := 0
	h := NewHandle(func() (Provider, error) {
		builds++
		return nil, errors.New("model file missing")
	})

	for range 3 {
		_, err := h.Provider()
		if !errors.Is(err, ErrModelUnavailable) {
			t.Fatalf("Provider() error = %v, want ErrModelUnavailable", err)
		}
	}
	if builds != 1 {
		t.Errorf("failed build retried %d times, want cached after 1", builds)
	}
}

func TestHandleConcurrentAccess(t *testing.T) {
	var sizes []int
	srv := fakeOllamaServer(t, 4, &sizes)
	defer srv.Close()

	builds := 0
	h := NewHandle(func() (Provider, error) {
		builds++
		return newTestOllama(t, srv.URL, 4, 32), nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Provider(); err != nil {
				t.Errorf("Provider() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if builds != 1 {
		t.Errorf("concurrent access built provider %d times, want 1", builds)
	}
}

func TestNewStaticHandle(t *testing.T) {
	var sizes []int
	srv := fakeOllamaServer(t, 4, &sizes)
	defer srv.Close()

	want := newTestOllama(t, srv.URL, 4, 32)
	h := NewStaticHandle(want)

	p, err := h.Provider()
	if err != nil {
		t.Fatalf("Provider() error = %v", err)
	}
	if p != Provider(want) {
		t.Error("Provider() did not return the wrapped provider")
	}
}
