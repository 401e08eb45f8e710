// Package embed produces fixed-dimension vector embeddings for chunks and
// queries.
//
// A Provider encodes text through a backing model server. The Handle type
// wraps a provider in a process-wide, lazily-initialized shared instance:
// initialization runs once, failure is cached explicitly, and callers treat
// an unavailable model as "no vector capability" rather than an abort.
package embed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrModelUnavailable reports that the embedding model could not be loaded
// or reached. Callers degrade to lexical-only behavior on this error.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Vector is a fixed-length embedding.
type Vector []float32

// Provider encodes text into vectors of a fixed dimension.
type Provider interface {
	// Embed encodes a single text.
	Embed(ctx context.Context, text string) (Vector, error)

	// EmbedBatch encodes texts preserving input order. Implementations
	// process inputs in bounded sub-batches.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)

	// Dimension reports the configured embedding dimension.
	Dimension() int
}

// Handle is a thread-safe, lazily-initialized shared Provider.
//
// The first Provider() call runs the build function; its outcome, success or
// failure, is cached for the process lifetime. A fresh process start retries.
//
// Example:
//
//	handle := embed.NewHandle(func() (embed.Provider, error) {
//	    return embed.NewOllama(cfg)
//	})
//	provider, err := handle.Provider()
type Handle struct {
	once     sync.Once
	build    func() (Provider, error)
	provider Provider
	err      error
}

// NewHandle creates a Handle around a provider constructor. The constructor
// is not invoked until the first Provider() call.
func NewHandle(build func() (Provider, error)) *Handle {
	return &Handle{build: build}
}

// NewStaticHandle wraps an already-constructed provider, for tests and for
// callers that manage initialization themselves.
func NewStaticHandle(p Provider) *Handle {
	h := &Handle{}
	h.once.Do(func() {})
	h.provider = p
	return h
}

// Provider returns the shared provider, initializing it on first use.
// An initialization failure is cached and wrapped in ErrModelUnavailable.
func (h *Handle) Provider() (Provider, error) {
	h.once.Do(func() {
		p, err := h.build()
		if err != nil {
			h.err = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
			return
		}
		h.provider = p
	})
	return h.provider, h.err
}

// checkDimension verifies an engine-boundary invariant: every produced
// vector has exactly the configured dimension.
func checkDimension(v Vector, want int) error {
	if len(v) != want {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v), want)
	}
	return nil
}

// embedInBatches runs fn over fixed-size sub-slices of texts and appends the
// results in input order, bounding peak memory per provider call.
func embedInBatches(ctx context.Context, texts []string, batchSize int, log zerolog.Logger,
	fn func(ctx context.Context, batch []string) ([]Vector, error)) ([]Vector, error) {

	if batchSize <= 0 {
		batchSize = 32
	}

	vectors := make([]Vector, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		batch, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	log.Debug().Int("texts", len(texts)).Int("batch_size", batchSize).Msg("generated embeddings")
	return vectors, nil
}
