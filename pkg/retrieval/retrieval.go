// Package retrieval answers queries against a chunk index, blending lexical
// and vector search when the live schema supports both and degrading through
// an explicit fallback ladder when it does not. Retrieval is read-only and
// always produces a result set; every step it gives up on is retained as a
// named degradation rather than surfaced as an error.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/docuchat-ai/go-docuchat/pkg/embed"
	"github.com/docuchat-ai/go-docuchat/pkg/engine"
	"github.com/docuchat-ai/go-docuchat/pkg/index"
	"github.com/docuchat-ai/go-docuchat/pkg/observability"
)

// Mode names the query shape a search ended up using.
type Mode string

const (
	// ModeHybrid blends lexical and vector scores through the fusion
	// pipeline.
	ModeHybrid Mode = "hybrid"

	// ModeLexical is a plain full-text match.
	ModeLexical Mode = "lexical"

	// ModeVector is a nearest-neighbor-only query.
	ModeVector Mode = "vector"

	// ModeMatchAll returns documents in engine default order when no
	// clause could be built.
	ModeMatchAll Mode = "match_all"

	// ModeEmpty is the terminal fallback after every query attempt failed.
	ModeEmpty Mode = "empty"
)

// Degradation records one rung of the fallback ladder that was given up on,
// with the reason retained for logging.
type Degradation struct {
	Step   string
	Reason string
}

// Request describes one search.
type Request struct {
	// Query is the user's query text.
	Query string

	// Vector is the query embedding. Empty means lexical-only.
	Vector embed.Vector

	// TopK caps the result count. Defaults to 10.
	TopK int

	// Index is the logical index to search.
	Index string

	// TextField is the full-text field. Empty skips the lexical clause.
	TextField string

	// VectorField is the vector field. Empty skips the vector clause.
	VectorField string
}

// Response is the outcome of one search: ranked hits, the query mode that
// produced them, and the degradations taken along the way.
type Response struct {
	Hits         []engine.Hit
	Mode         Mode
	Degradations []Degradation
}

// Degraded reports whether any fallback was taken.
func (r *Response) Degraded() bool { return len(r.Degradations) > 0 }

// Engine executes searches with schema-adaptive degradation.
type Engine struct {
	client   *engine.Client
	schema   *index.Manager
	pipeline string
	metrics  *observability.Metrics
	log      zerolog.Logger
}

// Config holds retrieval engine configuration.
type Config struct {
	// Client is the shared engine client.
	Client *engine.Client

	// Schema classifies index fields before vector clauses are built.
	Schema *index.Manager

	// Pipeline is the fusion pipeline name for hybrid queries, e.g.
	// "nlp-search-pipeline".
	Pipeline string

	// Optional. Metrics sink.
	Metrics *observability.Metrics

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// New creates a retrieval engine.
//
// Example:
//
//	eng, err := retrieval.New(&retrieval.Config{
//	    Client:   client,
//	    Schema:   manager,
//	    Pipeline: "nlp-search-pipeline",
//	})
func New(config *Config) (*Engine, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("engine client is required")
	}
	if config.Schema == nil {
		return nil, fmt.Errorf("schema manager is required")
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Engine{
		client:   config.Client,
		schema:   config.Schema,
		pipeline: config.Pipeline,
		metrics:  config.Metrics,
		log:      log,
	}, nil
}

// Search runs the fallback ladder for req, in priority order:
//
//  1. without a query vector or a vector field name, search is lexical
//  2. a vector field the live schema does not classify vector-capable
//     drops the vector clause; a failed schema lookup counts as not
//     capable
//  3. zero buildable clauses fall back to match-all
//  4. one clause runs as a plain query
//  5. two clauses run as a hybrid query through the fusion pipeline
//  6. a failed pipeline query is retried once without the pipeline;
//     a second failure yields an empty result set
//
// The vector field is excluded from returned sources. Search never mutates
// index state; the only error returned is a missing index name.
func (e *Engine) Search(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}

	start := time.Now()
	resp := e.run(ctx, req, topK)
	e.metrics.ObserveSearch(string(resp.Mode), time.Since(start).Seconds())
	for _, d := range resp.Degradations {
		e.metrics.ObserveDegradation(d.Reason)
		e.log.Warn().Str("step", d.Step).Str("reason", d.Reason).Msg("search degraded")
	}
	e.log.Debug().Str("index", req.Index).Str("mode", string(resp.Mode)).
		Int("hits", len(resp.Hits)).Msg("search complete")
	return resp, nil
}

func (e *Engine) run(ctx context.Context, req *Request, topK int) *Response {
	resp := &Response{}

	useVector := true
	switch {
	case len(req.Vector) == 0:
		useVector = false
		if req.VectorField != "" {
			resp.degrade("vector-clause", "no query vector supplied")
		}
	case req.VectorField == "":
		useVector = false
		resp.degrade("vector-clause", "no vector field configured")
	default:
		classes := e.schema.ClassifyFields(ctx, req.Index)
		if !classes.IsVectorCapable(req.VectorField) {
			useVector = false
			reason := fmt.Sprintf("field %q is not vector-capable", req.VectorField)
			if cap, ok := classes.Fields[req.VectorField]; ok && cap.Kind == index.CapabilityMisconfigured {
				reason = fmt.Sprintf("field %q holds vectors without a vector type", req.VectorField)
			}
			resp.degrade("vector-clause", reason)
		}
	}

	var lexical, vector map[string]any
	if req.TextField != "" {
		lexical = map[string]any{
			"match": map[string]any{
				req.TextField: map[string]any{"query": req.Query},
			},
		}
	}
	if useVector {
		vector = map[string]any{
			"knn": map[string]any{
				req.VectorField: map[string]any{
					"vector": req.Vector,
					"k":      topK,
				},
			},
		}
	}

	switch {
	case lexical == nil && vector == nil:
		resp.degrade("query", "no usable clause, returning match-all")
		e.execute(ctx, req, resp, ModeMatchAll, e.body(topK, req.VectorField, map[string]any{"match_all": map[string]any{}}), "")
	case lexical != nil && vector != nil:
		body := e.body(topK, req.VectorField, map[string]any{
			"hybrid": map[string]any{
				"queries": []any{lexical, vector},
			},
		})
		e.execute(ctx, req, resp, ModeHybrid, body, e.pipeline)
	case vector != nil:
		e.execute(ctx, req, resp, ModeVector, e.body(topK, req.VectorField, vector), "")
	default:
		e.execute(ctx, req, resp, ModeLexical, e.body(topK, req.VectorField, lexical), "")
	}
	return resp
}

// body assembles a search body, keeping the vector field out of the
// returned sources.
func (e *Engine) body(topK int, vectorField string, query map[string]any) map[string]any {
	body := map[string]any{
		"size":  topK,
		"query": query,
	}
	if vectorField != "" {
		body["_source"] = map[string]any{"excludes": []string{vectorField}}
	}
	return body
}

// execute runs the query, retrying a failed pipelined search once as a plain
// search. A second failure ends the ladder with an empty result set.
func (e *Engine) execute(ctx context.Context, req *Request, resp *Response, mode Mode, body map[string]any, pipeline string) {
	result, err := e.client.Search(ctx, req.Index, body, pipeline)
	if err != nil && pipeline != "" {
		resp.degrade("pipeline", fmt.Sprintf("pipeline %q failed: %v", pipeline, err))
		result, err = e.client.Search(ctx, req.Index, body, "")
	}
	if err != nil {
		resp.degrade("query", fmt.Sprintf("search failed: %v", err))
		resp.Mode = ModeEmpty
		resp.Hits = []engine.Hit{}
		return
	}
	resp.Mode = mode
	resp.Hits = result.Hits
}

func (r *Response) degrade(step, reason string) {
	r.Degradations = append(r.Degradations, Degradation{Step: step, Reason: reason})
}
