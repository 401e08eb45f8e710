// Package engine wraps the OpenSearch client behind the small set of typed
// operations the retrieval stack needs: search (optionally through a named
// search pipeline), bulk writes, mapping and settings inspection, reindex,
// alias management, and delete-by-query.
//
// The Handle type provides the process-wide shared client: lazily
// constructed once, safe for concurrent read-only use, with an explicit
// cached initialization-failure state.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/rs/zerolog"
)

// Config holds connection settings for the search engine.
type Config struct {
	// Addresses of the engine nodes, e.g. ["http://localhost:9200"].
	Addresses []string

	// Optional. Basic auth credentials.
	Username string
	Password string

	// Optional. Per-request timeout, default 30s.
	Timeout time.Duration

	// Optional. Retry budget for transient failures, default 3.
	MaxRetries int

	// Optional. Component logger.
	Logger *zerolog.Logger
}

// Client is a thin typed wrapper around the OpenSearch client. Safe for
// concurrent use; it holds no per-call state.
type Client struct {
	os  *opensearch.Client
	log zerolog.Logger
}

// New creates a Client with the given configuration.
//
// Example:
//
//	client, err := engine.New(&engine.Config{
//	    Addresses: []string{"http://localhost:9200"},
//	})
func New(config *Config) (*Client, error) {
	if len(config.Addresses) == 0 {
		return nil, fmt.Errorf("at least one engine address is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := config.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses:     config.Addresses,
		Username:      config.Username,
		Password:      config.Password,
		MaxRetries:    retries,
		RetryOnStatus: []int{502, 503, 504},
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Client{os: osClient, log: log}, nil
}

// Handle is the process-wide shared engine client: lazily initialized on
// first use, with the outcome cached for the process lifetime.
type Handle struct {
	once   sync.Once
	config *Config
	client *Client
	err    error
}

// NewHandle creates a Handle. No connection is attempted until the first
// Client() call.
func NewHandle(config *Config) *Handle {
	return &Handle{config: config}
}

// Client returns the shared client, constructing and pinging it on first
// use. A failed initialization is cached and reported as ErrUnavailable.
func (h *Handle) Client() (*Client, error) {
	h.once.Do(func() {
		client, err := New(h.config)
		if err != nil {
			h.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		if err := client.Ping(context.Background()); err != nil {
			h.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		h.client = client
	})
	return h.client, h.err
}

// Ping verifies the engine answers on the configured address.
func (c *Client) Ping(ctx context.Context) error {
	res, err := opensearchapi.InfoRequest{}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: info returned %s", ErrUnavailable, res.Status())
	}
	return nil
}

// IndexExists reports whether the index (or alias) exists.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := opensearchapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, c.os)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	return res.StatusCode == http.StatusOK, nil
}

// CreateIndex creates an index with the given body (settings + mappings).
func (c *Client) CreateIndex(ctx context.Context, index string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode index body: %w", err)
	}

	res, err := opensearchapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(payload),
	}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to create index %q: %s", index, responseError(res))
	}
	c.log.Info().Str("index", index).Msg("created index")
	return nil
}

// DeleteIndex removes a physical index.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	res, err := opensearchapi.IndicesDeleteRequest{Index: []string{index}}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	if res.IsError() {
		return fmt.Errorf("failed to delete index %q: %s", index, responseError(res))
	}
	return nil
}

// OpenIndex ensures an index is open. An already-open index is a no-op
// success.
func (c *Client) OpenIndex(ctx context.Context, index string) error {
	res, err := opensearchapi.IndicesOpenRequest{Index: []string{index}}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to open index %q: %s", index, responseError(res))
	}
	return nil
}

// Refresh forces a refresh so subsequent reads see all prior writes.
func (c *Client) Refresh(ctx context.Context, index string) error {
	res, err := opensearchapi.IndicesRefreshRequest{Index: []string{index}}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to refresh index %q: %s", index, responseError(res))
	}
	return nil
}

// GetMapping returns the field mappings of an index. When the name is an
// alias the engine keys the response by physical index name, so fields from
// all returned indices are merged.
func (c *Client) GetMapping(ctx context.Context, index string) (map[string]FieldMapping, error) {
	res, err := opensearchapi.IndicesGetMappingRequest{Index: []string{index}}.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to get mapping for %q: %s", index, responseError(res))
	}

	var decoded mappingResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode mapping response: %w", err)
	}

	fields := make(map[string]FieldMapping)
	for _, idx := range decoded {
		for name, raw := range idx.Mappings.Properties {
			var fm FieldMapping
			if err := json.Unmarshal(raw, &fm); err != nil {
				continue
			}
			fields[name] = fm
		}
	}
	return fields, nil
}

// GetSettings returns the shard layout of an index.
func (c *Client) GetSettings(ctx context.Context, index string) (IndexSettings, error) {
	res, err := opensearchapi.IndicesGetSettingsRequest{Index: []string{index}}.Do(ctx, c.os)
	if err != nil {
		return IndexSettings{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return IndexSettings{}, fmt.Errorf("failed to get settings for %q: %s", index, responseError(res))
	}

	var decoded settingsResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return IndexSettings{}, fmt.Errorf("failed to decode settings response: %w", err)
	}

	for _, idx := range decoded {
		return IndexSettings{
			NumberOfShards:   idx.Settings.Index.NumberOfShards,
			NumberOfReplicas: idx.Settings.Index.NumberOfReplicas,
		}, nil
	}
	return IndexSettings{}, nil
}

// PutAlias binds name as an alias of the physical index.
func (c *Client) PutAlias(ctx context.Context, index, name string) error {
	res, err := opensearchapi.IndicesPutAliasRequest{
		Index: []string{index},
		Name:  name,
	}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to alias %q -> %q: %s", name, index, responseError(res))
	}
	c.log.Info().Str("alias", name).Str("index", index).Msg("alias bound")
	return nil
}

// Reindex copies all documents from source to dest, waiting for completion.
func (c *Client) Reindex(ctx context.Context, source, dest string) error {
	body, err := json.Marshal(map[string]any{
		"source": map[string]any{"index": source},
		"dest":   map[string]any{"index": dest},
	})
	if err != nil {
		return fmt.Errorf("failed to encode reindex body: %w", err)
	}

	wait := true
	res, err := opensearchapi.ReindexRequest{
		Body:              bytes.NewReader(body),
		WaitForCompletion: &wait,
	}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("reindex %q -> %q failed: %s", source, dest, responseError(res))
	}
	return nil
}

// Search executes a search body against the index. A non-empty pipeline
// routes the request through the named search pipeline.
func (c *Client) Search(ctx context.Context, index string, body any, pipeline string) (*SearchResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search body: %w", err)
	}

	var raw *opensearchapi.Response
	if pipeline == "" {
		raw, err = opensearchapi.SearchRequest{
			Index: []string{index},
			Body:  bytes.NewReader(payload),
		}.Do(ctx, c.os)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	} else {
		raw, err = c.searchWithPipeline(ctx, index, payload, pipeline)
		if err != nil {
			return nil, err
		}
	}
	defer raw.Body.Close()

	if raw.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, raw.Body)
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	if raw.IsError() {
		return nil, fmt.Errorf("search on %q failed: %s", index, responseError(raw))
	}

	var decoded searchResponse
	if err := json.NewDecoder(raw.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &SearchResult{Total: decoded.Hits.Total.Value, Hits: decoded.Hits.Hits}, nil
}

// searchWithPipeline issues the search through the client transport so the
// search_pipeline query parameter can be attached per request.
func (c *Client) searchWithPipeline(ctx context.Context, index string, payload []byte, pipeline string) (*opensearchapi.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/"+index+"/_search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline search request: %w", err)
	}
	q := req.URL.Query()
	q.Set("search_pipeline", pipeline)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	res, err := c.os.Perform(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &opensearchapi.Response{StatusCode: res.StatusCode, Header: res.Header, Body: res.Body}, nil
}

// SearchAggregationKeys runs an aggregation-only search and returns the
// bucket keys of the named aggregation as strings.
func (c *Client) SearchAggregationKeys(ctx context.Context, index string, body any, agg string) ([]string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode aggregation body: %w", err)
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(payload),
	}.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("aggregation on %q failed: %s", index, responseError(res))
	}

	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation response: %w", err)
	}

	buckets, ok := decoded.Aggregations[agg]
	if !ok {
		return nil, fmt.Errorf("%w: aggregation %q missing from response", ErrSchemaInvalid, agg)
	}
	keys := make([]string, 0, len(buckets.Buckets))
	for _, b := range buckets.Buckets {
		keys = append(keys, fmt.Sprintf("%v", b.Key))
	}
	return keys, nil
}

// Bulk submits a newline-delimited bulk body and decodes per-item outcomes.
func (c *Client) Bulk(ctx context.Context, body io.Reader) (*BulkResult, error) {
	res, err := opensearchapi.BulkRequest{Body: body}.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("bulk request failed: %s", responseError(res))
	}

	var decoded bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode bulk response: %w", err)
	}

	result := &BulkResult{}
	for _, item := range decoded.Items {
		for _, info := range item {
			if info.Error != nil {
				reason := info.Error.Reason
				if reason == "" {
					reason = info.Error.Type
				}
				result.Failed = append(result.Failed, BulkItemError{
					ID:     info.ID,
					Status: info.Status,
					Reason: reason,
				})
			} else {
				result.Succeeded++
			}
		}
	}
	return result, nil
}

// DeleteByQuery removes all documents matching the query body and returns
// the engine-reported deleted count. A zero count is a success, not an
// error.
func (c *Client) DeleteByQuery(ctx context.Context, index string, body any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to encode delete query: %w", err)
	}

	res, err := opensearchapi.DeleteByQueryRequest{
		Index: []string{index},
		Body:  bytes.NewReader(payload),
	}.Do(ctx, c.os)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("delete by query on %q failed: %s", index, responseError(res))
	}

	var decoded deleteByQueryResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("failed to decode delete response: %w", err)
	}
	return decoded.Deleted, nil
}

// ListIndices returns the non-system index names, sorted by the engine.
func (c *Client) ListIndices(ctx context.Context) ([]string, error) {
	res, err := opensearchapi.CatIndicesRequest{Format: "json", H: []string{"index"}}.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("failed to list indices: %s", responseError(res))
	}

	var decoded []catIndexEntry
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode indices response: %w", err)
	}

	names := make([]string, 0, len(decoded))
	for _, e := range decoded {
		if len(e.Index) > 0 && e.Index[0] != '.' {
			names = append(names, e.Index)
		}
	}
	return names, nil
}

// responseError extracts a short error description from an error response
// body.
func responseError(res *opensearchapi.Response) string {
	var decoded struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err == nil && decoded.Error.Type != "" {
		if decoded.Error.Reason != "" {
			return fmt.Sprintf("%s: %s", decoded.Error.Type, decoded.Error.Reason)
		}
		return decoded.Error.Type
	}
	return res.Status()
}
