package engine

import "encoding/json"

// Hit is one ranked search result as returned by the engine.
type Hit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source map[string]any `json:"_source"`
}

// SearchResult holds the decoded hits of one search call.
type SearchResult struct {
	Total int
	Hits  []Hit
}

// FieldMapping describes one field of an index mapping.
type FieldMapping struct {
	Type      string `json:"type"`
	Dimension int    `json:"dimension"`
}

// IndexSettings carries the shard layout of an index. Values are strings on
// the wire.
type IndexSettings struct {
	NumberOfShards   string
	NumberOfReplicas string
}

// BulkItemError describes one failed item of a bulk request.
type BulkItemError struct {
	ID     string
	Status int
	Reason string
}

// BulkResult reports the outcome of a bulk request.
type BulkResult struct {
	Succeeded int
	Failed    []BulkItemError
}

// wire-level response shapes

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []Hit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]aggregation `json:"aggregations"`
}

type aggregation struct {
	Buckets []struct {
		Key any `json:"key"`
	} `json:"buckets"`
}

type mappingResponse map[string]struct {
	Mappings struct {
		Properties map[string]json.RawMessage `json:"properties"`
	} `json:"mappings"`
}

type settingsResponse map[string]struct {
	Settings struct {
		Index struct {
			NumberOfShards   string `json:"number_of_shards"`
			NumberOfReplicas string `json:"number_of_replicas"`
		} `json:"index"`
	} `json:"settings"`
}

type bulkResponse struct {
	Errors bool                      `json:"errors"`
	Items  []map[string]bulkItemInfo `json:"items"`
}

type bulkItemInfo struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

type deleteByQueryResponse struct {
	Deleted int `json:"deleted"`
}

type catIndexEntry struct {
	Index string `json:"index"`
}
