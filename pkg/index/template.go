package index

// Template returns the declarative index body for a new chunk index with the
// embedding field dimension injected from the process-wide constant.
//
// The document_name field carries a keyword sub-field so exact-match deletes
// and unique-name aggregations work alongside full-text queries.
func Template(dimension int) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"knn": true,
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"text": map[string]any{
					"type": "text",
				},
				"embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": dimension,
				},
				"document_name": map[string]any{
					"type": "text",
					"fields": map[string]any{
						"keyword": map[string]any{
							"type":         "keyword",
							"ignore_above": 256,
						},
					},
				},
			},
		},
	}
}
