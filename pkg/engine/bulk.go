package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// BulkAction is one operation in a bulk request.
type BulkAction struct {
	// Op is the bulk operation: "index" or "update".
	Op string

	// Index is the target index.
	Index string

	// ID is the document ID.
	ID string

	// Source is the full document body for "index" operations.
	Source map[string]any

	// Doc is the partial document for "update" operations.
	Doc map[string]any

	// DocAsUpsert makes an "update" create the document when absent.
	DocAsUpsert bool
}

// EncodeBulk serializes actions into the engine's newline-delimited bulk
// format.
func EncodeBulk(actions []BulkAction) (io.Reader, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, action := range actions {
		meta := map[string]any{
			action.Op: map[string]any{
				"_index": action.Index,
				"_id":    action.ID,
			},
		}
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("failed to encode bulk action %d: %w", i, err)
		}

		switch action.Op {
		case "index":
			if err := enc.Encode(action.Source); err != nil {
				return nil, fmt.Errorf("failed to encode bulk source %d: %w", i, err)
			}
		case "update":
			body := map[string]any{"doc": action.Doc}
			if action.DocAsUpsert {
				body["doc_as_upsert"] = true
			}
			if err := enc.Encode(body); err != nil {
				return nil, fmt.Errorf("failed to encode bulk update %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("unsupported bulk op %q at action %d", action.Op, i)
		}
	}
	return &buf, nil
}
