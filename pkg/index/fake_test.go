package index

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/docuchat-ai/go-docuchat/pkg/engine"
)

// fakeStore is an in-memory stand-in for the search engine, covering the
// subset of the REST surface this package exercises: index lifecycle, alias
// binding, search, bulk writes, reindex, and delete-by-query.
type fakeStore struct {
	mu      sync.Mutex
	indices map[string]*fakeIdx
	aliases map[string]string

	// rejectBulkID, when set, fails bulk items whose ID it matches.
	rejectBulkID func(id string) bool
}

type fakeIdx struct {
	body  map[string]any
	docs  map[string]map[string]any
	order []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		indices: make(map[string]*fakeIdx),
		aliases: make(map[string]string),
	}
}

// seed creates an index with the given create body and documents.
func (s *fakeStore) seed(name string, body map[string]any, docs map[string]map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := &fakeIdx{body: body, docs: make(map[string]map[string]any)}
	var ids []string
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		idx.docs[id] = docs[id]
		idx.order = append(idx.order, id)
	}
	s.indices[name] = idx
}

func (s *fakeStore) docCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.lookup(name); idx != nil {
		return len(idx.docs)
	}
	return 0
}

func (s *fakeStore) doc(name, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.lookup(name); idx != nil {
		return idx.docs[id]
	}
	return nil
}

func (s *fakeStore) createBody(name string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indices[name]; idx != nil {
		return idx.body
	}
	return nil
}

func (s *fakeStore) hasIndex(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.indices[name]
	return ok
}

func (s *fakeStore) aliasTarget(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliases[name]
}

// lookup resolves name through aliases. Callers hold s.mu.
func (s *fakeStore) lookup(name string) *fakeIdx {
	if target, ok := s.aliases[name]; ok {
		name = target
	}
	return s.indices[name]
}

func (s *fakeStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		switch {
		case parts[0] == "_bulk":
			s.handleBulk(w, r)
		case parts[0] == "_reindex":
			s.handleReindex(w, r)
		case parts[0] == "_cat" && len(parts) > 1 && parts[1] == "indices":
			s.handleCat(w)
		case len(parts) == 1 && parts[0] == "":
			writeFakeJSON(w, http.StatusOK, map[string]any{"version": map[string]any{"number": "2.11.0"}})
		case len(parts) == 1:
			s.handleIndex(w, r, parts[0])
		case len(parts) >= 3 && (parts[1] == "_alias" || parts[1] == "_aliases"):
			s.aliases[parts[2]] = parts[0]
			writeFakeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
		case parts[1] == "_refresh" || parts[1] == "_open":
			writeFakeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
		case parts[1] == "_settings":
			s.handleSettings(w, parts[0])
		case parts[1] == "_search":
			s.handleSearch(w, r, parts[0])
		case parts[1] == "_mapping":
			s.handleMapping(w, parts[0])
		case parts[1] == "_delete_by_query":
			s.handleDeleteByQuery(w, r, parts[0])
		default:
			writeFakeJSON(w, http.StatusBadRequest, map[string]any{"error": "unhandled path " + r.URL.Path})
		}
	})
}

func (s *fakeStore) handleIndex(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodHead:
		if s.lookup(name) == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		s.indices[name] = &fakeIdx{body: body, docs: make(map[string]map[string]any)}
		writeFakeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	case http.MethodDelete:
		if _, ok := s.indices[name]; !ok {
			writeFakeJSON(w, http.StatusNotFound, map[string]any{
				"error": map[string]any{"type": "index_not_found_exception"},
			})
			return
		}
		delete(s.indices, name)
		writeFakeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *fakeStore) handleSearch(w http.ResponseWriter, r *http.Request, name string) {
	idx := s.lookup(name)
	if idx == nil {
		writeFakeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"type": "index_not_found_exception"},
		})
		return
	}

	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	if aggs, ok := body["aggs"].(map[string]any); ok {
		writeFakeJSON(w, http.StatusOK, s.aggregate(idx, aggs))
		return
	}

	size := 10
	if v, ok := body["size"].(float64); ok {
		size = int(v)
	}

	var matched []string
	for _, id := range idx.order {
		if _, ok := idx.docs[id]; ok && matchQuery(body["query"], idx.docs[id]) {
			matched = append(matched, id)
		}
	}

	hits := make([]map[string]any, 0)
	for _, id := range matched {
		if len(hits) >= size {
			break
		}
		hits = append(hits, map[string]any{
			"_id":     id,
			"_score":  1.0,
			"_source": filterSource(idx.docs[id], body["_source"]),
		})
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{
		"hits": map[string]any{
			"total": map[string]any{"value": len(matched)},
			"hits":  hits,
		},
	})
}

func (s *fakeStore) aggregate(idx *fakeIdx, aggs map[string]any) map[string]any {
	out := make(map[string]any)
	for aggName := range aggs {
		seen := make(map[string]struct{})
		var keys []string
		for _, doc := range idx.docs {
			if name, ok := doc["document_name"].(string); ok {
				if _, dup := seen[name]; !dup {
					seen[name] = struct{}{}
					keys = append(keys, name)
				}
			}
		}
		sort.Strings(keys)
		buckets := make([]map[string]any, 0, len(keys))
		for _, key := range keys {
			buckets = append(buckets, map[string]any{"key": key, "doc_count": 1})
		}
		out[aggName] = map[string]any{"buckets": buckets}
	}
	return map[string]any{
		"hits":         map[string]any{"total": map[string]any{"value": 0}, "hits": []any{}},
		"aggregations": out,
	}
}

func (s *fakeStore) handleBulk(w http.ResponseWriter, r *http.Request) {
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var items []map[string]any
	anyFailed := false
	for scanner.Scan() {
		var meta map[string]map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &meta); err != nil {
			continue
		}
		var op string
		for key := range meta {
			op = key
		}
		target, _ := meta[op]["_index"].(string)
		id, _ := meta[op]["_id"].(string)

		if !scanner.Scan() {
			break
		}
		var payload map[string]any
		json.Unmarshal(scanner.Bytes(), &payload)

		if s.rejectBulkID != nil && s.rejectBulkID(id) {
			anyFailed = true
			items = append(items, map[string]any{op: map[string]any{
				"_id":    id,
				"status": http.StatusBadRequest,
				"error": map[string]any{
					"type":   "mapper_parsing_exception",
					"reason": "rejected by test",
				},
			}})
			continue
		}

		idx := s.lookup(target)
		if idx == nil {
			idx = &fakeIdx{body: nil, docs: make(map[string]map[string]any)}
			s.indices[target] = idx
		}
		switch op {
		case "index":
			if _, ok := idx.docs[id]; !ok {
				idx.order = append(idx.order, id)
			}
			idx.docs[id] = payload
		case "update":
			doc, _ := payload["doc"].(map[string]any)
			existing, ok := idx.docs[id]
			if !ok {
				existing = make(map[string]any)
				idx.order = append(idx.order, id)
				idx.docs[id] = existing
			}
			for k, v := range doc {
				existing[k] = v
			}
		}
		items = append(items, map[string]any{op: map[string]any{"_id": id, "status": http.StatusOK}})
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"errors": anyFailed, "items": items})
}

func (s *fakeStore) handleReindex(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source struct {
			Index string `json:"index"`
		} `json:"source"`
		Dest struct {
			Index string `json:"index"`
		} `json:"dest"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	src := s.lookup(body.Source.Index)
	dst := s.lookup(body.Dest.Index)
	if src == nil || dst == nil {
		writeFakeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"type": "index_not_found_exception"},
		})
		return
	}
	copied := 0
	for _, id := range src.order {
		doc := make(map[string]any, len(src.docs[id]))
		for k, v := range src.docs[id] {
			doc[k] = v
		}
		if _, ok := dst.docs[id]; !ok {
			dst.order = append(dst.order, id)
		}
		dst.docs[id] = doc
		copied++
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"total": copied})
}

func (s *fakeStore) handleDeleteByQuery(w http.ResponseWriter, r *http.Request, name string) {
	idx := s.lookup(name)
	if idx == nil {
		writeFakeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"type": "index_not_found_exception"},
		})
		return
	}
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	deleted := 0
	var kept []string
	for _, id := range idx.order {
		if matchQuery(body["query"], idx.docs[id]) {
			delete(idx.docs, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	idx.order = kept
	writeFakeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *fakeStore) handleMapping(w http.ResponseWriter, name string) {
	phys := name
	if target, ok := s.aliases[name]; ok {
		phys = target
	}
	idx := s.indices[phys]
	if idx == nil {
		writeFakeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"type": "index_not_found_exception"},
		})
		return
	}
	props := map[string]any{}
	if mappings, ok := idx.body["mappings"].(map[string]any); ok {
		if p, ok := mappings["properties"].(map[string]any); ok {
			props = p
		}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{
		phys: map[string]any{"mappings": map[string]any{"properties": props}},
	})
}

func (s *fakeStore) handleSettings(w http.ResponseWriter, name string) {
	phys := name
	if target, ok := s.aliases[name]; ok {
		phys = target
	}
	idx := s.indices[phys]
	if idx == nil {
		writeFakeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"type": "index_not_found_exception"},
		})
		return
	}
	shards, replicas := "1", "0"
	if settings, ok := idx.body["settings"].(map[string]any); ok {
		if index, ok := settings["index"].(map[string]any); ok {
			if v, ok := index["number_of_shards"].(string); ok {
				shards = v
			}
			if v, ok := index["number_of_replicas"].(string); ok {
				replicas = v
			}
		}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{
		phys: map[string]any{
			"settings": map[string]any{
				"index": map[string]any{
					"number_of_shards":   shards,
					"number_of_replicas": replicas,
				},
			},
		},
	})
}

func (s *fakeStore) handleCat(w http.ResponseWriter) {
	var entries []map[string]any
	var names []string
	for name := range s.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entries = append(entries, map[string]any{"index": name})
	}
	writeFakeJSON(w, http.StatusOK, entries)
}

// matchQuery evaluates the query subset this package emits.
func matchQuery(query any, doc map[string]any) bool {
	q, ok := query.(map[string]any)
	if !ok || len(q) == 0 {
		return true
	}
	if _, ok := q["match_all"]; ok {
		return true
	}
	if term, ok := q["term"].(map[string]any); ok {
		for field, want := range term {
			field = strings.TrimSuffix(field, ".keyword")
			if doc[field] != want {
				return false
			}
		}
		return true
	}
	if exists, ok := q["exists"].(map[string]any); ok {
		field, _ := exists["field"].(string)
		_, present := doc[field]
		return present
	}
	if b, ok := q["bool"].(map[string]any); ok {
		if mustNot, ok := b["must_not"].(map[string]any); ok {
			if exists, ok := mustNot["exists"].(map[string]any); ok {
				field, _ := exists["field"].(string)
				_, present := doc[field]
				return !present
			}
		}
	}
	return true
}

// filterSource applies the _source directive of a search body.
func filterSource(doc map[string]any, directive any) map[string]any {
	switch d := directive.(type) {
	case bool:
		if !d {
			return map[string]any{}
		}
	case []any:
		out := make(map[string]any)
		for _, f := range d {
			field, _ := f.(string)
			if v, ok := doc[field]; ok {
				out[field] = v
			}
		}
		return out
	}
	return doc
}

func writeFakeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// newFakeClient starts the fake engine and returns a client bound to it.
func newFakeClient(t *testing.T, store *fakeStore) *engine.Client {
	t.Helper()
	srv := httptest.NewServer(store.handler())
	t.Cleanup(srv.Close)

	client, err := engine.New(&engine.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return client
}
