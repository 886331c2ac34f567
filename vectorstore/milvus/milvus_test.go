package milvus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tekmindlabs/aivy-go-sdk/vectorstore"
)

// fakeMilvus records requests per endpoint and serves canned responses.
type fakeMilvus struct {
	t        *testing.T
	hasValue bool
	requests map[string][]map[string]any
	searches []map[string]any
}

func newFakeMilvus(t *testing.T, hasCollection bool) (*fakeMilvus, *httptest.Server) {
	f := &fakeMilvus{t: t, hasValue: hasCollection, requests: map[string][]map[string]any{}}
	server := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeMilvus) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		f.t.Errorf("decode request body: %v", err)
	}
	f.requests[r.URL.Path] = append(f.requests[r.URL.Path], body)

	switch r.URL.Path {
	case "/v2/vectordb/collections/has":
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"has": f.hasValue}})
	case "/v2/vectordb/collections/create":
		f.hasValue = true
		json.NewEncoder(w).Encode(map[string]any{"code": 0})
	case "/v2/vectordb/collections/load":
		json.NewEncoder(w).Encode(map[string]any{"code": 0})
	case "/v2/vectordb/entities/insert":
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"insertCount": 1}})
	case "/v2/vectordb/entities/search":
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": []map[string]any{
			{
				"id": "r1", "owner_id": "user-1", "content_type": "interaction",
				"content_id": "cid-1", "content": "hello",
				"metadata": map[string]any{"k": "v"}, "created_at": "2026-08-30T10:00:00Z",
				"distance": 0.87,
			},
		}})
	case "/v2/vectordb/entities/delete":
		json.NewEncoder(w).Encode(map[string]any{"code": 0})
	default:
		f.t.Errorf("unexpected path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTransport(t *testing.T, baseURL string) *Transport {
	t.Helper()
	tr, err := New(Config{BaseURL: baseURL, Collection: "memories"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func validEmbedding() []float32 {
	return make([]float32, vectorstore.Dim)
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Config{Collection: "memories"}); err == nil {
		t.Error("expected error without base url")
	}
	if _, err := New(Config{BaseURL: "http://localhost:19530"}); err == nil {
		t.Error("expected error without collection")
	}
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	fake, server := newFakeMilvus(t, false)
	tr := newTransport(t, server.URL)

	if err := tr.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	if len(fake.requests["/v2/vectordb/collections/create"]) != 1 {
		t.Fatal("expected one create call")
	}
	if len(fake.requests["/v2/vectordb/collections/load"]) != 1 {
		t.Fatal("expected one load call")
	}

	create := fake.requests["/v2/vectordb/collections/create"][0]
	schema, _ := create["schema"].(map[string]any)
	fields, _ := schema["fields"].([]any)
	names := map[string]bool{}
	for _, f := range fields {
		field := f.(map[string]any)
		names[field["fieldName"].(string)] = true
	}
	for _, want := range []string{"id", "owner_id", "content_type", "content_id", "content", "metadata", "created_at", "embedding"} {
		if !names[want] {
			t.Errorf("schema missing field %s", want)
		}
	}
}

func TestEnsureCollectionSkipsCreateWhenPresent(t *testing.T) {
	fake, server := newFakeMilvus(t, true)
	tr := newTransport(t, server.URL)

	if err := tr.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if len(fake.requests["/v2/vectordb/collections/create"]) != 0 {
		t.Error("unexpected create call for existing collection")
	}
}

func TestInsertSendsRow(t *testing.T) {
	fake, server := newFakeMilvus(t, true)
	tr := newTransport(t, server.URL)

	err := tr.Insert(context.Background(), vectorstore.Record{
		ID:          "r1",
		OwnerID:     "user-1",
		ContentType: "interaction",
		ContentID:   "cid-1",
		Content:     "hello",
		Embedding:   validEmbedding(),
		Metadata:    map[string]string{"k": "v"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	inserts := fake.requests["/v2/vectordb/entities/insert"]
	if len(inserts) != 1 {
		t.Fatalf("got %d insert calls, want 1", len(inserts))
	}
	rows, _ := inserts[0]["data"].([]any)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["owner_id"] != "user-1" || row["content"] != "hello" {
		t.Errorf("row = %v", row)
	}
}

func TestSearchBuildsFilterAndDecodesHits(t *testing.T) {
	fake, server := newFakeMilvus(t, true)
	tr := newTransport(t, server.URL)

	hits, err := tr.Search(context.Background(), vectorstore.Query{
		OwnerID:      "user-1",
		Embedding:    validEmbedding(),
		Limit:        5,
		ContentTypes: []string{"interaction", "note"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	searches := fake.requests["/v2/vectordb/entities/search"]
	if len(searches) != 1 {
		t.Fatalf("got %d search calls, want 1", len(searches))
	}
	filter, _ := searches[0]["filter"].(string)
	if filter != `owner_id == "user-1" and content_type in ["interaction", "note"]` {
		t.Errorf("filter = %q", filter)
	}
	if searches[0]["annsField"] != "embedding" {
		t.Errorf("annsField = %v", searches[0]["annsField"])
	}

	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	hit := hits[0]
	if hit.ID != "r1" || hit.OwnerID != "user-1" || hit.Score != 0.87 {
		t.Errorf("hit = %+v", hit)
	}
	if hit.Metadata["k"] != "v" {
		t.Errorf("metadata = %v", hit.Metadata)
	}
	if hit.CreatedAt.IsZero() {
		t.Error("expected parsed created_at")
	}
}

func TestDeleteSendsFilter(t *testing.T) {
	fake, server := newFakeMilvus(t, true)
	tr := newTransport(t, server.URL)

	if err := tr.Delete(context.Background(), "user-1", "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	deletes := fake.requests["/v2/vectordb/entities/delete"]
	if len(deletes) != 1 {
		t.Fatalf("got %d delete calls, want 1", len(deletes))
	}
	filter, _ := deletes[0]["filter"].(string)
	if filter != `id == "r1" and owner_id == "user-1"` {
		t.Errorf("filter = %q", filter)
	}
}

func TestEnvelopeCodeIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 1100, "message": "schema mismatch"})
	}))
	t.Cleanup(server.Close)
	tr := newTransport(t, server.URL)

	err := tr.Insert(context.Background(), vectorstore.Record{
		ID: "r1", OwnerID: "user-1", ContentType: "interaction", Embedding: validEmbedding(),
	})
	if err == nil || !strings.Contains(err.Error(), "schema mismatch") {
		t.Errorf("expected envelope error, got %v", err)
	}
}

func TestHTTPErrorIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)
	tr := newTransport(t, server.URL)

	if err := tr.Delete(context.Background(), "user-1", "r1"); err == nil {
		t.Error("expected error for http 401")
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"code": 0})
	}))
	t.Cleanup(server.Close)

	tr, err := New(Config{BaseURL: server.URL, Collection: "memories", Token: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tr.Delete(context.Background(), "user-1", "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q", gotAuth)
	}
}
