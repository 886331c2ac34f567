package vectorstore_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/tekmindlabs/aivy-go-sdk/fault"
	"github.com/tekmindlabs/aivy-go-sdk/vectorstore"
)

// recordingTransport counts every call so tests can assert that
// validation failures never reach the backend.
type recordingTransport struct {
	ensureCalls int
	insertCalls int
	searchCalls int
	deleteCalls int

	hits      []vectorstore.Hit
	searchErr error
	insertErr error
}

func (t *recordingTransport) EnsureCollection(ctx context.Context) error {
	t.ensureCalls++
	return nil
}

func (t *recordingTransport) Insert(ctx context.Context, rec vectorstore.Record) error {
	t.insertCalls++
	return t.insertErr
}

func (t *recordingTransport) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Hit, error) {
	t.searchCalls++
	return t.hits, t.searchErr
}

func (t *recordingTransport) Delete(ctx context.Context, ownerID, id string) error {
	t.deleteCalls++
	return nil
}

func validEmbedding() []float32 {
	emb := make([]float32, vectorstore.Dim)
	for i := range emb {
		emb[i] = 0.5
	}
	return emb
}

func TestValidateEmbedding(t *testing.T) {
	nan := validEmbedding()
	nan[17] = float32(math.NaN())
	inf := validEmbedding()
	inf[0] = float32(math.Inf(1))

	cases := []struct {
		name      string
		embedding []float32
		wantErr   bool
	}{
		{"valid", validEmbedding(), false},
		{"nil", nil, true},
		{"empty", []float32{}, true},
		{"short", make([]float32, 512), true},
		{"long", make([]float32, vectorstore.Dim+1), true},
		{"nan element", nan, true},
		{"inf element", inf, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := vectorstore.ValidateEmbedding(tc.embedding)
			if tc.wantErr && !fault.IsValidation(err) {
				t.Errorf("expected validation fault, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestInsertRejectsBadEmbeddingBeforeTransport(t *testing.T) {
	transport := &recordingTransport{}
	engine := vectorstore.NewEngine(transport)
	ctx := context.Background()

	_, err := engine.Insert(ctx, "user-1", "interaction", "cid", "content", make([]float32, 512), nil)
	if !fault.IsValidation(err) {
		t.Fatalf("expected validation fault, got %v", err)
	}
	if transport.ensureCalls != 0 || transport.insertCalls != 0 {
		t.Errorf("transport reached after validation failure: ensure=%d insert=%d",
			transport.ensureCalls, transport.insertCalls)
	}
}

func TestSearchRejectsBadEmbeddingBeforeTransport(t *testing.T) {
	transport := &recordingTransport{}
	engine := vectorstore.NewEngine(transport)

	_, err := engine.Search(context.Background(), vectorstore.Query{
		OwnerID:   "user-1",
		Embedding: nil,
		Limit:     5,
	})
	if !fault.IsValidation(err) {
		t.Fatalf("expected validation fault, got %v", err)
	}
	if transport.searchCalls != 0 {
		t.Errorf("transport reached after validation failure: search=%d", transport.searchCalls)
	}
}

func TestInsertRequiresOwnerAndContentType(t *testing.T) {
	engine := vectorstore.NewEngine(&recordingTransport{})
	ctx := context.Background()

	if _, err := engine.Insert(ctx, "", "interaction", "cid", "c", validEmbedding(), nil); !fault.IsValidation(err) {
		t.Errorf("missing owner: got %v", err)
	}
	if _, err := engine.Insert(ctx, "user-1", "", "cid", "c", validEmbedding(), nil); !fault.IsValidation(err) {
		t.Errorf("missing content type: got %v", err)
	}
}

func TestInsertGeneratesIDAndPersists(t *testing.T) {
	transport := &recordingTransport{}
	engine := vectorstore.NewEngine(transport)

	rec, err := engine.Insert(context.Background(), "user-1", "interaction", "cid-1", "hello", validEmbedding(), map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected generated record id")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected creation timestamp")
	}
	if transport.insertCalls != 1 {
		t.Errorf("insert calls = %d, want 1", transport.insertCalls)
	}
}

func TestEnsureCollectionIsLazyAndIdempotent(t *testing.T) {
	transport := &recordingTransport{}
	engine := vectorstore.NewEngine(transport)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := engine.Insert(ctx, "user-1", "interaction", "cid", "c", validEmbedding(), nil); err != nil {
			t.Fatalf("Insert #%d: %v", i+1, err)
		}
	}
	if transport.ensureCalls != 1 {
		t.Errorf("ensure calls = %d, want 1", transport.ensureCalls)
	}
}

func TestSearchNormalizesTransportFailure(t *testing.T) {
	transport := &recordingTransport{searchErr: errors.New("connection refused")}
	engine := vectorstore.NewEngine(transport)

	_, err := engine.Search(context.Background(), vectorstore.Query{
		OwnerID:   "user-1",
		Embedding: validEmbedding(),
		Limit:     5,
	})
	if !fault.IsInfrastructure(err) {
		t.Errorf("expected infrastructure fault, got %v", err)
	}
}

func TestSearchReordersAndTruncates(t *testing.T) {
	transport := &recordingTransport{hits: []vectorstore.Hit{
		{Record: vectorstore.Record{ID: "low", OwnerID: "user-1"}, Score: 0.1},
		{Record: vectorstore.Record{ID: "high", OwnerID: "user-1"}, Score: 0.9},
		{Record: vectorstore.Record{ID: "mid", OwnerID: "user-1"}, Score: 0.5},
	}}
	engine := vectorstore.NewEngine(transport)

	hits, err := engine.Search(context.Background(), vectorstore.Query{
		OwnerID:   "user-1",
		Embedding: validEmbedding(),
		Limit:     2,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "high" || hits[1].ID != "mid" {
		t.Errorf("hits = [%s, %s], want [high, mid]", hits[0].ID, hits[1].ID)
	}
}

func TestSearchEmptyIsNotAnError(t *testing.T) {
	engine := vectorstore.NewEngine(&recordingTransport{})

	hits, err := engine.Search(context.Background(), vectorstore.Query{
		OwnerID:   "user-1",
		Embedding: validEmbedding(),
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits, want 0", len(hits))
	}
}

func TestSearchZeroLimitShortCircuits(t *testing.T) {
	transport := &recordingTransport{}
	engine := vectorstore.NewEngine(transport)

	hits, err := engine.Search(context.Background(), vectorstore.Query{
		OwnerID:   "user-1",
		Embedding: validEmbedding(),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 || transport.searchCalls != 0 {
		t.Errorf("hits=%d searchCalls=%d, want 0/0", len(hits), transport.searchCalls)
	}
}
