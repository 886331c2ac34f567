// Package vectorstore provides owner-scoped similarity search over
// fixed-dimension embeddings.
//
// The Engine enforces the embedding contract (exactly Dim finite values)
// before any transport call, lazily ensures the target collection exists
// and is loaded, and normalizes vendor-specific transport failures into
// infrastructure faults.
//
// Transports:
//   - milvus: HTTP transport for a Milvus deployment (production)
//   - chromem: embedded chromem-go database (local SDK and tests)
package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tekmindlabs/aivy-go-sdk/fault"
)

// Dim is the required embedding dimension for all records and queries.
const Dim = 1024

// Record is one persisted vector entry. Records are append-only: once
// stored they are never mutated, only superseded or explicitly deleted.
type Record struct {
	ID          string
	OwnerID     string
	ContentType string
	ContentID   string
	Content     string
	Embedding   []float32
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Query describes a similarity search scoped to one owner.
type Query struct {
	OwnerID      string
	Embedding    []float32
	Limit        int
	ContentTypes []string
}

// Hit is one ranked search result.
type Hit struct {
	Record
	Score float32
}

// Transport is the vendor-specific vector store backend.
type Transport interface {
	// EnsureCollection creates and loads the target collection if needed.
	// It must be idempotent.
	EnsureCollection(ctx context.Context) error

	// Insert persists one record.
	Insert(ctx context.Context, rec Record) error

	// Search returns up to q.Limit hits for q.OwnerID ranked by descending
	// cosine similarity.
	Search(ctx context.Context, q Query) ([]Hit, error)

	// Delete removes one record by id within an owner scope.
	Delete(ctx context.Context, ownerID, id string) error
}

// Engine validates and routes all vector store access through a Transport.
type Engine struct {
	transport Transport

	mu     sync.Mutex
	loaded bool
}

// NewEngine creates an engine over the given transport.
func NewEngine(transport Transport) *Engine {
	return &Engine{transport: transport}
}

// Insert validates the embedding, ensures the collection is loaded, and
// persists a new record. It returns a descriptor of the persisted record.
func (e *Engine) Insert(ctx context.Context, ownerID, contentType, contentID, content string, embedding []float32, metadata map[string]string) (*Record, error) {
	const op = "vectorstore.Insert"

	if ownerID == "" {
		return nil, fault.Validation(op, "owner id is required")
	}
	if contentType == "" {
		return nil, fault.Validation(op, "content type is required")
	}
	if err := ValidateEmbedding(embedding); err != nil {
		return nil, err
	}

	if err := e.ensureLoaded(ctx); err != nil {
		return nil, fault.Wrap(fault.KindInfrastructure, op, err)
	}

	rec := Record{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		ContentType: contentType,
		ContentID:   contentID,
		Content:     content,
		Embedding:   embedding,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.transport.Insert(ctx, rec); err != nil {
		return nil, fault.Wrap(fault.KindInfrastructure, op, err)
	}

	return &rec, nil
}

// Search returns up to q.Limit hits for q.OwnerID, ordered by descending
// cosine similarity and filtered by content type membership when
// q.ContentTypes is non-empty. No matches yields an empty slice, never an
// error.
func (e *Engine) Search(ctx context.Context, q Query) ([]Hit, error) {
	const op = "vectorstore.Search"

	if q.OwnerID == "" {
		return nil, fault.Validation(op, "owner id is required")
	}
	if err := ValidateEmbedding(q.Embedding); err != nil {
		return nil, err
	}
	if q.Limit < 1 {
		return []Hit{}, nil
	}

	if err := e.ensureLoaded(ctx); err != nil {
		return nil, fault.Wrap(fault.KindInfrastructure, op, err)
	}

	hits, err := e.transport.Search(ctx, q)
	if err != nil {
		return nil, fault.Wrap(fault.KindInfrastructure, op, err)
	}

	// Transports rank their own results; re-sort to make the ordering
	// contract independent of backend behavior.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	if hits == nil {
		hits = []Hit{}
	}
	return hits, nil
}

// Delete removes one record. It sits outside the pipeline hot path.
func (e *Engine) Delete(ctx context.Context, ownerID, id string) error {
	const op = "vectorstore.Delete"

	if ownerID == "" || id == "" {
		return fault.Validation(op, "owner id and record id are required")
	}
	if err := e.ensureLoaded(ctx); err != nil {
		return fault.Wrap(fault.KindInfrastructure, op, err)
	}
	if err := e.transport.Delete(ctx, ownerID, id); err != nil {
		return fault.Wrap(fault.KindInfrastructure, op, err)
	}
	return nil
}

// ensureLoaded lazily ensures the target collection exists and is loaded.
// A failed attempt is retried on the next call.
func (e *Engine) ensureLoaded(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}
	if err := e.transport.EnsureCollection(ctx); err != nil {
		return err
	}
	e.loaded = true
	return nil
}

// ValidateEmbedding checks that an embedding is non-nil, exactly Dim
// elements, and contains only finite values.
func ValidateEmbedding(embedding []float32) error {
	const op = "vectorstore.ValidateEmbedding"

	if embedding == nil {
		return fault.Validation(op, "embedding is required")
	}
	if len(embedding) != Dim {
		return fault.Validation(op, "embedding dimension is %d, want %d", len(embedding), Dim)
	}
	for i, v := range embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fault.Validation(op, "embedding element %d is not finite", i)
		}
	}
	return nil
}
