// Package chromem implements the vectorstore Transport on chromem-go, a
// pure Go embedded vector database. It is the local SDK backend; use the
// milvus transport in production.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/tekmindlabs/aivy-go-sdk/vectorstore"
)

// reserved metadata keys used to reconstruct records.
const (
	keyOwnerID     = "owner_id"
	keyContentType = "content_type"
	keyContentID   = "content_id"
	keyCreatedAt   = "created_at"
)

// Transport stores vectors in an in-process chromem-go database.
// Each owner gets their own collection for namespace isolation.
type Transport struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New creates an empty in-memory transport.
func New() (*Transport, error) {
	return &Transport{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// EnsureCollection is a no-op: owner collections are created on first
// use and the database lives in process memory.
func (t *Transport) EnsureCollection(ctx context.Context) error {
	return nil
}

// getOrCreateCollection returns the collection for an owner.
func (t *Transport) getOrCreateCollection(ownerID string) (*chromem.Collection, error) {
	t.mu.RLock()
	col, exists := t.collections[ownerID]
	t.mu.RUnlock()

	if exists {
		return col, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := t.collections[ownerID]; exists {
		return col, nil
	}

	col, err := t.db.CreateCollection(
		fmt.Sprintf("owner_%s", ownerID),
		nil, // No collection metadata
		nil, // No embedding func (we provide embeddings)
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	t.collections[ownerID] = col
	return col, nil
}

// Insert persists one record.
func (t *Transport) Insert(ctx context.Context, rec vectorstore.Record) error {
	col, err := t.getOrCreateCollection(rec.OwnerID)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		keyOwnerID:     rec.OwnerID,
		keyContentType: rec.ContentType,
		keyContentID:   rec.ContentID,
		keyCreatedAt:   rec.CreatedAt.Format(time.RFC3339Nano),
	}
	for k, v := range rec.Metadata {
		metadata[k] = v
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Content,
		Embedding: rec.Embedding,
		Metadata:  metadata,
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Search runs a similarity query within the owner's collection.
// Content type membership is applied as a post-filter: chromem's where
// clause only supports equality.
func (t *Transport) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Hit, error) {
	col, err := t.getOrCreateCollection(q.OwnerID)
	if err != nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size.
	limit := q.Limit
	if count := col.Count(); count < limit {
		limit = count
	}
	if limit < 1 {
		return nil, nil
	}

	where := map[string]string{keyOwnerID: q.OwnerID}

	results, err := col.QueryEmbedding(ctx, q.Embedding, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	wanted := make(map[string]bool, len(q.ContentTypes))
	for _, ct := range q.ContentTypes {
		wanted[ct] = true
	}

	var hits []vectorstore.Hit
	for i, result := range results {
		rec, err := toRecord(result)
		if err != nil {
			log.Printf("[CHROMEM] Skipping result #%d: %v", i+1, err)
			continue
		}
		if len(wanted) > 0 && !wanted[rec.ContentType] {
			continue
		}
		hits = append(hits, vectorstore.Hit{Record: rec, Score: result.Similarity})
	}
	return hits, nil
}

// Delete removes one record by id within the owner's collection.
func (t *Transport) Delete(ctx context.Context, ownerID, id string) error {
	col, err := t.getOrCreateCollection(ownerID)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}
	return nil
}

// toRecord converts a chromem result back into a vectorstore record.
func toRecord(result chromem.Result) (vectorstore.Record, error) {
	ownerID := result.Metadata[keyOwnerID]
	if ownerID == "" {
		return vectorstore.Record{}, fmt.Errorf("result %s has no owner", result.ID)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata[keyCreatedAt])

	metadata := make(map[string]string)
	for k, v := range result.Metadata {
		switch k {
		case keyOwnerID, keyContentType, keyContentID, keyCreatedAt:
		default:
			metadata[k] = v
		}
	}

	return vectorstore.Record{
		ID:          result.ID,
		OwnerID:     ownerID,
		ContentType: result.Metadata[keyContentType],
		ContentID:   result.Metadata[keyContentID],
		Content:     result.Content,
		Embedding:   result.Embedding,
		Metadata:    metadata,
		CreatedAt:   createdAt,
	}, nil
}
