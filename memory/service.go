package memory

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tekmindlabs/aivy-go-sdk/core"
	"github.com/tekmindlabs/aivy-go-sdk/fault"
	"github.com/tekmindlabs/aivy-go-sdk/vectorstore"
)

// DefaultSearchLimit caps memory retrieval when no limit is given.
const DefaultSearchLimit = 5

// metadata keys written by the service.
const (
	metaContentType = "content_type"
	metaContentID   = "content_id"
	metaTimestamp   = "timestamp"
	metaMood        = "mood"
	metaConfidence  = "confidence"
	metaMessages    = "messages"
)

// Service is the memory abstraction over the vector store engine. It
// enriches metadata on write and reconstructs domain records with
// deterministic defaults on read.
type Service struct {
	store    *vectorstore.Engine
	embedder Embedder
}

// NewService creates a memory service.
func NewService(store *vectorstore.Engine, embedder Embedder) *Service {
	return &Service{store: store, embedder: embedder}
}

// AddMemory embeds content, enriches metadata with a generated content
// identifier and write timestamp, and persists one record as an atomic
// unit: if the store call fails, no record is considered created.
func (s *Service) AddMemory(ctx context.Context, ownerID, contentType, content string, metadata map[string]any) (*Result, error) {
	const op = "memory.AddMemory"

	if ownerID == "" || content == "" {
		return nil, fault.Validation(op, "content and owner id are required")
	}
	if contentType == "" {
		return nil, fault.Validation(op, "content type is required")
	}

	contentID := uuid.New().String()

	enriched := flattenMetadata(metadata)
	enriched[metaContentType] = contentType
	enriched[metaContentID] = contentID
	enriched[metaTimestamp] = time.Now().UTC().Format(time.RFC3339)

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fault.Wrap(fault.KindInfrastructure, op, err)
	}

	if _, err := s.store.Insert(ctx, ownerID, contentType, contentID, content, embedding, enriched); err != nil {
		return nil, err
	}

	log.Printf("[MEMORY] Stored memory: owner=%s, content_id=%s, type=%s", ownerID, contentID, contentType)

	return &Result{
		ID:          contentID,
		OwnerID:     ownerID,
		ContentType: contentType,
		Metadata:    enriched,
	}, nil
}

// SearchMemories returns up to limit records relevant to the query,
// ordered by descending similarity. Zero matches yields an empty slice,
// never an error.
func (s *Service) SearchMemories(ctx context.Context, query, ownerID string, limit int) ([]Record, error) {
	return s.Search(ctx, SearchQuery{QueryText: query, OwnerID: ownerID, Limit: limit})
}

// Search runs a memory search with optional content type filtering.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Record, error) {
	const op = "memory.Search"

	if q.QueryText == "" || q.OwnerID == "" {
		return nil, fault.Domain(op, "query and owner id are required")
	}
	if q.Limit < 1 {
		q.Limit = DefaultSearchLimit
	}

	embedding, err := s.embedder.Embed(ctx, q.QueryText)
	if err != nil {
		return nil, fault.Wrap(fault.KindInfrastructure, op, err)
	}

	hits, err := s.store.Search(ctx, vectorstore.Query{
		OwnerID:      q.OwnerID,
		Embedding:    embedding,
		Limit:        q.Limit,
		ContentTypes: q.ContentTypes,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MEMORY] Retrieved %d memories for owner=%s", len(hits), q.OwnerID)

	records := make([]Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, reconstruct(hit))
	}
	return records, nil
}

// DeleteMemory removes one record. It sits outside the pipeline hot path.
func (s *Service) DeleteMemory(ctx context.Context, ownerID, memoryID string) error {
	const op = "memory.DeleteMemory"

	if ownerID == "" || memoryID == "" {
		return fault.Validation(op, "owner id and memory id are required")
	}
	return s.store.Delete(ctx, ownerID, memoryID)
}

// reconstruct maps a raw hit to a domain record. Missing optional fields
// get deterministic defaults: empty message list, current time as
// fallback timestamp, empty metadata map.
func reconstruct(hit vectorstore.Hit) Record {
	metadata := hit.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	// Transports fold the content id into the record; surface it in the
	// metadata again so callers see the same map they wrote.
	if hit.ContentID != "" && metadata[metaContentID] == "" {
		metadata[metaContentID] = hit.ContentID
	}

	createdAt := hit.CreatedAt
	if createdAt.IsZero() {
		if ts, err := time.Parse(time.RFC3339, metadata[metaTimestamp]); err == nil {
			createdAt = ts
		} else {
			createdAt = time.Now().UTC()
		}
	}

	return Record{
		ID:             hit.ID,
		OwnerID:        hit.OwnerID,
		ContentType:    hit.ContentType,
		Content:        hit.Content,
		Embedding:      hit.Embedding,
		EmotionalState: stateFromMetadata(metadata),
		Messages:       messagesFromMetadata(metadata),
		Metadata:       metadata,
		CreatedAt:      createdAt,
		Score:          hit.Score,
	}
}

// stateFromMetadata reads the recorded emotional state, defaulting to
// neutral/medium when absent or unrecognized.
func stateFromMetadata(metadata map[string]string) core.EmotionalState {
	state := core.NeutralState()

	switch core.Mood(metadata[metaMood]) {
	case core.MoodPositive, core.MoodNegative, core.MoodNeutral:
		state.Mood = core.Mood(metadata[metaMood])
	}
	switch core.Confidence(metadata[metaConfidence]) {
	case core.ConfidenceHigh, core.ConfidenceMedium, core.ConfidenceLow:
		state.Confidence = core.Confidence(metadata[metaConfidence])
	}
	return state
}

// messagesFromMetadata decodes the stored transcript, if any.
func messagesFromMetadata(metadata map[string]string) []core.Message {
	raw := metadata[metaMessages]
	if raw == "" {
		return []core.Message{}
	}
	var messages []core.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return []core.Message{}
	}
	return messages
}

// flattenMetadata converts loose metadata to the string map the store
// persists. Non-string values are stored as JSON.
func flattenMetadata(metadata map[string]any) map[string]string {
	flat := make(map[string]string, len(metadata)+3)
	for k, v := range metadata {
		if s, ok := v.(string); ok {
			flat[k] = s
			continue
		}
		if bs, err := json.Marshal(v); err == nil {
			flat[k] = string(bs)
		}
	}
	return flat
}
