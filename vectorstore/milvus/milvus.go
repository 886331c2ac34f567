// Package milvus implements the vectorstore Transport over the Milvus
// RESTful v2 API.
package milvus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tekmindlabs/aivy-go-sdk/vectorstore"
)

// Config configures the Milvus transport.
type Config struct {
	// BaseURL is the Milvus endpoint, e.g. "http://localhost:19530".
	BaseURL string

	// Token is the optional API token.
	Token string

	// Collection is the target collection name.
	Collection string

	// HTTPClient overrides the default client (15s timeout).
	HTTPClient *http.Client
}

// Transport talks to a Milvus deployment over HTTP.
type Transport struct {
	cfg    Config
	client *http.Client
}

// New creates a Milvus transport.
func New(cfg Config) (*Transport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("milvus: base url is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("milvus: collection is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Transport{cfg: cfg, client: client}, nil
}

// milvusEnvelope is the common response shape of the RESTful v2 API.
type milvusEnvelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type searchHit struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	ContentType string          `json:"content_type"`
	ContentID   string          `json:"content_id"`
	Content     string          `json:"content"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   string          `json:"created_at"`
	Distance    float32         `json:"distance"`
}

// EnsureCollection creates the collection if it does not exist and loads
// it. Safe to call repeatedly.
func (t *Transport) EnsureCollection(ctx context.Context) error {
	var has milvusEnvelope[struct {
		Has bool `json:"has"`
	}]
	err := t.do(ctx, "/v2/vectordb/collections/has", map[string]any{
		"collectionName": t.cfg.Collection,
	}, &has)
	if err != nil {
		return err
	}

	if !has.Data.Has {
		if err := t.createCollection(ctx); err != nil {
			return err
		}
	}

	var loaded milvusEnvelope[json.RawMessage]
	return t.do(ctx, "/v2/vectordb/collections/load", map[string]any{
		"collectionName": t.cfg.Collection,
	}, &loaded)
}

func (t *Transport) createCollection(ctx context.Context) error {
	req := map[string]any{
		"collectionName": t.cfg.Collection,
		"schema": map[string]any{
			"fields": []map[string]any{
				{"fieldName": "id", "dataType": "VarChar", "isPrimary": true, "elementTypeParams": map[string]any{"max_length": 64}},
				{"fieldName": "owner_id", "dataType": "VarChar", "elementTypeParams": map[string]any{"max_length": 128}},
				{"fieldName": "content_type", "dataType": "VarChar", "elementTypeParams": map[string]any{"max_length": 64}},
				{"fieldName": "content_id", "dataType": "VarChar", "elementTypeParams": map[string]any{"max_length": 64}},
				{"fieldName": "content", "dataType": "VarChar", "elementTypeParams": map[string]any{"max_length": 65535}},
				{"fieldName": "metadata", "dataType": "JSON"},
				{"fieldName": "created_at", "dataType": "VarChar", "elementTypeParams": map[string]any{"max_length": 64}},
				{"fieldName": "embedding", "dataType": "FloatVector", "elementTypeParams": map[string]any{"dim": vectorstore.Dim}},
			},
		},
		"indexParams": []map[string]any{
			{"fieldName": "embedding", "indexName": "embedding_idx", "metricType": "COSINE"},
		},
	}

	var rsp milvusEnvelope[json.RawMessage]
	if err := t.do(ctx, "/v2/vectordb/collections/create", req, &rsp); err != nil {
		// Another writer may have created it between has and create.
		if strings.Contains(err.Error(), "exist") {
			return nil
		}
		return err
	}
	return nil
}

// Insert persists one record.
func (t *Transport) Insert(ctx context.Context, rec vectorstore.Record) error {
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	row := map[string]any{
		"id":           rec.ID,
		"owner_id":     rec.OwnerID,
		"content_type": rec.ContentType,
		"content_id":   rec.ContentID,
		"content":      rec.Content,
		"metadata":     metadata,
		"created_at":   rec.CreatedAt.Format(time.RFC3339Nano),
		"embedding":    rec.Embedding,
	}

	var rsp milvusEnvelope[json.RawMessage]
	return t.do(ctx, "/v2/vectordb/entities/insert", map[string]any{
		"collectionName": t.cfg.Collection,
		"data":           []map[string]any{row},
	}, &rsp)
}

// Search runs an owner-filtered similarity search.
func (t *Transport) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Hit, error) {
	req := map[string]any{
		"collectionName": t.cfg.Collection,
		"annsField":      "embedding",
		"data":           [][]float32{q.Embedding},
		"limit":          q.Limit,
		"filter":         buildFilter(q.OwnerID, q.ContentTypes),
		"outputFields": []string{
			"id", "owner_id", "content_type", "content_id", "content", "metadata", "created_at",
		},
	}

	var rsp milvusEnvelope[[]searchHit]
	if err := t.do(ctx, "/v2/vectordb/entities/search", req, &rsp); err != nil {
		return nil, err
	}

	hits := make([]vectorstore.Hit, 0, len(rsp.Data))
	for _, h := range rsp.Data {
		createdAt, _ := time.Parse(time.RFC3339Nano, h.CreatedAt)
		hits = append(hits, vectorstore.Hit{
			Record: vectorstore.Record{
				ID:          h.ID,
				OwnerID:     h.OwnerID,
				ContentType: h.ContentType,
				ContentID:   h.ContentID,
				Content:     h.Content,
				Metadata:    decodeMetadata(h.Metadata),
				CreatedAt:   createdAt,
			},
			Score: h.Distance,
		})
	}
	return hits, nil
}

// Delete removes one record by id within an owner scope.
func (t *Transport) Delete(ctx context.Context, ownerID, id string) error {
	var rsp milvusEnvelope[json.RawMessage]
	return t.do(ctx, "/v2/vectordb/entities/delete", map[string]any{
		"collectionName": t.cfg.Collection,
		"filter":         fmt.Sprintf(`id == %s and owner_id == %s`, quote(id), quote(ownerID)),
	}, &rsp)
}

func (t *Transport) do(ctx context.Context, path string, req any, rsp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if t.cfg.Token != "" {
		request.Header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	response, err := t.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("milvus http %d: %s", response.StatusCode, string(payload))
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return fmt.Errorf("milvus: decode response: %w", err)
		}
	}

	// The envelope code is non-zero on API-level failures even when the
	// HTTP status is 200.
	var envelope struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Code != 0 {
		return fmt.Errorf("milvus code %d: %s", envelope.Code, envelope.Message)
	}

	return nil
}

// buildFilter renders the owner equality and content type membership
// filter expression.
func buildFilter(ownerID string, contentTypes []string) string {
	filter := fmt.Sprintf(`owner_id == %s`, quote(ownerID))
	if len(contentTypes) > 0 {
		quoted := make([]string, 0, len(contentTypes))
		for _, ct := range contentTypes {
			quoted = append(quoted, quote(ct))
		}
		filter += fmt.Sprintf(` and content_type in [%s]`, strings.Join(quoted, ", "))
	}
	return filter
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func decodeMetadata(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return map[string]string{}
	}
	metadata := make(map[string]string, len(loose))
	for k, v := range loose {
		if s, ok := v.(string); ok {
			metadata[k] = s
			continue
		}
		if bs, err := json.Marshal(v); err == nil {
			metadata[k] = string(bs)
		}
	}
	return metadata
}
