// Package gemini provides an embedder backed by the Gemini embedding API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/tekmindlabs/aivy-go-sdk/vectorstore"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// Config configures the Gemini embedder.
type Config struct {
	// APIKey authenticates against the Gemini API.
	APIKey string

	// Model overrides DefaultModel.
	Model string
}

// Embedder calls the Gemini embedding API. Output dimensionality is
// pinned to the store dimension so every backend receives compatible
// vectors.
type Embedder struct {
	client *genai.Client
	model  string
}

// New creates a Gemini embedder.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini embedder: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: create client: %w", err)
	}

	return &Embedder{client: client, model: cfg.Model}, nil
}

// Embed converts text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("gemini embedder: text is required")
	}

	rsp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr[int32](vectorstore.Dim),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: embed content: %w", err)
	}
	if len(rsp.Embeddings) == 0 || len(rsp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embedder: empty embedding response")
	}

	values := rsp.Embeddings[0].Values
	if len(values) != vectorstore.Dim {
		return nil, fmt.Errorf("gemini embedder: got %d dimensions, want %d", len(values), vectorstore.Dim)
	}
	return values, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return vectorstore.Dim
}
