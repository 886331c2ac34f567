// Package gemini provides a Generator backed by the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Config configures the Gemini generator.
type Config struct {
	// APIKey authenticates against the Gemini API.
	APIKey string

	// Model overrides DefaultModel.
	Model string
}

// Generator calls the Gemini GenerateContent API.
type Generator struct {
	client *genai.Client
	model  string
}

// New creates a Gemini generator.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini generator: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generator: create client: %w", err)
	}
	return &Generator{client: client, model: cfg.Model}, nil
}

// GenerateContent returns the text of the first candidate.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	rsp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generator: %w", err)
	}

	text := rsp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini generator: empty completion")
	}
	return text, nil
}
