// Package generate abstracts text generation behind a single-method
// interface so the pipeline stages stay provider-agnostic.
//
// Providers:
//   - anthropic: Claude models via the Anthropic SDK
//   - gemini: Gemini models via the Google GenAI SDK
package generate

import "context"

// Generator produces a completion for a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, prompt string) (string, error)

// GenerateContent calls f.
func (f Func) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
