// Package mock provides a deterministic embedder for tests.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/tekmindlabs/aivy-go-sdk/vectorstore"
)

// Embedder generates deterministic embeddings from a text hash. Equal
// texts always produce equal vectors, so similarity tests are stable
// across runs.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder matching the store dimension.
func New() *Embedder {
	return &Embedder{dimensions: vectorstore.Dim}
}

// Embed creates a unit vector seeded by the FNV hash of text.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	embedding := make([]float32, m.dimensions)

	// Simple LCG seeded by the text hash.
	seed := h.Sum64()
	for i := 0; i < m.dimensions; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
