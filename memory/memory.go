package memory

import (
	"context"
	"time"

	"github.com/tekmindlabs/aivy-go-sdk/core"
)

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), gemini (production), onnx (offline,
// behind the `onnx` build tag).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Record is one durable, owner-scoped memory reconstructed from the
// vector store.
type Record struct {
	ID             string
	OwnerID        string
	ContentType    string
	Content        string
	Embedding      []float32
	EmotionalState core.EmotionalState
	Messages       []core.Message
	Metadata       map[string]string
	CreatedAt      time.Time
	Score          float32
}

// Result describes a memory persisted by AddMemory.
type Result struct {
	ID          string
	OwnerID     string
	ContentType string
	Metadata    map[string]string
}

// SearchQuery describes a memory search.
type SearchQuery struct {
	QueryText    string
	OwnerID      string
	Limit        int
	ContentTypes []string
}
