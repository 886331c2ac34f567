// Package engine implements the companion pipeline orchestrator: a
// staged state machine that retrieves relevant memories, infers an
// emotional state, plans one ReAct step, and synthesizes a personalized
// reply while persisting the interaction for future retrieval.
//
// Stage failure policy:
//   - RETRIEVE and INFER_EMOTION degrade to safe defaults, never fatal
//   - EMBED and PLAN are fatal and abort the run
//   - SYNTHESIZE is fatal for the reply, best-effort for the write-back
//
// A fatal failure always returns a structured result carrying the steps
// accumulated so far and the step label where the run stopped.
package engine

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tekmindlabs/aivy-go-sdk/core"
	"github.com/tekmindlabs/aivy-go-sdk/fault"
	"github.com/tekmindlabs/aivy-go-sdk/generate"
	"github.com/tekmindlabs/aivy-go-sdk/memory"
	"github.com/tekmindlabs/aivy-go-sdk/vectorstore"
)

// Pipeline step labels, in execution order.
const (
	StepRetrieve     = "RETRIEVE"
	StepEmbed        = "EMBED"
	StepInferEmotion = "INFER_EMOTION"
	StepPlan         = "PLAN"
	StepSynthesize   = "SYNTHESIZE"
	StepComplete     = "COMPLETE"
)

// ContentTypeInteraction is the content type of pipeline write-backs.
const ContentTypeInteraction = "interaction"

// defaultRetrieveLimit caps memories fetched in the RETRIEVE stage.
const defaultRetrieveLimit = 5

// initialStepLabel seeds planning when the request carries no label.
const initialStepLabel = "initial"

// MemoryStore is the narrow slice of the memory service the engine uses.
type MemoryStore interface {
	SearchMemories(ctx context.Context, query, ownerID string, limit int) ([]memory.Record, error)
	AddMemory(ctx context.Context, ownerID, contentType, content string, metadata map[string]any) (*memory.Result, error)
}

// Request is one inbound pipeline invocation.
type Request struct {
	// OwnerID scopes all memory access for this run.
	OwnerID string

	// Messages is the ordered conversation history. The last entry is
	// the message being responded to.
	Messages []core.Message

	// Profile carries personalization preferences.
	Profile core.Profile

	// RequestID is the external idempotency key. Empty disables
	// deduplication for this run.
	RequestID string

	// PriorSteps are ReAct steps accumulated by earlier runs of the
	// same conversation.
	PriorSteps []core.ReActStep

	// CurrentStep labels the situation handed to planning. Empty means
	// the initial interaction.
	CurrentStep string
}

// Result is the outcome of one pipeline run.
type Result struct {
	Success        bool                `json:"success"`
	EmotionalState core.EmotionalState `json:"emotionalState"`
	ReActSteps     []core.ReActStep    `json:"reactSteps"`
	Response       string              `json:"response,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
	Step           string              `json:"currentStep"`
	OwnerID        string              `json:"ownerId"`
	Error          string              `json:"error,omitempty"`
}

// Engine runs the pipeline.
type Engine struct {
	generator     generate.Generator
	embedder      memory.Embedder
	memories      MemoryStore
	dedup         *Dedup
	retrieveLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDedup installs the request deduplication cache.
func WithDedup(d *Dedup) Option {
	return func(e *Engine) { e.dedup = d }
}

// WithRetrieveLimit overrides how many memories RETRIEVE fetches.
func WithRetrieveLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.retrieveLimit = limit
		}
	}
}

// New creates a pipeline engine.
func New(generator generate.Generator, embedder memory.Embedder, memories MemoryStore, opts ...Option) *Engine {
	e := &Engine{
		generator:     generator,
		embedder:      embedder,
		memories:      memories,
		retrieveLimit: defaultRetrieveLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one pipeline run. It never panics and never returns an
// unhandled error: every outcome is a structured Result.
func (e *Engine) Run(ctx context.Context, req Request) *Result {
	const op = "engine.Run"

	if e.dedup != nil && req.RequestID != "" {
		if cached, ok := e.dedup.Get(req.RequestID); ok {
			log.Printf("[ENGINE] Returning cached result for request %s", req.RequestID)
			return cached
		}
	}

	if req.OwnerID == "" {
		return e.fail(req, StepRetrieve, core.NeutralState(), fault.Validation(op, "owner id is required"))
	}
	if len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Content == "" {
		return e.fail(req, StepRetrieve, core.NeutralState(), fault.Validation(op, "last message content is required"))
	}
	latest := req.Messages[len(req.Messages)-1].Content

	// RETRIEVE and EMBED both derive only from the latest message and
	// run in parallel. Retrieval failure degrades to an empty memory
	// set; embedding failure is fatal.
	var memories []memory.Record
	var embedding []float32

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := e.memories.SearchMemories(gctx, latest, req.OwnerID, e.retrieveLimit)
		if err != nil {
			log.Printf("[ENGINE] Memory retrieval failed, continuing without context: %v", err)
			return nil
		}
		memories = recs
		return nil
	})
	g.Go(func() error {
		emb, err := e.embedder.Embed(gctx, latest)
		if err != nil {
			return fault.Wrap(fault.KindInfrastructure, op, err)
		}
		embedding = emb
		return nil
	})
	if err := g.Wait(); err != nil {
		return e.fail(req, StepEmbed, core.NeutralState(), err)
	}
	if err := vectorstore.ValidateEmbedding(embedding); err != nil {
		return e.fail(req, StepEmbed, core.NeutralState(), err)
	}

	state, _ := e.inferEmotion(ctx, req.Messages)
	log.Printf("[ENGINE] Inferred emotional state: mood=%s, confidence=%s", state.Mood, state.Confidence)

	stepLabel := req.CurrentStep
	if stepLabel == "" {
		stepLabel = initialStepLabel
	}
	reactStep, err := e.plan(ctx, stepLabel, len(req.PriorSteps), state, memories)
	if err != nil {
		return e.fail(req, StepPlan, state, err)
	}

	// Response generation and memory write-back run concurrently and
	// are joined before the stage completes. The write-back has its own
	// failure channel: it is logged, never fatal.
	runID := uuid.New().String()
	writeErr := make(chan error, 1)
	go func() {
		_, err := e.memories.AddMemory(ctx, req.OwnerID, ContentTypeInteraction, latest, writeBackMetadata(req, state, runID))
		writeErr <- err
	}()

	response, synthErr := e.synthesize(ctx, latest, reactStep, state, req.Profile, memories)

	if err := <-writeErr; err != nil {
		log.Printf("[ENGINE] Memory write-back failed for owner %s: %v", req.OwnerID, err)
	}
	if synthErr != nil {
		return e.fail(req, StepSynthesize, state, synthErr)
	}

	steps := make([]core.ReActStep, 0, len(req.PriorSteps)+1)
	steps = append(steps, req.PriorSteps...)
	steps = append(steps, reactStep)

	result := &Result{
		Success:        true,
		EmotionalState: state,
		ReActSteps:     steps,
		Response:       response,
		Timestamp:      time.Now().UTC(),
		Step:           StepComplete,
		OwnerID:        req.OwnerID,
	}

	if e.dedup != nil && req.RequestID != "" {
		e.dedup.Put(req.RequestID, result)
	}
	return result
}

// fail converts a fatal stage error into a structured failure result.
// The accumulated steps are returned unchanged.
func (e *Engine) fail(req Request, step string, state core.EmotionalState, err error) *Result {
	log.Printf("[ENGINE] Run failed at %s for owner %s: %v", step, req.OwnerID, err)

	steps := make([]core.ReActStep, 0, len(req.PriorSteps))
	steps = append(steps, req.PriorSteps...)

	return &Result{
		Success:        false,
		EmotionalState: state,
		ReActSteps:     steps,
		Timestamp:      time.Now().UTC(),
		Step:           step,
		OwnerID:        req.OwnerID,
		Error:          err.Error(),
	}
}

// writeBackMetadata assembles the metadata persisted with the
// interaction record.
func writeBackMetadata(req Request, state core.EmotionalState, runID string) map[string]any {
	metadata := map[string]any{
		"mood":       string(state.Mood),
		"confidence": string(state.Confidence),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"session_id": runID,
	}
	if req.Profile.LearningStyle != "" {
		metadata["learning_style"] = req.Profile.LearningStyle
	}
	if req.Profile.Difficulty != "" {
		metadata["difficulty"] = req.Profile.Difficulty
	}
	if len(req.Profile.Interests) > 0 {
		metadata["interests"] = req.Profile.Interests
	}
	if transcript, err := json.Marshal(req.Messages); err == nil {
		metadata["messages"] = string(transcript)
	}
	return metadata
}
