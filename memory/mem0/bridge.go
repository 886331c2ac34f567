// Package mem0 is a cross-process memory backend speaking a JSON command
// protocol to an external memory service over a subprocess bridge.
//
// Each operation spawns one bridge invocation: the command name and a
// JSON argument object go in, a single JSON response object comes out.
// The response envelope is {"success": bool, "results"/"result": ...,
// "error": string}.
package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os/exec"
	"strings"

	"github.com/tekmindlabs/aivy-go-sdk/fault"
)

// Runner executes one bridge command and returns its raw stdout.
type Runner interface {
	Run(ctx context.Context, command string, payload []byte) ([]byte, error)
}

// ExecRunner invokes the bridge script through an interpreter
// subprocess, passing the command name and JSON payload as arguments.
type ExecRunner struct {
	// Interpreter is the executable, e.g. "python3".
	Interpreter string

	// ScriptPath is the bridge script location.
	ScriptPath string
}

// Run executes `interpreter script command payload` and returns stdout.
func (r ExecRunner) Run(ctx context.Context, command string, payload []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Interpreter, r.ScriptPath, command, string(payload))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			log.Printf("[MEM0] Bridge stderr: %s", msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Memory is one record returned by the bridge.
type Memory struct {
	ID       string         `json:"id"`
	Memory   string         `json:"memory"`
	UserID   string         `json:"user_id"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// envelope is the bridge response shape.
type envelope struct {
	Success bool            `json:"success"`
	Results json.RawMessage `json:"results"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

// Client issues memory commands over a Runner.
type Client struct {
	runner Runner
}

// NewClient creates a bridge client.
func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// Add stores new content for a user.
func (c *Client) Add(ctx context.Context, userID, content string, metadata map[string]any) ([]Memory, error) {
	const op = "mem0.Add"

	if userID == "" || content == "" {
		return nil, fault.Validation(op, "user id and content are required")
	}
	env, err := c.call(ctx, op, "add", map[string]any{
		"user_id":  userID,
		"content":  content,
		"metadata": metadata,
	})
	if err != nil {
		return nil, err
	}
	return decodeMemories(op, env)
}

// Update replaces the content of an existing memory.
func (c *Client) Update(ctx context.Context, memoryID, content string) (*Memory, error) {
	const op = "mem0.Update"

	if memoryID == "" || content == "" {
		return nil, fault.Validation(op, "memory id and content are required")
	}
	env, err := c.call(ctx, op, "update", map[string]any{
		"memory_id": memoryID,
		"content":   content,
	})
	if err != nil {
		return nil, err
	}
	return decodeMemory(op, env)
}

// Search returns memories relevant to the query for a user.
func (c *Client) Search(ctx context.Context, userID, query string, limit int) ([]Memory, error) {
	const op = "mem0.Search"

	if userID == "" || query == "" {
		return nil, fault.Validation(op, "user id and query are required")
	}
	env, err := c.call(ctx, op, "search", map[string]any{
		"user_id": userID,
		"query":   query,
		"limit":   limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeMemories(op, env)
}

// Get fetches one memory by id.
func (c *Client) Get(ctx context.Context, memoryID string) (*Memory, error) {
	const op = "mem0.Get"

	if memoryID == "" {
		return nil, fault.Validation(op, "memory id is required")
	}
	env, err := c.call(ctx, op, "get", map[string]any{"memory_id": memoryID})
	if err != nil {
		return nil, err
	}
	return decodeMemory(op, env)
}

// Delete removes one memory by id.
func (c *Client) Delete(ctx context.Context, memoryID string) error {
	const op = "mem0.Delete"

	if memoryID == "" {
		return fault.Validation(op, "memory id is required")
	}
	_, err := c.call(ctx, op, "delete", map[string]any{"memory_id": memoryID})
	return err
}

// call runs one command and validates the response envelope.
func (c *Client) call(ctx context.Context, op, command string, args map[string]any) (*envelope, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, op, err)
	}

	out, err := c.runner.Run(ctx, command, payload)
	if err != nil {
		return nil, fault.Wrap(fault.KindInfrastructure, op, err)
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, fault.Infrastructure(op, "empty bridge response")
	}

	var env envelope
	if err := json.Unmarshal(out, &env); err != nil {
		return nil, fault.Infrastructure(op, "malformed bridge response: %v", err)
	}
	if !env.Success {
		if env.Error == "" {
			env.Error = "unknown bridge error"
		}
		return nil, fault.Infrastructure(op, "bridge command failed: %s", env.Error)
	}
	return &env, nil
}

func decodeMemories(op string, env *envelope) ([]Memory, error) {
	if len(env.Results) == 0 {
		return []Memory{}, nil
	}
	var memories []Memory
	if err := json.Unmarshal(env.Results, &memories); err != nil {
		return nil, fault.Infrastructure(op, "malformed bridge results: %v", err)
	}
	return memories, nil
}

func decodeMemory(op string, env *envelope) (*Memory, error) {
	if len(env.Result) == 0 {
		return nil, fault.Infrastructure(op, "bridge response has no result")
	}
	var m Memory
	if err := json.Unmarshal(env.Result, &m); err != nil {
		return nil, fault.Infrastructure(op, "malformed bridge result: %v", err)
	}
	return &m, nil
}
