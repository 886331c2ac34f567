// Package memory translates conversational content to and from
// owner-scoped vector store records.
//
// The memory system stores past interactions together with their inferred
// emotional state so the companion pipeline can personalize replies from
// shared history. Memories are namespaced by OwnerID for multi-user
// support and are append-only: a stored record is never mutated, only
// superseded by a newer record or explicitly deleted.
//
// Architecture:
//   - vectorstore.Engine: validated similarity storage (milvus for
//     production, chromem for local SDK use)
//   - Embedder: text-to-vector conversion (gemini for production, mock
//     for tests, onnx for offline use behind the `onnx` build tag)
//   - Service: metadata enrichment on write, record reconstruction with
//     deterministic defaults on read
//
// Integration:
//   - RETRIEVE phase: Service.SearchMemories before planning
//   - SYNTHESIZE phase: Service.AddMemory as a best-effort write-back
//
// The mem0 subpackage is an alternative cross-process backend speaking a
// JSON command protocol to an external memory service.
package memory
