// Package assistant defines the AssistantClient contract (§6) and the
// chunk stream every coding-assistant backend yields: assistant text,
// tool invocations, thinking, and the terminal result carrying the
// provider's session id for resume.
package assistant

import "context"

// ChunkKind tags the variant of a streamed Chunk.
type ChunkKind string

const (
	ChunkAssistant ChunkKind = "assistant"
	ChunkTool      ChunkKind = "tool"
	ChunkThinking  ChunkKind = "thinking"
	ChunkResult    ChunkKind = "result"
)

// Chunk is one item of the lazy finite sequence an AssistantClient query
// yields. Exactly the fields relevant to Kind are populated.
type Chunk struct {
	Kind ChunkKind

	// ChunkAssistant / ChunkThinking
	Content string

	// ChunkTool
	ToolName  string
	ToolInput map[string]any

	// ChunkResult
	SessionID string
}

// Client is the AssistantClient collaborator contract from §6: a single
// call that streams a finite, ordered sequence of Chunks for one prompt.
type Client interface {
	// SendQuery streams chunks for prompt, run with cwd as the working
	// directory. resumeToken, if non-empty, asks the backend to resume a
	// prior conversation rather than start fresh. The returned channel is
	// closed when the stream ends; a non-nil error terminates the
	// sequence and is the caller's responsibility to classify (§7).
	SendQuery(ctx context.Context, prompt, cwd, resumeToken string) (<-chan Chunk, <-chan error)
}
