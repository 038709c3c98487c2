// Package mock implements assistant.Client for the synthetic "mock"
// platform adapter and for tests: it never calls a real provider, just
// echoes a deterministic script back as chunks.
package mock

import (
	"context"
	"fmt"

	"github.com/archon-run/archon/internal/assistant"
)

// Client replays a fixed script of chunks for every query, ignoring the
// prompt content; set Script to vary behavior.
type Client struct {
	// Script is returned verbatim, followed by a result chunk whose
	// SessionID is resumeToken, or "mock-session-<cwd>" if resumeToken is
	// empty.
	Script []assistant.Chunk
}

func New() *Client {
	return &Client{
		Script: []assistant.Chunk{
			{Kind: assistant.ChunkAssistant, Content: "mock response"},
		},
	}
}

func (c *Client) SendQuery(ctx context.Context, prompt, cwd, resumeToken string) (<-chan assistant.Chunk, <-chan error) {
	chunks := make(chan assistant.Chunk, len(c.Script)+1)
	errs := make(chan error, 1)

	for _, ch := range c.Script {
		chunks <- ch
	}

	sessionID := resumeToken
	if sessionID == "" {
		sessionID = fmt.Sprintf("mock-session-%s", cwd)
	}
	chunks <- assistant.Chunk{Kind: assistant.ChunkResult, SessionID: sessionID}

	close(chunks)
	close(errs)
	return chunks, errs
}
