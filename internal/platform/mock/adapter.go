// Package mock implements a synthetic platform.Adapter for local testing
// and the CLI's "run a single message through the pipeline" tooling: it
// records every outbound message instead of delivering it anywhere.
package mock

import (
	"context"
	"sync"

	"github.com/archon-run/archon/internal/platform"
)

// Adapter is an in-memory platform.Adapter: SendMessage appends to a log
// instead of calling out to a real service.
type Adapter struct {
	mode platform.StreamingMode

	mu       sync.Mutex
	Sent     []string
	Threads  map[string]string
}

// New builds a mock adapter with the given streaming mode (default
// "stream" if empty).
func New(mode platform.StreamingMode) *Adapter {
	if mode == "" {
		mode = platform.StreamingModeStream
	}
	return &Adapter{mode: mode, Threads: map[string]string{}}
}

func (a *Adapter) SendMessage(_ context.Context, _ string, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Sent = append(a.Sent, text)
	return nil
}

func (a *Adapter) StreamingMode() platform.StreamingMode {
	return a.mode
}

func (a *Adapter) PlatformType() platform.Type {
	return platform.TypeMock
}

// EnsureThread is a no-op: the synthetic adapter has no native threading
// concept, so it returns the original conversation id unchanged.
func (a *Adapter) EnsureThread(_ context.Context, originalConversationID string, _ *platform.ThreadContext) (string, error) {
	return originalConversationID, nil
}

// Messages returns a snapshot of everything sent so far, for test
// assertions.
func (a *Adapter) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.Sent))
	copy(out, a.Sent)
	return out
}
