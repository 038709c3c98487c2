// Package platform defines the PlatformAdapter contract shared by every
// chat/webhook front end (telegram, discord, slack, github, mock), per
// §6 of the orchestrator spec. Concrete adapters live in subpackages.
package platform

import "context"

// StreamingMode selects how the orchestrator filters assistant output for
// a given adapter (§4.K step 7).
type StreamingMode string

const (
	StreamingModeStream StreamingMode = "stream"
	StreamingModeBatch  StreamingMode = "batch"
)

// Type names the front end a conversation originated on.
type Type string

const (
	TypeTelegram Type = "telegram"
	TypeDiscord  Type = "discord"
	TypeSlack    Type = "slack"
	TypeGitHub   Type = "github"
	TypeMock     Type = "mock"
)

func (t Type) String() string { return string(t) }

// Adapter is the narrow surface the orchestrator and isolation resolver
// depend on to talk back to whatever front end originated a message.
type Adapter interface {
	SendMessage(ctx context.Context, conversationID, text string) error
	StreamingMode() StreamingMode
	PlatformType() Type

	// EnsureThread pins/derives a platform-specific thread id for a
	// conversation; most adapters return conversationID unchanged.
	EnsureThread(ctx context.Context, originalConversationID string, threadCtx *ThreadContext) (string, error)
}

// ThreadContext is optional context an adapter may use to create or find
// a platform-native thread (e.g. a Slack thread_ts, a Discord thread id).
type ThreadContext struct {
	Title string
	Body  string
}
