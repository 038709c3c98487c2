// Package slack implements platform.Adapter over slack-go/slack's Socket
// Mode client, authorizing senders against an allowlist of Slack user ids
// (§6).
package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/archon-run/archon/internal/logging"
	"github.com/archon-run/archon/internal/platform"
	"github.com/archon-run/archon/internal/platform/auth"
)

// Handler receives an inbound, already-authorized message and the Slack
// thread timestamp it arrived on (empty if not threaded).
type Handler func(conversationID, text, threadTS string)

// Adapter wraps slack.Client + socketmode.Client behind platform.Adapter.
type Adapter struct {
	api       *slack.Client
	socket    *socketmode.Client
	allowlist auth.StringAllowlist
	handle    Handler
}

type Config struct {
	BotToken     string
	AppToken     string
	AllowedIDs   string
}

func New(cfg Config) *Adapter {
	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	socket := socketmode.New(api)
	return &Adapter{
		api:       api,
		socket:    socket,
		allowlist: auth.ParseSlackAllowlist(cfg.AllowedIDs),
	}
}

func (a *Adapter) SendMessage(_ context.Context, conversationID, text string) error {
	channel, threadTS := splitConversationID(conversationID)
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, _, err := a.api.PostMessage(channel, opts...)
	return err
}

func (a *Adapter) StreamingMode() platform.StreamingMode {
	return platform.StreamingModeBatch
}

func (a *Adapter) PlatformType() platform.Type {
	return platform.TypeSlack
}

// EnsureThread pins the conversation to a Slack thread by replying in the
// given thread timestamp, encoded into the returned conversation id as
// "<channel>:<threadTS>".
func (a *Adapter) EnsureThread(_ context.Context, originalConversationID string, threadCtx *platform.ThreadContext) (string, error) {
	channel, threadTS := splitConversationID(originalConversationID)
	if threadCtx == nil || threadTS != "" {
		return originalConversationID, nil
	}
	_, ts, err := a.api.PostMessage(channel, slack.MsgOptionText(threadCtx.Title, false))
	if err != nil {
		return originalConversationID, fmt.Errorf("slack: start thread: %w", err)
	}
	return joinConversationID(channel, ts), nil
}

// Listen runs the Socket Mode event loop until ctx is canceled, routing
// authorized message events to handle.
func (a *Adapter) Listen(ctx context.Context, handle Handler) error {
	a.handle = handle

	go func() {
		for evt := range a.socket.Events {
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			a.socket.Ack(*evt.Request)

			inner, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok || inner.BotID != "" {
				continue
			}
			if !a.allowlist.Allows(inner.User) {
				logging.Info("[Slack] rejected message from unauthorized user %s", inner.User)
				continue
			}
			conversationID := joinConversationID(inner.Channel, inner.ThreadTimeStamp)
			a.handle(conversationID, inner.Text, inner.ThreadTimeStamp)
		}
	}()

	return a.socket.RunContext(ctx)
}

func joinConversationID(channel, threadTS string) string {
	if threadTS == "" {
		return channel
	}
	return channel + ":" + threadTS
}

func splitConversationID(conversationID string) (channel, threadTS string) {
	channel, threadTS, _ = strings.Cut(conversationID, ":")
	return channel, threadTS
}
