// Package discord implements platform.Adapter over bwmarrin/discordgo,
// authorizing senders against an allowlist of numeric user ids (§6).
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/archon-run/archon/internal/logging"
	"github.com/archon-run/archon/internal/platform"
	"github.com/archon-run/archon/internal/platform/auth"
)

// Handler receives an inbound, already-authorized message.
type Handler func(conversationID, text string)

// Adapter wraps a *discordgo.Session behind platform.Adapter. Discord
// streams naturally (edit-in-place isn't attempted; each chunk is its own
// message), so StreamingMode is "stream".
type Adapter struct {
	session   *discordgo.Session
	allowlist auth.StringAllowlist
	handle    Handler
}

type Config struct {
	BotToken       string
	AllowedUserIDs string
}

func New(cfg Config) (*Adapter, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("discord: init session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	a := &Adapter{
		session:   session,
		allowlist: auth.ParseDiscordAllowlist(cfg.AllowedUserIDs),
	}
	session.AddHandler(a.onMessageCreate)
	return a, nil
}

func (a *Adapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if a.handle == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if !a.allowlist.Allows(m.Author.ID) {
		logging.Info("[Discord] rejected message from unauthorized user %s", m.Author.ID)
		return
	}
	a.handle(m.ChannelID, m.Content)
}

func (a *Adapter) SendMessage(_ context.Context, conversationID, text string) error {
	_, err := a.session.ChannelMessageSend(conversationID, text)
	return err
}

func (a *Adapter) StreamingMode() platform.StreamingMode {
	return platform.StreamingModeStream
}

func (a *Adapter) PlatformType() platform.Type {
	return platform.TypeDiscord
}

// EnsureThread creates (or reuses) a Discord thread off the channel
// referenced by originalConversationID when threadCtx is given, returning
// the thread's channel id to use as the conversation id going forward.
func (a *Adapter) EnsureThread(_ context.Context, originalConversationID string, threadCtx *platform.ThreadContext) (string, error) {
	if threadCtx == nil || threadCtx.Title == "" {
		return originalConversationID, nil
	}
	thread, err := a.session.ThreadStart(originalConversationID, threadCtx.Title, discordgo.ChannelTypeGuildPublicThread, 1440)
	if err != nil {
		return originalConversationID, fmt.Errorf("discord: start thread: %w", err)
	}
	return thread.ID, nil
}

// Listen opens the gateway connection and dispatches authorized messages
// to handle until ctx is canceled.
func (a *Adapter) Listen(ctx context.Context, handle Handler) error {
	a.handle = handle
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	<-ctx.Done()
	return a.session.Close()
}
