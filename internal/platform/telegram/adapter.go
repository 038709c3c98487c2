// Package telegram implements platform.Adapter over go-telegram-bot-api,
// polling updates and authorizing senders against a numeric allowlist
// (§6).
package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/archon-run/archon/internal/logging"
	"github.com/archon-run/archon/internal/platform"
	"github.com/archon-run/archon/internal/platform/auth"
)

// Handler receives an inbound, already-authorized message.
type Handler func(conversationID, text string)

// Adapter wraps a *tgbotapi.BotAPI behind platform.Adapter, polling for
// updates and dispatching authorized ones to a Handler.
type Adapter struct {
	bot       *tgbotapi.BotAPI
	allowlist auth.NumericAllowlist
}

// Config is the Telegram-specific wiring the CLI assembles from
// environment/config (§6's "comma-separated numeric ids" allowlist).
type Config struct {
	Token          string
	AllowedUserIDs string
}

func New(cfg Config) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	return &Adapter{
		bot:       bot,
		allowlist: auth.ParseNumericAllowlist(cfg.AllowedUserIDs),
	}, nil
}

func (a *Adapter) SendMessage(_ context.Context, conversationID, text string) error {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid conversation id %q: %w", conversationID, err)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	_, err = a.bot.Send(msg)
	return err
}

// StreamingMode reports stream: tool/assistant chunks are pushed as they
// arrive, each as its own new message (no message is edited), instead of
// being held for a single batched reply.
func (a *Adapter) StreamingMode() platform.StreamingMode {
	return platform.StreamingModeStream
}

func (a *Adapter) PlatformType() platform.Type {
	return platform.TypeTelegram
}

// EnsureThread is a no-op: Telegram chats have no separate thread concept
// at the level this adapter operates.
func (a *Adapter) EnsureThread(_ context.Context, originalConversationID string, _ *platform.ThreadContext) (string, error) {
	return originalConversationID, nil
}

// Listen runs the long-polling update loop until ctx is canceled,
// dispatching authorized text messages to handle.
func (a *Adapter) Listen(ctx context.Context, handle Handler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			if !a.allowlist.Allows(update.Message.From.ID) {
				logging.Info("[Telegram] rejected message from unauthorized user %d", update.Message.From.ID)
				continue
			}
			conversationID := strconv.FormatInt(update.Message.Chat.ID, 10)
			handle(conversationID, update.Message.Text)
		}
	}
}
