package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
)

// sender is the part of *tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts operator alerts (orphaned actions, scheduler faults) to a
// Telegram chat.
type Notifier struct {
	bot    sender
	ChatID int64
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier connects to the Bot API. It returns a NopNotifier when token
// is empty so callers need not special-case an unconfigured bot.
func NewNotifier(token, chatIDStr string) (ports.Notifier, error) {
	if token == "" {
		return ports.NopNotifier{}, nil
	}
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid TELEGRAM_CHAT_ID: %v", domain.ErrConfig, err)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%w: telegram: %v", domain.ErrConfig, err)
	}
	return newNotifier(bot, chatID), nil
}

func newNotifier(bot sender, chatID int64) *Notifier {
	return &Notifier{bot: bot, ChatID: chatID}
}

func (n *Notifier) Notify(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.ChatID, formatMessage(title, body))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatMessage(title, body string) string {
	return fmt.Sprintf("*[%s]*\n\n%s", escapeMarkdown(title), escapeMarkdown(body))
}

// escapeMarkdown keeps legacy Markdown parsing from failing on user text.
func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
