package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageRunes is the Bot API limit for a single text message.
const maxMessageRunes = 4096

// ErrChatUnreachable means the user blocked the bot or the chat is gone.
// Retrying will not help.
var ErrChatUnreachable = errors.New("telegram chat is unreachable")

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot pushes plain text notices to chats that linked the bot. It never
// polls for updates.
type Bot struct {
	api sender
}

func NewBot(token string) (*Bot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return &Bot{api: api}, nil
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return errors.New("telegram bot is not initialized")
	}
	if chatID == 0 {
		return errors.New("chat id is required")
	}
	text = truncate(strings.TrimSpace(text), maxMessageRunes)
	if text == "" {
		return errors.New("message text is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	_, err := b.api.Send(msg)
	var apiErr *tgbotapi.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr) && (apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusBadRequest):
		return fmt.Errorf("%w: %s", ErrChatUnreachable, apiErr.Message)
	default:
		return fmt.Errorf("send telegram message: %w", err)
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
