package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type senderStub struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *senderStub) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	s.sent = append(s.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestSendTextTruncatesLongMessages(t *testing.T) {
	stub := &senderStub{}
	bot := &Bot{api: stub}

	if err := bot.SendText(context.Background(), 42, strings.Repeat("я", maxMessageRunes+10)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(stub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(stub.sent))
	}
	msg := stub.sent[0]
	if msg.ChatID != 42 || !msg.DisableWebPagePreview {
		t.Fatalf("unexpected message config: %+v", msg)
	}
	if n := utf8.RuneCountInString(msg.Text); n != maxMessageRunes {
		t.Fatalf("unexpected text length %d", n)
	}
}

func TestSendTextBlockedChat(t *testing.T) {
	bot := &Bot{api: &senderStub{err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}}

	err := bot.SendText(context.Background(), 42, "hello")
	if !errors.Is(err, ErrChatUnreachable) {
		t.Fatalf("expected ErrChatUnreachable, got %v", err)
	}
}

func TestSendTextValidatesInput(t *testing.T) {
	bot := &Bot{api: &senderStub{}}
	if err := bot.SendText(context.Background(), 0, "hi"); err == nil {
		t.Fatal("expected error for zero chat id")
	}
	if err := bot.SendText(context.Background(), 1, "   "); err == nil {
		t.Fatal("expected error for empty text")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bot.SendText(ctx, 1, "hi"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
