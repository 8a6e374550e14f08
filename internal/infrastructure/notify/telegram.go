package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"PaperDigest/internal/ports"
)

// Telegram delivers digests to a bot chat or channel.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID string
}

var _ ports.Notifier = (*Telegram)(nil)

// NewTelegram authorizes the bot. Construction reaches the Telegram API, so
// callers should build the notifier only when they are about to send.
func NewTelegram(botToken, chatID string) (*Telegram, error) {
	if botToken == "" || chatID == "" {
		return nil, fmt.Errorf("telegram: bot token and chat id are required")
	}
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

// Name identifies the channel in logs.
func (t *Telegram) Name() string {
	return "telegram"
}

// PublishDigest sends subject and body as one plain-text message.
func (t *Telegram) PublishDigest(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := messageFor(t.chatID, subject, body)
	if err != nil {
		return err
	}
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// messageFor builds the outgoing message for a numeric chat id or an
// @channel username.
func messageFor(chatID, subject, body string) (tgbotapi.MessageConfig, error) {
	text := subject
	if body != "" {
		text = subject + "\n\n" + body
	}

	if strings.HasPrefix(chatID, "@") {
		return tgbotapi.NewMessageToChannel(chatID, text), nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("telegram: chat id %q is neither numeric nor an @channel", chatID)
	}
	return tgbotapi.NewMessage(id, text), nil
}
