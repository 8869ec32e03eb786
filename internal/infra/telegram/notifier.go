package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier posts sale events to an ops chat. Delivery is best effort; the
// caller decides whether a failure matters.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewNotifier(token string, chatID int64) (*Notifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Notifier{
		api:    api,
		chatID: chatID,
	}, nil
}

func (n *Notifier) NotifySale(_ context.Context, reference string, amountCents int64) error {
	if n == nil || n.api == nil {
		return fmt.Errorf("telegram notifier is not initialized")
	}
	if strings.TrimSpace(reference) == "" {
		return fmt.Errorf("sale reference is required")
	}

	text := fmt.Sprintf("Venda aprovada: %s (%d.%02d AOA)", reference, amountCents/100, amountCents%100)
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send sale notification: %w", err)
	}

	return nil
}
