package service

import (
	"context"

	"support-relay-bot/internal/platform/telegram"
)

// Transport is the slice of the messaging API the router talks to.
type Transport interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	CopyMessage(ctx context.Context, toChatID int64, threadID int, fromChatID int64, messageID int) (int, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error
}
