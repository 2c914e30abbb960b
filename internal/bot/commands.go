package bot

import (
	"context"

	"support-relay-bot/internal/platform/telegram"
)

var userCommands = map[string][]telegram.BotCommand{
	"en": {
		{Command: "start", Description: "Restart the bot"},
		{Command: "language", Description: "Change language"},
	},
	"ru": {
		{Command: "start", Description: "Перезапустить бота"},
		{Command: "language", Description: "Сменить язык"},
	},
}

var adminCommands = []telegram.BotCommand{
	{Command: "ban", Description: "Block or unblock a user"},
	{Command: "silent", Description: "Toggle silent mode"},
	{Command: "information", Description: "Show user information"},
	{Command: "newsletter", Description: "Broadcast a message to all users"},
}

// SetupCommands registers the private command menu per language and the
// admin menu scoped to the staff group.
func SetupCommands(ctx context.Context, client *telegram.Client, groupID int64) error {
	if err := client.SetMyCommands(ctx, userCommands["en"], nil, ""); err != nil {
		return err
	}
	for code, commands := range userCommands {
		if err := client.SetMyCommands(ctx, commands, nil, code); err != nil {
			return err
		}
	}
	return client.SetMyCommands(ctx, adminCommands, &telegram.BotCommandScope{
		Type:   "chat",
		ChatID: groupID,
	}, "")
}

// DeleteCommands removes the registered menus on shutdown.
func DeleteCommands(ctx context.Context, client *telegram.Client, groupID int64) error {
	if err := client.DeleteMyCommands(ctx, nil); err != nil {
		return err
	}
	return client.DeleteMyCommands(ctx, &telegram.BotCommandScope{
		Type:   "chat",
		ChatID: groupID,
	})
}
