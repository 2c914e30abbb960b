package bot

import (
	"context"

	"support-relay-bot/internal/platform/telegram"
)

// ForumTopicCreator adapts the Telegram client to the topic resolver's
// creation contract for the configured staff group.
type ForumTopicCreator struct {
	client  *telegram.Client
	groupID int64
	emojiID string
}

func NewForumTopicCreator(client *telegram.Client, groupID int64, emojiID string) *ForumTopicCreator {
	return &ForumTopicCreator{client: client, groupID: groupID, emojiID: emojiID}
}

func (c *ForumTopicCreator) CreateTopic(ctx context.Context, title string) (int, error) {
	topic, err := c.client.CreateForumTopic(ctx, c.groupID, title, c.emojiID)
	if err != nil {
		return 0, err
	}
	return topic.MessageThreadID, nil
}
