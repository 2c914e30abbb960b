package repository

import "context"

// MappingRepository keeps short-lived pairs of relayed message ids, one
// direction per method pair. Implementations must bound growth per user:
// oldest pairs are evicted first, lookups of evicted pairs report absence.
type MappingRepository interface {
	// SaveUserToTopic records user-chat message id -> topic message id.
	SaveUserToTopic(ctx context.Context, userID int64, userMsgID, topicMsgID int) error

	// TopicMessageID resolves the topic copy of a user message.
	TopicMessageID(ctx context.Context, userID int64, userMsgID int) (int, bool, error)

	// SaveTopicToUser records topic message id -> user-chat message id.
	SaveTopicToUser(ctx context.Context, userID int64, topicMsgID, userMsgID int) error

	// UserMessageID resolves the user-chat copy of a topic message.
	UserMessageID(ctx context.Context, userID int64, topicMsgID int) (int, bool, error)
}
