package repository

import (
	"context"

	"support-relay-bot/internal/features/user/models"
)

// UserRepository persists user records. Implementations must make Create and
// BindTopic atomic: concurrent creates for the same id keep exactly one
// record, and concurrent binds keep exactly one topic id.
type UserRepository interface {
	// Create stores the record only if no record exists for user.ID.
	// It reports whether the record was created.
	Create(ctx context.Context, user *models.User) (bool, error)

	GetByID(ctx context.Context, id int64) (*models.User, error)

	Update(ctx context.Context, user *models.User) error

	// BindTopic associates the topic with the user via compare-and-set and
	// returns the bound topic id, which may be a pre-existing one when the
	// bind raced. It reports whether this call won the bind.
	BindTopic(ctx context.Context, userID int64, topicID int) (int, bool, error)

	// UserIDByTopic resolves the reverse topic -> user index.
	UserIDByTopic(ctx context.Context, topicID int) (int64, error)

	ListIDs(ctx context.Context) ([]int64, error)
}
