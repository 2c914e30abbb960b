package service

import (
	"context"
	"fmt"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/common/keylock"
	"support-relay-bot/internal/common/logger"
	"support-relay-bot/internal/features/user/models"
	userservice "support-relay-bot/internal/features/user/service"
)

const maxTopicTitleLen = 128

// TopicCreator creates a staff-group forum topic and returns its id.
type TopicCreator interface {
	CreateTopic(ctx context.Context, title string) (int, error)
}

// Resolver maps users to staff-group topics, creating one on first contact.
// Creation is at-most-once per user: the check-then-create sequence runs
// inside a per-user critical section, and the binding itself is a
// compare-and-set in storage, so a concurrent process cannot double-bind.
type Resolver struct {
	users   *userservice.Service
	creator TopicCreator
	locks   *keylock.KeyLock
}

func NewResolver(users *userservice.Service, creator TopicCreator) *Resolver {
	return &Resolver{
		users:   users,
		creator: creator,
		locks:   keylock.New(),
	}
}

// Resolve returns the user's topic id, creating and binding a topic when the
// user has none. It reports whether a topic was created by this call. On
// creation failure nothing is bound and the next call retries.
func (r *Resolver) Resolve(ctx context.Context, user *models.User) (int, bool, error) {
	if user.TopicID != 0 {
		return user.TopicID, false, nil
	}

	r.locks.Lock(user.ID)
	defer r.locks.Unlock(user.ID)

	// Re-check under the lock: a concurrent relay may have bound already.
	current, err := r.users.GetByID(ctx, user.ID)
	if err != nil {
		return 0, false, err
	}
	if current.TopicID != 0 {
		return current.TopicID, false, nil
	}

	topicID, err := r.creator.CreateTopic(ctx, TopicTitle(user))
	if err != nil {
		return 0, false, apperrors.Wrapf(
			err, apperrors.ErrCodeTopicCreationFailed,
			"create topic for user %d", user.ID,
		).WithUserID(user.ID)
	}

	bound, err := r.users.BindTopic(ctx, user.ID, topicID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeAlreadyBound) {
			// Another instance won the bind between our check and create.
			// The freshly created topic is orphaned; adopt the winner.
			logger.Error().
				Err(err).
				Int64("user_id", user.ID).
				Int("orphaned_topic_id", topicID).
				Msg("topic bind raced, adopting existing binding")
			return bound, false, nil
		}
		return 0, false, err
	}
	return bound, true, nil
}

// TopicTitle derives the staff-side topic name from the user's profile.
func TopicTitle(user *models.User) string {
	title := fmt.Sprintf("%s | %d", user.FullName, user.ID)
	if len(title) > maxTopicTitleLen {
		title = title[:maxTopicTitleLen]
	}
	return title
}
