// Package memory provides an in-memory UserRepository used in tests and
// local development without a Redis instance.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/features/user/models"
	"support-relay-bot/internal/features/user/repository"
)

type userRepository struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	bindings map[int64]int
	topics   map[int]int64
}

func NewUserRepository() repository.UserRepository {
	return &userRepository{
		users:    make(map[int64]*models.User),
		bindings: make(map[int64]int),
		topics:   make(map[int]int64),
	}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return false, nil
	}
	clone := *user
	r.users[user.ID] = &clone
	return true, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeUserNotFound, fmt.Sprintf("user %d not found", id))
	}
	clone := *user
	return &clone, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.UpdatedAt = time.Now().UTC()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *userRepository) BindTopic(ctx context.Context, userID int64, topicID int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bound, exists := r.bindings[userID]
	won := !exists
	if won {
		bound = topicID
		r.bindings[userID] = topicID
	}

	if user, ok := r.users[userID]; ok && user.TopicID != bound {
		user.TopicID = bound
	}
	r.topics[bound] = userID
	return bound, won, nil
}

func (r *userRepository) UserIDByTopic(ctx context.Context, topicID int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.topics[topicID]
	if !ok {
		return 0, apperrors.New(apperrors.ErrCodeUserNotFound, fmt.Sprintf("no user for topic %d", topicID))
	}
	return userID, nil
}

func (r *userRepository) ListIDs(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids, nil
}
