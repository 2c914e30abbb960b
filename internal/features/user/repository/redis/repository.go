package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	go_redis "github.com/redis/go-redis/v9"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/features/user/models"
	"support-relay-bot/internal/features/user/repository"
	"support-relay-bot/internal/platform/redis"
)

const (
	userKeyPrefix      = "user:"
	userTopicKeyPrefix = "user:topic:"
	topicUserKeyPrefix = "topic:user:"
)

type userRepository struct {
	client *redis.Client
}

func NewUserRepository(client *redis.Client) repository.UserRepository {
	return &userRepository{client: client}
}

func userKey(id int64) string {
	return userKeyPrefix + strconv.FormatInt(id, 10)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (bool, error) {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return false, err
	}
	created, err := r.client.SetNX(ctx, userKey(user.ID), userJSON, 0).Result()
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeStorage, "create user")
	}
	return created, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	userJSON, err := r.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if err == go_redis.Nil {
			return nil, apperrors.New(apperrors.ErrCodeUserNotFound, fmt.Sprintf("user %d not found", id))
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "get user")
	}

	var user models.User
	if err := json.Unmarshal(userJSON, &user); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "decode user")
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	userJSON, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, userKey(user.ID), userJSON, 0).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "update user")
	}
	return nil
}

// BindTopic writes the binding key with SETNX so only one caller can win,
// then mirrors the winning topic id into the record and the reverse index.
func (r *userRepository) BindTopic(ctx context.Context, userID int64, topicID int) (int, bool, error) {
	bindKey := userTopicKeyPrefix + strconv.FormatInt(userID, 10)

	won, err := r.client.SetNX(ctx, bindKey, topicID, 0).Result()
	if err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.ErrCodeStorage, "bind topic")
	}

	bound := topicID
	if !won {
		existing, err := r.client.Get(ctx, bindKey).Int()
		if err != nil {
			return 0, false, apperrors.Wrap(err, apperrors.ErrCodeStorage, "read topic binding")
		}
		bound = existing
	}

	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if user.TopicID != bound {
		user.TopicID = bound
		if err := r.Update(ctx, user); err != nil {
			return 0, false, err
		}
	}

	if err := r.client.Set(ctx, topicUserKeyPrefix+strconv.Itoa(bound), userID, 0).Err(); err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.ErrCodeStorage, "index topic")
	}
	return bound, won, nil
}

func (r *userRepository) UserIDByTopic(ctx context.Context, topicID int) (int64, error) {
	userID, err := r.client.Get(ctx, topicUserKeyPrefix+strconv.Itoa(topicID)).Int64()
	if err != nil {
		if err == go_redis.Nil {
			return 0, apperrors.New(apperrors.ErrCodeUserNotFound, fmt.Sprintf("no user for topic %d", topicID))
		}
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStorage, "resolve topic user")
	}
	return userID, nil
}

func (r *userRepository) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	iter := r.client.Scan(ctx, 0, userKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		// Skip binding keys sharing the prefix.
		raw := strings.TrimPrefix(key, userKeyPrefix)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorage, "scan users")
	}
	return ids, nil
}
