package redis

import (
	"context"
	"strconv"
	"time"

	go_redis "github.com/redis/go-redis/v9"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/features/admin/repository"
	"support-relay-bot/internal/platform/redis"
)

const (
	pendingKeyPrefix = "admin:pending:"
	pendingTTL       = 60 * time.Second
)

type pendingRepository struct {
	client *redis.Client
}

func NewPendingRepository(client *redis.Client) repository.PendingRepository {
	return &pendingRepository{client: client}
}

func pendingKey(adminID int64) string {
	return pendingKeyPrefix + strconv.FormatInt(adminID, 10)
}

func (r *pendingRepository) Set(ctx context.Context, adminID int64, command string) error {
	if err := r.client.Set(ctx, pendingKey(adminID), command, pendingTTL).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "store pending command")
	}
	return nil
}

func (r *pendingRepository) Pop(ctx context.Context, adminID int64) (string, bool, error) {
	command, err := r.client.GetDel(ctx, pendingKey(adminID)).Result()
	if err != nil {
		if err == go_redis.Nil {
			return "", false, nil
		}
		return "", false, apperrors.Wrap(err, apperrors.ErrCodeStorage, "pop pending command")
	}
	return command, true, nil
}
