package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/features/relay/repository"
	"support-relay-bot/internal/platform/redis"
)

const (
	// maxPairsPerUser caps each per-user mapping list; oldest entries fall
	// off first, so edits of very old messages simply stop resolving.
	maxPairsPerUser = 100

	mappingTTL = 7 * 24 * time.Hour
)

type mappingRepository struct {
	client *redis.Client
}

func NewMappingRepository(client *redis.Client) repository.MappingRepository {
	return &mappingRepository{client: client}
}

func (r *mappingRepository) SaveUserToTopic(ctx context.Context, userID int64, userMsgID, topicMsgID int) error {
	return r.push(ctx, key("u2t", userID), userMsgID, topicMsgID)
}

func (r *mappingRepository) TopicMessageID(ctx context.Context, userID int64, userMsgID int) (int, bool, error) {
	return r.lookup(ctx, key("u2t", userID), userMsgID)
}

func (r *mappingRepository) SaveTopicToUser(ctx context.Context, userID int64, topicMsgID, userMsgID int) error {
	return r.push(ctx, key("t2u", userID), topicMsgID, userMsgID)
}

func (r *mappingRepository) UserMessageID(ctx context.Context, userID int64, topicMsgID int) (int, bool, error) {
	return r.lookup(ctx, key("t2u", userID), topicMsgID)
}

func key(direction string, userID int64) string {
	return "relay:" + direction + ":" + strconv.FormatInt(userID, 10)
}

func (r *mappingRepository) push(ctx context.Context, listKey string, src, dst int) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, listKey, fmt.Sprintf("%d:%d", src, dst))
	pipe.LTrim(ctx, listKey, 0, maxPairsPerUser-1)
	pipe.Expire(ctx, listKey, mappingTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "save relay mapping")
	}
	return nil
}

func (r *mappingRepository) lookup(ctx context.Context, listKey string, src int) (int, bool, error) {
	entries, err := r.client.LRange(ctx, listKey, 0, maxPairsPerUser-1).Result()
	if err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.ErrCodeStorage, "read relay mapping")
	}
	prefix := strconv.Itoa(src) + ":"
	for _, entry := range entries {
		if strings.HasPrefix(entry, prefix) {
			dst, err := strconv.Atoi(entry[len(prefix):])
			if err != nil {
				continue
			}
			return dst, true, nil
		}
	}
	return 0, false, nil
}
