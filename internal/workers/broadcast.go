package workers

import (
	"context"
	"time"

	go_redis "github.com/redis/go-redis/v9"

	"support-relay-bot/internal/common/keylock"
	"support-relay-bot/internal/common/logger"
	"support-relay-bot/internal/features/user/models"
	userservice "support-relay-bot/internal/features/user/service"
	"support-relay-bot/internal/platform/redis"
	"support-relay-bot/internal/platform/telegram"
)

const (
	streamKey     = "bot:broadcasts"
	consumerGroup = "support_relay_consumers"
	consumerName  = "broadcast_worker_1"

	// sendPause keeps the delivery loop under the Bot API rate limit.
	sendPause = 50 * time.Millisecond
)

// Transport is the slice of the messaging API the worker uses.
type Transport interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
}

// BroadcastWorker consumes operator broadcasts from a Redis stream and
// delivers them to every known user, skipping banned and stopped ones.
// Deliveries are plain sends, but marking a user stopped is a record
// mutation and takes the shared per-user lock.
type BroadcastWorker struct {
	rdb       *redis.Client
	users     *userservice.Service
	transport Transport
	locks     *keylock.KeyLock
}

func NewBroadcastWorker(rdb *redis.Client, users *userservice.Service, transport Transport, locks *keylock.KeyLock) *BroadcastWorker {
	return &BroadcastWorker{rdb: rdb, users: users, transport: transport, locks: locks}
}

// Enqueue publishes a broadcast for asynchronous delivery.
func (w *BroadcastWorker) Enqueue(ctx context.Context, text string) error {
	return w.rdb.XAdd(ctx, &go_redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{"text": text},
	}).Err()
}

// Start begins consuming the broadcast stream until ctx is cancelled.
func (w *BroadcastWorker) Start(ctx context.Context) {
	err := w.rdb.XGroupCreateMkStream(ctx, streamKey, consumerGroup, "$").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		logger.Error().Err(err).Msg("failed to create broadcast consumer group")
	}

	logger.Info().Msg("Starting broadcast worker")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping broadcast worker")
			return
		default:
			entries, err := w.rdb.XReadGroup(ctx, &go_redis.XReadGroupArgs{
				Group:    consumerGroup,
				Consumer: consumerName,
				Streams:  []string{streamKey, ">"},
				Count:    1,
				Block:    5 * time.Second,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				if err != go_redis.Nil {
					logger.Error().Err(err).Msg("failed to read broadcast stream")
					time.Sleep(time.Second)
				}
				continue
			}

			for _, stream := range entries {
				for _, msg := range stream.Messages {
					w.deliver(ctx, msg.Values)
					w.rdb.XAck(ctx, streamKey, consumerGroup, msg.ID)
				}
			}
		}
	}
}

func (w *BroadcastWorker) deliver(ctx context.Context, values map[string]interface{}) {
	text, ok := values["text"].(string)
	if !ok || text == "" {
		return
	}

	ids, err := w.users.ListIDs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list users for broadcast")
		return
	}

	var sent, skipped, failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		user, err := w.users.GetByID(ctx, id)
		if err != nil {
			failed++
			continue
		}
		if user.IsBanned || user.State == models.StateStopped {
			skipped++
			continue
		}
		if _, err := w.transport.SendMessage(ctx, telegram.SendMessageParams{ChatID: id, Text: text}); err != nil {
			failed++
			if telegram.IsBlockedByUser(err) {
				w.locks.Lock(id)
				if err := w.users.MarkState(ctx, id, models.StateStopped); err != nil {
					logger.Error().Err(err).Int64("user_id", id).Msg("failed to mark user stopped")
				}
				w.locks.Unlock(id)
			}
			continue
		}
		sent++
		time.Sleep(sendPause)
	}

	logger.Info().
		Int("sent", sent).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("Broadcast delivered")
}
