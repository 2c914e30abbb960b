// Package memory provides an in-memory MappingRepository used in tests and
// local development without a Redis instance.
package memory

import (
	"context"
	"sync"

	"support-relay-bot/internal/features/relay/repository"
)

// maxPairsPerUser mirrors the Redis implementation's per-user cap.
const maxPairsPerUser = 100

type pair struct {
	src, dst int
}

type mappingRepository struct {
	mu  sync.Mutex
	u2t map[int64][]pair
	t2u map[int64][]pair
}

func NewMappingRepository() repository.MappingRepository {
	return &mappingRepository{
		u2t: make(map[int64][]pair),
		t2u: make(map[int64][]pair),
	}
}

func (r *mappingRepository) SaveUserToTopic(ctx context.Context, userID int64, userMsgID, topicMsgID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.u2t[userID] = push(r.u2t[userID], pair{userMsgID, topicMsgID})
	return nil
}

func (r *mappingRepository) TopicMessageID(ctx context.Context, userID int64, userMsgID int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lookup(r.u2t[userID], userMsgID)
}

func (r *mappingRepository) SaveTopicToUser(ctx context.Context, userID int64, topicMsgID, userMsgID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.t2u[userID] = push(r.t2u[userID], pair{topicMsgID, userMsgID})
	return nil
}

func (r *mappingRepository) UserMessageID(ctx context.Context, userID int64, topicMsgID int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lookup(r.t2u[userID], topicMsgID)
}

func push(pairs []pair, p pair) []pair {
	pairs = append([]pair{p}, pairs...)
	if len(pairs) > maxPairsPerUser {
		pairs = pairs[:maxPairsPerUser]
	}
	return pairs
}

func lookup(pairs []pair, src int) (int, bool, error) {
	for _, p := range pairs {
		if p.src == src {
			return p.dst, true, nil
		}
	}
	return 0, false, nil
}
