// Package memory provides an in-memory PendingRepository used in tests.
package memory

import (
	"context"
	"sync"

	"support-relay-bot/internal/features/admin/repository"
)

type pendingRepository struct {
	mu      sync.Mutex
	pending map[int64]string
}

func NewPendingRepository() repository.PendingRepository {
	return &pendingRepository{pending: make(map[int64]string)}
}

func (r *pendingRepository) Set(ctx context.Context, adminID int64, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[adminID] = command
	return nil
}

func (r *pendingRepository) Pop(ctx context.Context, adminID int64) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	command, ok := r.pending[adminID]
	if ok {
		delete(r.pending, adminID)
	}
	return command, ok, nil
}
