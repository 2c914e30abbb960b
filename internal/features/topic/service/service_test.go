package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/features/user/repository/memory"
	userservice "support-relay-bot/internal/features/user/service"
)

type countingCreator struct {
	calls int32
	delay time.Duration
	err   error
}

func (c *countingCreator) CreateTopic(ctx context.Context, title string) (int, error) {
	n := atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return 0, c.err
	}
	return 1000 + int(n), nil
}

func newResolver(creator TopicCreator) (*Resolver, *userservice.Service) {
	users := userservice.NewService(memory.NewUserRepository())
	return NewResolver(users, creator), users
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	creator := &countingCreator{}
	resolver, users := newResolver(creator)

	user, err := users.GetOrCreate(ctx, 1, "Alice", "alice")
	require.NoError(t, err)

	first, created, err := resolver.Resolve(ctx, user)
	require.NoError(t, err)
	assert.True(t, created)

	user, err = users.GetByID(ctx, 1)
	require.NoError(t, err)
	second, created, err := resolver.Resolve(ctx, user)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&creator.calls))
}

func TestResolveCreatesAtMostOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	creator := &countingCreator{delay: 10 * time.Millisecond}
	resolver, users := newResolver(creator)

	user, err := users.GetOrCreate(ctx, 1, "Alice", "alice")
	require.NoError(t, err)

	const workers = 16
	results := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Each goroutine acts on its own stale snapshot.
			snapshot := *user
			topicID, _, err := resolver.Resolve(ctx, &snapshot)
			require.NoError(t, err)
			results[i] = topicID
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&creator.calls), "topic must be created exactly once")
	for _, topicID := range results {
		assert.Equal(t, results[0], topicID, "all callers must observe the same topic")
	}
}

func TestResolveFailureLeavesNoBinding(t *testing.T) {
	ctx := context.Background()
	creator := &countingCreator{err: errors.New("network down")}
	resolver, users := newResolver(creator)

	user, err := users.GetOrCreate(ctx, 1, "Alice", "alice")
	require.NoError(t, err)

	_, _, err = resolver.Resolve(ctx, user)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTopicCreationFailed))

	stored, err := users.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, stored.TopicID)

	// The next message retries creation and succeeds.
	creator.err = nil
	topicID, created, err := resolver.Resolve(ctx, stored)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, topicID)
}

func TestTopicTitle(t *testing.T) {
	ctx := context.Background()
	users := userservice.NewService(memory.NewUserRepository())
	user, err := users.GetOrCreate(ctx, 42, "Alice Smith", "alice")
	require.NoError(t, err)

	assert.Equal(t, "Alice Smith | 42", TopicTitle(user))
}
