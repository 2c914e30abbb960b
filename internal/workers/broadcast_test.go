package workers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-relay-bot/internal/common/keylock"
	"support-relay-bot/internal/features/user/models"
	usermemory "support-relay-bot/internal/features/user/repository/memory"
	userservice "support-relay-bot/internal/features/user/service"
	"support-relay-bot/internal/platform/telegram"
)

type fakeTransport struct {
	sends    []int64
	blockIDs map[int64]bool
}

func (f *fakeTransport) SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error) {
	if f.blockIDs[params.ChatID] {
		return nil, &telegram.APIError{
			Code:        http.StatusForbidden,
			Description: "Forbidden: bot was blocked by the user",
		}
	}
	f.sends = append(f.sends, params.ChatID)
	return &telegram.Message{MessageID: 1}, nil
}

func TestDeliverSkipsAndMarksStopped(t *testing.T) {
	ctx := context.Background()
	users := userservice.NewService(usermemory.NewUserRepository())
	for id := int64(1); id <= 4; id++ {
		_, err := users.GetOrCreate(ctx, id, "User", "user")
		require.NoError(t, err)
	}
	require.NoError(t, users.SetBanned(ctx, 2, true))
	require.NoError(t, users.MarkState(ctx, 3, models.StateStopped))

	transport := &fakeTransport{blockIDs: map[int64]bool{4: true}}
	w := NewBroadcastWorker(nil, users, transport, keylock.New())
	w.deliver(ctx, map[string]interface{}{"text": "maintenance tonight"})

	assert.Equal(t, []int64{1}, transport.sends, "banned, stopped and blocking users are excluded")

	user, err := users.GetByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, models.StateStopped, user.State, "403 marks the user stopped")
}

func TestDeliverMarksStoppedUnderUserLock(t *testing.T) {
	ctx := context.Background()
	users := userservice.NewService(usermemory.NewUserRepository())
	_, err := users.GetOrCreate(ctx, 4, "User", "user")
	require.NoError(t, err)

	transport := &fakeTransport{blockIDs: map[int64]bool{4: true}}
	locks := keylock.New()
	w := NewBroadcastWorker(nil, users, transport, locks)

	// Simulate a relay handler holding the user's lock.
	locks.Lock(4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.deliver(ctx, map[string]interface{}{"text": "hello"})
	}()

	select {
	case <-done:
		t.Fatal("worker mutated the record while the user's lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	locks.Unlock(4)
	<-done

	user, err := users.GetByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, models.StateStopped, user.State)
}

func TestDeliverIgnoresEmptyText(t *testing.T) {
	ctx := context.Background()
	users := userservice.NewService(usermemory.NewUserRepository())
	_, err := users.GetOrCreate(ctx, 1, "User", "user")
	require.NoError(t, err)

	transport := &fakeTransport{}
	w := NewBroadcastWorker(nil, users, transport, keylock.New())
	w.deliver(ctx, map[string]interface{}{})
	w.deliver(ctx, map[string]interface{}{"text": ""})

	assert.Empty(t, transport.sends)
}
