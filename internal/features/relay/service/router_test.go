package service

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "support-relay-bot/internal/common/errors"
	relaymemory "support-relay-bot/internal/features/relay/repository/memory"
	topicservice "support-relay-bot/internal/features/topic/service"
	"support-relay-bot/internal/features/user/models"
	usermemory "support-relay-bot/internal/features/user/repository/memory"
	userservice "support-relay-bot/internal/features/user/service"
	"support-relay-bot/internal/platform/telegram"
	"support-relay-bot/internal/texts"
)

const testGroupID int64 = 500

type copyCall struct {
	toChatID   int64
	threadID   int
	fromChatID int64
	messageID  int
}

type editCall struct {
	chatID    int64
	messageID int
	text      string
}

type fakeTransport struct {
	mu      sync.Mutex
	sends   []telegram.SendMessageParams
	copies  []copyCall
	edits   []editCall
	copyErr error
	editErr error
	nextID  int
}

func (f *fakeTransport) SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, params)
	f.nextID++
	return &telegram.Message{MessageID: f.nextID}, nil
}

func (f *fakeTransport) CopyMessage(ctx context.Context, toChatID int64, threadID int, fromChatID int64, messageID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.copies = append(f.copies, copyCall{toChatID, threadID, fromChatID, messageID})
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTransport) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, editCall{chatID, messageID, text})
	return nil
}

func (f *fakeTransport) lastSend(t *testing.T) telegram.SendMessageParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sends)
	return f.sends[len(f.sends)-1]
}

type staticCreator struct {
	nextTopic int
}

func (c *staticCreator) CreateTopic(ctx context.Context, title string) (int, error) {
	c.nextTopic++
	return 1000 + c.nextTopic, nil
}

type routerEnv struct {
	router    *Router
	users     *userservice.Service
	transport *fakeTransport
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	users := userservice.NewService(usermemory.NewUserRepository())
	transport := &fakeTransport{}
	resolver := topicservice.NewResolver(users, &staticCreator{})
	router := NewRouter(transport, users, resolver, relaymemory.NewMappingRepository(), testGroupID)
	return &routerEnv{router: router, users: users, transport: transport}
}

func (e *routerEnv) newUser(t *testing.T, id int64) *models.User {
	t.Helper()
	user, err := e.users.GetOrCreate(context.Background(), id, "Alice", "alice")
	require.NoError(t, err)
	require.NoError(t, e.users.SetLanguage(context.Background(), id, "en"))
	user.LanguageCode = "en"
	return user
}

func userMessage(userID int64, messageID int) *telegram.Message {
	return &telegram.Message{
		MessageID: messageID,
		From:      &telegram.User{ID: userID, FirstName: "Alice"},
		Chat:      telegram.Chat{ID: userID, Type: "private"},
		Text:      "help me",
	}
}

func topicMessage(topicID, messageID int) *telegram.Message {
	return &telegram.Message{
		MessageID:       messageID,
		MessageThreadID: topicID,
		From:            &telegram.User{ID: 999, FirstName: "Staff"},
		Chat:            telegram.Chat{ID: testGroupID, Type: "supergroup"},
		Text:            "hello from staff",
	}
}

func TestBannedUserNeverForwarded(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)
	require.NoError(t, env.users.SetBanned(ctx, 1, true))
	user.IsBanned = true

	require.NoError(t, env.router.RelayUserMessage(ctx, user, userMessage(1, 10)))

	assert.Empty(t, env.transport.copies, "banned user's message must not reach the transport")
	assert.Empty(t, env.transport.sends)
}

func TestRelayUserMessageForwardsAndConfirms(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	require.NoError(t, env.router.RelayUserMessage(ctx, user, userMessage(1, 10)))

	require.Len(t, env.transport.copies, 1)
	copied := env.transport.copies[0]
	assert.Equal(t, testGroupID, copied.toChatID)
	assert.NotZero(t, copied.threadID)
	assert.Equal(t, int64(1), copied.fromChatID)
	assert.Equal(t, 10, copied.messageID)

	confirmation := env.transport.lastSend(t)
	assert.Equal(t, int64(1), confirmation.ChatID)
	assert.Equal(t, texts.Render(texts.MessageSent, "en", nil), confirmation.Text)
}

func TestSilenceAsymmetry(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)
	require.NoError(t, env.users.SetSilent(ctx, 1, true))
	user.IsSilent = true

	// Inbound user -> staff still forwards.
	require.NoError(t, env.router.RelayUserMessage(ctx, user, userMessage(1, 10)))
	require.Len(t, env.transport.copies, 1)
	topicID := env.transport.copies[0].threadID

	// Outbound staff -> user is suppressed before any send attempt.
	err := env.router.RelayStaffMessage(ctx, user, topicMessage(topicID, 77))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSilencedUser))
	assert.Len(t, env.transport.copies, 1, "no copy towards the user may happen")

	note := env.transport.lastSend(t)
	assert.Equal(t, testGroupID, note.ChatID)
	assert.Equal(t, topicID, note.MessageThreadID)
	assert.Equal(t, texts.Render(texts.SilentModeEnabled, "en", nil), note.Text)
}

func TestUserEditNeverMutatesTopicCopy(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	msg := userMessage(1, 10)
	require.NoError(t, env.router.RelayUserMessage(ctx, user, msg))

	edited := userMessage(1, 10)
	edited.Text = "changed my mind"
	require.NoError(t, env.router.HandleUserEdit(ctx, user, edited))

	assert.Empty(t, env.transport.edits, "topic-side content must stay unchanged")
	notice := env.transport.lastSend(t)
	assert.Equal(t, int64(1), notice.ChatID)
	assert.Equal(t, texts.Render(texts.MessageEdited, "en", nil), notice.Text)
}

func TestUserEditOfUnknownMessageIsNoop(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	require.NoError(t, env.router.HandleUserEdit(ctx, user, userMessage(1, 99)))
	assert.Empty(t, env.transport.sends)
}

func TestRelayStaffMessageDeliversAndMaps(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	require.NoError(t, env.router.RelayUserMessage(ctx, user, userMessage(1, 10)))
	topicID := env.transport.copies[0].threadID

	staffMsg := topicMessage(topicID, 77)
	require.NoError(t, env.router.RelayStaffMessage(ctx, user, staffMsg))

	require.Len(t, env.transport.copies, 2)
	delivered := env.transport.copies[1]
	assert.Equal(t, int64(1), delivered.toChatID)
	assert.Equal(t, 77, delivered.messageID)

	note := env.transport.lastSend(t)
	assert.Equal(t, topicID, note.MessageThreadID)
	assert.Equal(t, texts.Render(texts.MessageSentToUser, "en", nil), note.Text)
}

func TestRelayStaffMessageBlockedByUser(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	require.NoError(t, env.router.RelayUserMessage(ctx, user, userMessage(1, 10)))
	topicID := env.transport.copies[0].threadID

	env.transport.copyErr = &telegram.APIError{Code: http.StatusForbidden, Description: "Forbidden: bot was blocked by the user"}
	err := env.router.RelayStaffMessage(ctx, user, topicMessage(topicID, 77))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBlockedByUser))

	note := env.transport.lastSend(t)
	assert.Equal(t, topicID, note.MessageThreadID)
	assert.Equal(t, texts.Render(texts.BlockedByUser, "en", nil), note.Text)
}

func TestRelayStaffMessageFailureReportedToTopic(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	require.NoError(t, env.router.RelayUserMessage(ctx, user, userMessage(1, 10)))
	topicID := env.transport.copies[0].threadID

	env.transport.copyErr = &telegram.APIError{Code: http.StatusBadGateway, Description: "Bad Gateway"}
	err := env.router.RelayStaffMessage(ctx, user, topicMessage(topicID, 77))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTransport))

	note := env.transport.lastSend(t)
	assert.Equal(t, texts.Render(texts.MessageNotSent, "en", nil), note.Text)
}

func TestStaffEditPropagatesToUserCopy(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	require.NoError(t, env.router.RelayUserMessage(ctx, user, userMessage(1, 10)))
	topicID := env.transport.copies[0].threadID
	require.NoError(t, env.router.RelayStaffMessage(ctx, user, topicMessage(topicID, 77)))

	edited := topicMessage(topicID, 77)
	edited.Text = "corrected answer"
	require.NoError(t, env.router.HandleStaffEdit(ctx, user, edited))

	require.Len(t, env.transport.edits, 1)
	assert.Equal(t, int64(1), env.transport.edits[0].chatID)
	assert.Equal(t, "corrected answer", env.transport.edits[0].text)
}

func TestStaffEditOfGoneMessageIsIgnored(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	require.NoError(t, env.router.RelayUserMessage(ctx, user, userMessage(1, 10)))
	topicID := env.transport.copies[0].threadID
	require.NoError(t, env.router.RelayStaffMessage(ctx, user, topicMessage(topicID, 77)))

	env.transport.editErr = &telegram.APIError{
		Code:        http.StatusBadRequest,
		Description: "Bad Request: message to edit not found",
	}
	require.NoError(t, env.router.HandleStaffEdit(ctx, user, topicMessage(topicID, 77)))
}

func TestStaffEditFailureIsReported(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	require.NoError(t, env.router.RelayUserMessage(ctx, user, userMessage(1, 10)))
	topicID := env.transport.copies[0].threadID
	require.NoError(t, env.router.RelayStaffMessage(ctx, user, topicMessage(topicID, 77)))

	// A 400 that is not a missing-message response is a real failure.
	env.transport.editErr = &telegram.APIError{
		Code:        http.StatusBadRequest,
		Description: "Bad Request: can't parse entities: unclosed tag",
	}
	err := env.router.HandleStaffEdit(ctx, user, topicMessage(topicID, 77))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTransport))
}

func TestAnnounceStart(t *testing.T) {
	env := newRouterEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1)

	require.NoError(t, env.router.AnnounceStart(ctx, user))
	note := env.transport.lastSend(t)
	assert.Equal(t, testGroupID, note.ChatID)
	assert.Contains(t, note.Text, "started")
	assert.Contains(t, note.Text, "Alice")

	// A stopped user restarting gets the restarted notice and state reset.
	require.NoError(t, env.users.MarkState(ctx, 1, models.StateStopped))
	stored, err := env.users.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, env.router.AnnounceStart(ctx, stored))

	note = env.transport.lastSend(t)
	assert.Contains(t, note.Text, "restarted")

	stored, err = env.users.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StateRestarted, stored.State)
}

func TestAnnounceStoppedWithoutTopicIsSilent(t *testing.T) {
	env := newRouterEnv(t)
	user := env.newUser(t, 1)

	env.router.AnnounceStopped(context.Background(), user)
	assert.Empty(t, env.transport.sends, "no topic may be created for a leaving user")
}
