package bot

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"support-relay-bot/internal/common/config"
	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/common/keylock"
	"support-relay-bot/internal/common/logger"
	adminservice "support-relay-bot/internal/features/admin/service"
	onboardingservice "support-relay-bot/internal/features/onboarding/service"
	relayservice "support-relay-bot/internal/features/relay/service"
	"support-relay-bot/internal/features/user/models"
	userservice "support-relay-bot/internal/features/user/service"
	"support-relay-bot/internal/platform/telegram"
)

const longPollTimeout = 50 // seconds

// Dispatcher runs the long-poll update loop and routes each update to the
// relay, onboarding or admin flow. Updates are handled concurrently; events
// of the same user are serialized through a per-user lock shared with the
// admin processor and the broadcast worker, so check-then-act sequences and
// record mutations never interleave. A failure in one user's handler never
// affects another user's events.
type Dispatcher struct {
	cfg        *config.Config
	client     *telegram.Client
	users      *userservice.Service
	router     *relayservice.Router
	onboarding *onboardingservice.Service
	admin      *adminservice.Service
	locks      *keylock.KeyLock
}

func NewDispatcher(
	cfg *config.Config,
	client *telegram.Client,
	users *userservice.Service,
	router *relayservice.Router,
	onboarding *onboardingservice.Service,
	admin *adminservice.Service,
	locks *keylock.KeyLock,
) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		client:     client,
		users:      users,
		router:     router,
		onboarding: onboarding,
		admin:      admin,
		locks:      locks,
	}
}

// Run polls for updates until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	logger.Info().Msg("Starting update dispatcher")
	offset := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping update dispatcher")
			return
		default:
		}

		updates, err := d.client.GetUpdates(ctx, offset, longPollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("failed to get updates")
			time.Sleep(time.Second)
			continue
		}

		for _, upd := range updates {
			offset = upd.UpdateID + 1
			upd := upd
			go d.handleUpdate(ctx, &upd)
		}
	}
}

func (d *Dispatcher) handleUpdate(ctx context.Context, upd *telegram.Update) {
	eventID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("event_id", eventID).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("panic in update handler")
		}
	}()

	if err := d.dispatch(ctx, upd); err != nil {
		event := logger.Error().Str("event_id", eventID).Err(err)
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.UserID != 0 {
			event = event.Int64("user_id", appErr.UserID)
		}
		event.Msg("failed to handle update")
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, upd *telegram.Update) error {
	switch {
	case upd.CallbackQuery != nil:
		return d.handleCallback(ctx, upd.CallbackQuery)
	case upd.MyChatMember != nil:
		return d.handleMyChatMember(ctx, upd.MyChatMember)
	case upd.Message != nil:
		if upd.Message.Chat.Type == "private" {
			return d.handlePrivateMessage(ctx, upd.Message)
		}
		return d.handleGroupMessage(ctx, upd.Message)
	case upd.EditedMessage != nil:
		if upd.EditedMessage.Chat.Type == "private" {
			return d.handlePrivateEdit(ctx, upd.EditedMessage)
		}
		return d.handleGroupEdit(ctx, upd.EditedMessage)
	}
	return nil
}

func (d *Dispatcher) handlePrivateMessage(ctx context.Context, msg *telegram.Message) error {
	from := msg.From
	if from == nil || from.IsBot {
		return nil
	}

	d.locks.Lock(from.ID)
	defer d.locks.Unlock(from.ID)

	user, err := d.users.GetOrCreate(ctx, from.ID, from.FullName(), from.Username)
	if err != nil {
		return err
	}

	command, _ := ParseCommand(msg.Text)
	switch command {
	case "start":
		return d.handleStart(ctx, user, msg)
	case "language":
		if err := d.onboarding.HandleLanguageCommand(ctx, user); err != nil {
			return err
		}
		d.deleteQuietly(ctx, user.ID, msg.MessageID)
		return nil
	default:
		// First contact is gated on language selection.
		if user.LanguageCode == "" {
			return d.onboarding.ShowLanguageSelect(ctx, user)
		}
		return d.router.RelayUserMessage(ctx, user, msg)
	}
}

// handleStart implements /start: never relayed, idempotent after onboarding.
func (d *Dispatcher) handleStart(ctx context.Context, user *models.User, msg *telegram.Message) error {
	if user.LanguageCode == "" {
		if err := d.onboarding.ShowLanguageSelect(ctx, user); err != nil {
			return err
		}
		d.deleteQuietly(ctx, user.ID, msg.MessageID)
		// Topic resolution waits for onboarding completion.
		return nil
	}

	var sticker *telegram.Message
	if d.cfg.Bot.StickerID != "" {
		var err error
		sticker, err = d.client.SendSticker(ctx, user.ID, d.cfg.Bot.StickerID)
		if err != nil {
			logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to send start sticker")
		}
	}

	if err := d.onboarding.ShowMainMenu(ctx, user); err != nil {
		return err
	}

	d.deleteQuietly(ctx, user.ID, msg.MessageID)
	if sticker != nil {
		d.deleteQuietly(ctx, user.ID, sticker.MessageID)
	}

	return d.router.AnnounceStart(ctx, user)
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	d.locks.Lock(cb.From.ID)
	defer d.locks.Unlock(cb.From.ID)

	user, firstContact, err := d.onboarding.HandleCallback(ctx, cb)
	if err != nil || user == nil {
		return err
	}
	if firstContact {
		return d.router.AnnounceStart(ctx, user)
	}
	return nil
}

func (d *Dispatcher) handlePrivateEdit(ctx context.Context, msg *telegram.Message) error {
	from := msg.From
	if from == nil || from.IsBot {
		return nil
	}

	d.locks.Lock(from.ID)
	defer d.locks.Unlock(from.ID)

	user, err := d.users.GetByID(ctx, from.ID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeUserNotFound) {
			return nil
		}
		return err
	}
	return d.router.HandleUserEdit(ctx, user, msg)
}

func (d *Dispatcher) handleGroupMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.Chat.ID != d.cfg.Bot.GroupID || msg.From == nil || msg.From.IsBot {
		return nil
	}

	if command, arg := ParseCommand(msg.Text); command != "" {
		switch command {
		case adminservice.CommandBan, adminservice.CommandSilent,
			adminservice.CommandInformation, adminservice.CommandNewsletter:
			return d.admin.HandleCommand(ctx, msg, command, arg)
		}
	}

	if handled, err := d.admin.HandleReply(ctx, msg); handled || err != nil {
		return err
	}

	if msg.MessageThreadID == 0 {
		return nil
	}
	user, err := d.topicUser(ctx, msg.MessageThreadID)
	if err != nil || user == nil {
		return err
	}

	d.locks.Lock(user.ID)
	defer d.locks.Unlock(user.ID)

	return d.router.RelayStaffMessage(ctx, user, msg)
}

func (d *Dispatcher) handleGroupEdit(ctx context.Context, msg *telegram.Message) error {
	if msg.Chat.ID != d.cfg.Bot.GroupID || msg.From == nil || msg.From.IsBot || msg.MessageThreadID == 0 {
		return nil
	}
	user, err := d.topicUser(ctx, msg.MessageThreadID)
	if err != nil || user == nil {
		return err
	}

	d.locks.Lock(user.ID)
	defer d.locks.Unlock(user.ID)

	return d.router.HandleStaffEdit(ctx, user, msg)
}

func (d *Dispatcher) handleMyChatMember(ctx context.Context, upd *telegram.ChatMemberUpdated) error {
	if upd.Chat.Type != "private" {
		return nil
	}
	status := upd.NewChatMember.Status
	if status != "kicked" && status != "left" {
		return nil
	}

	d.locks.Lock(upd.From.ID)
	defer d.locks.Unlock(upd.From.ID)

	user, err := d.users.GetByID(ctx, upd.From.ID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeUserNotFound) {
			return nil
		}
		return err
	}
	if user.State == models.StateStopped {
		return nil
	}
	if err := d.users.MarkState(ctx, user.ID, models.StateStopped); err != nil {
		return err
	}
	user.State = models.StateStopped
	d.router.AnnounceStopped(ctx, user)
	return nil
}

// topicUser resolves the topic's owner; unrelated topics yield nil.
func (d *Dispatcher) topicUser(ctx context.Context, topicID int) (*models.User, error) {
	userID, err := d.users.UserIDByTopic(ctx, topicID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (d *Dispatcher) deleteQuietly(ctx context.Context, chatID int64, messageID int) {
	if err := d.client.DeleteMessage(ctx, chatID, messageID); err != nil {
		logger.Debug().Err(err).Int64("chat_id", chatID).Int("message_id", messageID).Msg("failed to delete message")
	}
}

// ParseCommand extracts a bot command and its argument from message text.
// "/ban@support_bot 42" yields ("ban", "42"); non-commands yield ("", "").
func ParseCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	command, arg, _ := strings.Cut(text[1:], " ")
	command, _, _ = strings.Cut(command, "@")
	return strings.ToLower(command), strings.TrimSpace(arg)
}
