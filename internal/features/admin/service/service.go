package service

import (
	"context"
	"strconv"
	"time"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/common/keylock"
	"support-relay-bot/internal/common/logger"
	"support-relay-bot/internal/features/admin/repository"
	"support-relay-bot/internal/features/user/models"
	userservice "support-relay-bot/internal/features/user/service"
	"support-relay-bot/internal/platform/telegram"
	"support-relay-bot/internal/texts"
)

const (
	CommandBan         = "ban"
	CommandSilent      = "silent"
	CommandInformation = "information"
	CommandNewsletter  = "newsletter"
)

// Transport is the slice of the messaging API the admin processor uses.
type Transport interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
}

// Broadcaster enqueues an operator broadcast for asynchronous delivery.
type Broadcaster interface {
	Enqueue(ctx context.Context, text string) error
}

// Service executes operator commands. Anything not issued by the configured
// operator is ignored outright: no reply, so command existence never leaks.
type Service struct {
	transport   Transport
	users       *userservice.Service
	pending     repository.PendingRepository
	broadcaster Broadcaster
	locks       *keylock.KeyLock
	operatorID  int64
}

func NewService(
	transport Transport,
	users *userservice.Service,
	pending repository.PendingRepository,
	broadcaster Broadcaster,
	locks *keylock.KeyLock,
	operatorID int64,
) *Service {
	return &Service{
		transport:   transport,
		users:       users,
		pending:     pending,
		broadcaster: broadcaster,
		locks:       locks,
		operatorID:  operatorID,
	}
}

// HandleCommand runs a /ban, /silent, /information or /newsletter command.
// The target user comes from the explicit argument, else from the topic the
// command was issued in, else a pending prompt asks for it.
func (s *Service) HandleCommand(ctx context.Context, msg *telegram.Message, command, arg string) error {
	if msg.From == nil || msg.From.ID != s.operatorID {
		logger.Debug().Str("command", command).Msg("ignoring admin command from non-operator")
		return nil
	}

	if command == CommandNewsletter {
		return s.newsletter(ctx, msg, arg)
	}

	targetID, ok, err := s.resolveTarget(ctx, msg, arg)
	if err != nil {
		return err
	}
	if !ok {
		if err := s.pending.Set(ctx, msg.From.ID, command); err != nil {
			return err
		}
		return s.reply(ctx, msg, texts.Render(texts.AskTargetUserID, texts.DefaultLanguage, map[string]string{
			"command": command,
		}))
	}
	return s.apply(ctx, msg, command, targetID)
}

// HandleReply consumes a pending command when the operator answers the
// target prompt. It reports whether the message was consumed.
func (s *Service) HandleReply(ctx context.Context, msg *telegram.Message) (bool, error) {
	if msg.From == nil || msg.From.ID != s.operatorID {
		return false, nil
	}
	targetID, err := strconv.ParseInt(msg.Text, 10, 64)
	if err != nil {
		return false, nil
	}
	command, found, err := s.pending.Pop(ctx, msg.From.ID)
	if err != nil || !found {
		return false, err
	}
	return true, s.apply(ctx, msg, command, targetID)
}

func (s *Service) resolveTarget(ctx context.Context, msg *telegram.Message, arg string) (int64, bool, error) {
	if arg != "" {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err == nil {
			return id, true, nil
		}
	}
	if msg.MessageThreadID != 0 {
		id, err := s.users.UserIDByTopic(ctx, msg.MessageThreadID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeUserNotFound) {
				return 0, false, nil
			}
			return 0, false, err
		}
		return id, true, nil
	}
	return 0, false, nil
}

func (s *Service) apply(ctx context.Context, msg *telegram.Message, command string, targetID int64) error {
	// Record mutations take the target's per-user lock, the same one the
	// relay handlers hold, so a concurrent relay cannot overwrite the change.
	s.locks.Lock(targetID)
	defer s.locks.Unlock(targetID)

	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeUserNotFound) {
			logger.Warn().Int64("target_id", targetID).Str("command", command).Msg("admin command targets unknown user")
			return nil
		}
		return err
	}

	switch command {
	case CommandBan:
		banned := !user.IsBanned
		if err := s.users.SetBanned(ctx, user.ID, banned); err != nil {
			return err
		}
		template := texts.UserUnblocked
		if banned {
			template = texts.UserBlocked
		}
		return s.reply(ctx, msg, texts.Render(template, texts.DefaultLanguage, nil))

	case CommandSilent:
		silent := !user.IsSilent
		if err := s.users.SetSilent(ctx, user.ID, silent); err != nil {
			return err
		}
		template := texts.SilentModeDisabled
		if silent {
			template = texts.SilentModeEnabled
		}
		return s.reply(ctx, msg, texts.Render(template, texts.DefaultLanguage, nil))

	case CommandInformation:
		return s.reply(ctx, msg, renderInformation(user))

	default:
		logger.Warn().Str("command", command).Msg("unknown admin command")
		return nil
	}
}

func (s *Service) newsletter(ctx context.Context, msg *telegram.Message, text string) error {
	if text == "" {
		return nil
	}
	if err := s.broadcaster.Enqueue(ctx, text); err != nil {
		return err
	}
	return s.reply(ctx, msg, texts.Render(texts.MessageSent, texts.DefaultLanguage, nil))
}

func (s *Service) reply(ctx context.Context, msg *telegram.Message, text string) error {
	_, err := s.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:          msg.Chat.ID,
		MessageThreadID: msg.MessageThreadID,
		Text:            text,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "send admin reply")
	}
	return nil
}

func renderInformation(user *models.User) string {
	username := user.Username
	if username == "" {
		username = "-"
	}
	return texts.Render(texts.UserInformation, texts.DefaultLanguage, map[string]string{
		"id":         strconv.FormatInt(user.ID, 10),
		"full_name":  user.FullName,
		"state":      string(user.State),
		"username":   username,
		"is_banned":  strconv.FormatBool(user.IsBanned),
		"is_silent":  strconv.FormatBool(user.IsSilent),
		"created_at": user.CreatedAt.Format(time.DateTime),
	})
}
