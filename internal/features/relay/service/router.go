package service

import (
	"context"
	"strconv"
	"time"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/common/logger"
	relayrepo "support-relay-bot/internal/features/relay/repository"
	topicservice "support-relay-bot/internal/features/topic/service"
	"support-relay-bot/internal/features/user/models"
	userservice "support-relay-bot/internal/features/user/service"
	"support-relay-bot/internal/platform/telegram"
	"support-relay-bot/internal/texts"
)

const (
	// noticeRetries bounds re-sends of topic status notes on network errors.
	noticeRetries = 3
	retryBackoff  = 300 * time.Millisecond
)

// Router is the relay state machine. For every inbound event it decides what
// to forward, edit or suppress, and enforces the ban/silence policy:
// banned blocks user->staff, silent blocks staff->user only.
type Router struct {
	transport Transport
	users     *userservice.Service
	resolver  *topicservice.Resolver
	mappings  relayrepo.MappingRepository
	groupID   int64
}

func NewRouter(
	transport Transport,
	users *userservice.Service,
	resolver *topicservice.Resolver,
	mappings relayrepo.MappingRepository,
	groupID int64,
) *Router {
	return &Router{
		transport: transport,
		users:     users,
		resolver:  resolver,
		mappings:  mappings,
		groupID:   groupID,
	}
}

// RelayUserMessage forwards a private-chat message into the user's topic.
// Banned users are dropped without any response; silence does not apply in
// this direction.
func (r *Router) RelayUserMessage(ctx context.Context, user *models.User, msg *telegram.Message) error {
	if user.IsBanned {
		logger.Debug().Int64("user_id", user.ID).Msg("dropping message from banned user")
		return nil
	}

	topicID, created, err := r.resolver.Resolve(ctx, user)
	if err != nil {
		return err
	}
	if created {
		r.announce(ctx, topicID, texts.UserStartedBot, user)
	}

	topicMsgID, err := r.transport.CopyMessage(ctx, r.groupID, topicID, user.ID, msg.MessageID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "copy message to topic").WithUserID(user.ID)
	}
	if err := r.mappings.SaveUserToTopic(ctx, user.ID, msg.MessageID, topicMsgID); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to save relay mapping")
	}

	// Delivery confirmation back to the user, best effort.
	if _, err := r.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: user.ID,
		Text:   texts.Render(texts.MessageSent, user.LanguageCode, nil),
	}); err != nil {
		logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to confirm relay to user")
	}
	return nil
}

// HandleUserEdit reacts to a user editing a previously relayed message.
// The staff copy is deliberately left untouched so staff always sees the
// original wording; the user gets an "edited locally" notice instead.
func (r *Router) HandleUserEdit(ctx context.Context, user *models.User, msg *telegram.Message) error {
	if user.IsBanned {
		return nil
	}
	_, found, err := r.mappings.TopicMessageID(ctx, user.ID, msg.MessageID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	_, err = r.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: user.ID,
		Text:   texts.Render(texts.MessageEdited, user.LanguageCode, nil),
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "send edit notice").WithUserID(user.ID)
	}
	return nil
}

// RelayStaffMessage forwards a topic message to the user's private chat.
// Silence suppresses delivery before any send is attempted; delivery
// failures are reported back into the topic, never to the user.
func (r *Router) RelayStaffMessage(ctx context.Context, user *models.User, msg *telegram.Message) error {
	if user.IsSilent {
		r.notifyTopic(ctx, msg.MessageThreadID, texts.Render(texts.SilentModeEnabled, texts.DefaultLanguage, nil))
		return apperrors.New(apperrors.ErrCodeSilencedUser, "user is silenced").WithUserID(user.ID)
	}

	userMsgID, err := r.transport.CopyMessage(ctx, user.ID, 0, r.groupID, msg.MessageID)
	if err != nil {
		if telegram.IsBlockedByUser(err) {
			r.notifyTopic(ctx, msg.MessageThreadID, texts.Render(texts.BlockedByUser, texts.DefaultLanguage, nil))
			return apperrors.Wrap(err, apperrors.ErrCodeBlockedByUser, "user blocked the bot").WithUserID(user.ID)
		}
		r.notifyTopic(ctx, msg.MessageThreadID, texts.Render(texts.MessageNotSent, texts.DefaultLanguage, nil))
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "copy message to user").WithUserID(user.ID)
	}

	if err := r.mappings.SaveTopicToUser(ctx, user.ID, msg.MessageID, userMsgID); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to save relay mapping")
	}
	r.notifyTopic(ctx, msg.MessageThreadID, texts.Render(texts.MessageSentToUser, texts.DefaultLanguage, nil))
	return nil
}

// HandleStaffEdit propagates a staff edit to the already delivered user copy.
func (r *Router) HandleStaffEdit(ctx context.Context, user *models.User, msg *telegram.Message) error {
	if msg.Text == "" {
		return nil
	}
	userMsgID, found, err := r.mappings.UserMessageID(ctx, user.ID, msg.MessageID)
	if err != nil || !found {
		return err
	}
	if err := r.transport.EditMessageText(ctx, user.ID, userMsgID, msg.Text); err != nil {
		if telegram.IsNotFound(err) {
			return nil
		}
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "edit relayed message").WithUserID(user.ID)
	}
	return nil
}

// AnnounceStart resolves the user's topic and posts the started/restarted
// system notice staff expects on /start. Creation failures propagate so the
// next message retries.
func (r *Router) AnnounceStart(ctx context.Context, user *models.User) error {
	topicID, created, err := r.resolver.Resolve(ctx, user)
	if err != nil {
		return err
	}
	switch {
	case created:
		r.announce(ctx, topicID, texts.UserStartedBot, user)
	case user.State == models.StateStopped:
		r.announce(ctx, topicID, texts.UserRestartedBot, user)
		if err := r.users.MarkState(ctx, user.ID, models.StateRestarted); err != nil {
			logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to mark user restarted")
		}
	}
	return nil
}

// AnnounceStopped posts the stopped notice when the transport reports the
// user blocked or deleted the bot. No topic is created for a leaving user.
func (r *Router) AnnounceStopped(ctx context.Context, user *models.User) {
	if user.TopicID == 0 {
		return
	}
	r.announce(ctx, user.TopicID, texts.UserStoppedBot, user)
}

func (r *Router) announce(ctx context.Context, topicID int, templateID string, user *models.User) {
	text := texts.Render(templateID, texts.DefaultLanguage, map[string]string{
		"name": user.FullName,
		"id":   strconv.FormatInt(user.ID, 10),
	})
	r.notifyTopic(ctx, topicID, text)
}

// notifyTopic posts a status note into the topic, retrying network-level
// failures a bounded number of times. A lost note never fails the relay.
func (r *Router) notifyTopic(ctx context.Context, topicID int, text string) {
	var err error
	for attempt := 0; attempt < noticeRetries; attempt++ {
		_, err = r.transport.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:          r.groupID,
			MessageThreadID: topicID,
			Text:            text,
		})
		if err == nil {
			return
		}
		if _, isAPIErr := err.(*telegram.APIError); isAPIErr {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryBackoff):
		}
	}
	logger.Error().Err(err).Int("topic_id", topicID).Msg("failed to post topic notice")
}
