package service

import (
	"context"
	"sort"
	"strings"

	apperrors "support-relay-bot/internal/common/errors"
	"support-relay-bot/internal/features/user/models"
	userservice "support-relay-bot/internal/features/user/service"
	"support-relay-bot/internal/platform/telegram"
	"support-relay-bot/internal/texts"
)

const languageCallbackPrefix = "lang:"

// Transport is the slice of the messaging API the onboarding flow uses.
type Transport interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// Service runs the language selection flow gating first contact. The flow is
// linear and re-entrant: /language re-enters it, repeated /start after
// completion just re-shows the main menu.
type Service struct {
	transport Transport
	users     *userservice.Service
}

func NewService(transport Transport, users *userservice.Service) *Service {
	return &Service{transport: transport, users: users}
}

// ShowLanguageSelect prompts a user without a language for their choice.
func (s *Service) ShowLanguageSelect(ctx context.Context, user *models.User) error {
	return s.showPicker(ctx, user, texts.SelectLanguage)
}

// ShowChangeLanguage prompts a user who already has a language set.
func (s *Service) ShowChangeLanguage(ctx context.Context, user *models.User) error {
	return s.showPicker(ctx, user, texts.ChangeLanguage)
}

// ShowMainMenu shows the localized main-menu prompt.
func (s *Service) ShowMainMenu(ctx context.Context, user *models.User) error {
	_, err := s.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: user.ID,
		Text:   texts.Render(texts.MainMenu, user.LanguageCode, nil),
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "show main menu").WithUserID(user.ID)
	}
	return nil
}

// HandleLanguageCommand re-enters the flow for /language.
func (s *Service) HandleLanguageCommand(ctx context.Context, user *models.User) error {
	if user.LanguageCode != "" {
		return s.ShowChangeLanguage(ctx, user)
	}
	return s.ShowLanguageSelect(ctx, user)
}

// HandleCallback processes a language pick. It reports the updated record
// and whether this pick completed first contact (no language was set before).
// Unrelated callbacks return (nil, false, nil).
func (s *Service) HandleCallback(ctx context.Context, cb *telegram.CallbackQuery) (*models.User, bool, error) {
	code, ok := strings.CutPrefix(cb.Data, languageCallbackPrefix)
	if !ok {
		return nil, false, nil
	}
	if _, supported := texts.SupportedLanguages[code]; !supported {
		return nil, false, nil
	}

	user, err := s.users.GetOrCreate(ctx, cb.From.ID, cb.From.FullName(), cb.From.Username)
	if err != nil {
		return nil, false, err
	}
	firstContact := user.LanguageCode == ""

	if err := s.users.SetLanguage(ctx, user.ID, code); err != nil {
		return nil, false, err
	}
	user.LanguageCode = code

	if err := s.transport.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.ErrCodeTransport, "answer callback").WithUserID(user.ID)
	}

	// Replace the picker with the main menu in place.
	if cb.Message != nil {
		menu := texts.Render(texts.MainMenu, code, nil)
		if err := s.transport.EditMessageText(ctx, user.ID, cb.Message.MessageID, menu); err != nil && !telegram.IsNotFound(err) {
			return nil, false, apperrors.Wrap(err, apperrors.ErrCodeTransport, "show main menu").WithUserID(user.ID)
		}
	}
	return user, firstContact, nil
}

func (s *Service) showPicker(ctx context.Context, user *models.User, templateID string) error {
	_, err := s.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: user.ID,
		Text: texts.Render(templateID, user.LanguageCode, map[string]string{
			"full_name": user.FullName,
		}),
		ReplyMarkup: languageKeyboard(),
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "show language picker").WithUserID(user.ID)
	}
	return nil
}

func languageKeyboard() *telegram.InlineKeyboardMarkup {
	codes := make([]string, 0, len(texts.SupportedLanguages))
	for code := range texts.SupportedLanguages {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([][]telegram.InlineKeyboardButton, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         texts.SupportedLanguages[code],
			CallbackData: languageCallbackPrefix + code,
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}
