// Package texts holds the localized message templates. Rendering is a pure
// lookup + placeholder substitution; there is exactly one text set, so no
// abstraction beyond the static table is needed.
package texts

import "strings"

// DefaultLanguage is used when a user's language is unknown or unsupported.
const DefaultLanguage = "en"

// SupportedLanguages maps language codes to their display labels.
var SupportedLanguages = map[string]string{
	"en": "🇬🇧 English",
	"ru": "🇷🇺 Русский",
}

// Template identifiers.
const (
	SelectLanguage     = "select_language"
	ChangeLanguage     = "change_language"
	MainMenu           = "main_menu"
	MessageSent        = "message_sent"
	MessageEdited      = "message_edited"
	UserStartedBot     = "user_started_bot"
	UserRestartedBot   = "user_restarted_bot"
	UserStoppedBot     = "user_stopped_bot"
	UserBlocked        = "user_blocked"
	UserUnblocked      = "user_unblocked"
	BlockedByUser      = "blocked_by_user"
	UserInformation    = "user_information"
	MessageNotSent     = "message_not_sent"
	MessageSentToUser  = "message_sent_to_user"
	SilentModeEnabled  = "silent_mode_enabled"
	SilentModeDisabled = "silent_mode_disabled"
	AskTargetUserID    = "ask_target_user_id"
)

// Render returns the template id in the given language with {placeholder}
// occurrences replaced from params. Unknown languages fall back to English.
func Render(id, languageCode string, params map[string]string) string {
	if _, ok := SupportedLanguages[languageCode]; !ok {
		languageCode = DefaultLanguage
	}
	table, ok := templates[languageCode]
	if !ok {
		table = templates[DefaultLanguage]
	}
	text := table[id]
	for key, value := range params {
		text = strings.ReplaceAll(text, "{"+key+"}", value)
	}
	return text
}

var templates = map[string]map[string]string{
	"en": {
		SelectLanguage: "👋 <b>Welcome</b>, <b>{full_name}</b>!\n\n" +
			"This is the official support bot.\n" +
			"Please select your language below:",
		ChangeLanguage: "<b>Change language:</b>",
		MainMenu: "<b>Type your question</b>, " +
			"and our support team will get back to you shortly:",
		MessageSent: "<b>Your message has been sent!</b> Our support team will reply soon.",
		MessageEdited: "<b>Your message was edited only in your chat.</b> " +
			"To resend the updated text, please send it as a new message.",
		UserStartedBot: "A user <b>{name}</b> has started the Support Bot!\n\n" +
			"Available commands for admins:\n\n" +
			"• /ban\n" +
			"  Block or unblock a user.\n" +
			"<blockquote>Use this to prevent unwanted messages.</blockquote>\n\n" +
			"• /silent\n" +
			"  Toggle silent mode.\n" +
			"<blockquote>When enabled, the user will not receive any messages.</blockquote>\n\n" +
			"• /information\n" +
			"  Show user information.\n" +
			"<blockquote>Retrieve basic details about a user.</blockquote>",
		UserRestartedBot: "A user <b>{name}</b> has restarted the Support Bot!",
		UserStoppedBot:   "A user <b>{name}</b> has stopped the Support Bot!",
		UserBlocked:      "<b>User blocked!</b> Messages from this user will not be processed.",
		UserUnblocked:    "<b>User unblocked!</b> Messages from this user will be processed again.",
		BlockedByUser:    "<b>Cannot send message!</b> The user has blocked the bot.",
		UserInformation: "<b>User Information:</b>\n" +
			"- <b>ID:</b> <code>{id}</code>\n" +
			"- <b>Name:</b> {full_name}\n" +
			"- <b>Status:</b> {state}\n" +
			"- <b>Username:</b> @{username}\n" +
			"- <b>Banned:</b> {is_banned}\n" +
			"- <b>Silent:</b> {is_silent}\n" +
			"- <b>Registered At:</b> {created_at}",
		MessageNotSent:    "<b>Unable to send message!</b> An unexpected error occurred.",
		MessageSentToUser: "<b>Your message was delivered to the user!</b>",
		SilentModeEnabled: "<b>Silent mode enabled!</b> " +
			"The user will not receive messages until silent mode is disabled.",
		SilentModeDisabled: "<b>Silent mode disabled!</b> " +
			"The user will receive all incoming messages.",
		AskTargetUserID: "<b>Send the target user id</b> to apply /{command} to.",
	},
	"ru": {
		SelectLanguage: "👋 <b>Добро пожаловать</b>, <b>{full_name}</b>!\n\n" +
			"Это официальный бот поддержки.\n" +
			"Пожалуйста, выберите язык ниже:",
		ChangeLanguage: "<b>Сменить язык:</b>",
		MainMenu: "<b>Задайте свой вопрос</b>, " +
			"и наша служба поддержки ответит вам в ближайшее время:",
		MessageSent: "<b>Ваше сообщение отправлено!</b> Ожидайте ответа поддержки.",
		MessageEdited: "<b>Ваше сообщение было отредактировано только в вашем чате.</b> " +
			"Чтобы отправить обновлённый текст, отправьте его как новое сообщение.",
		UserStartedBot: "Пользователь <b>{name}</b> запустил(а) бот поддержки!\n\n" +
			"Доступные команды для администраторов:\n\n" +
			"• /ban\n" +
			"  Заблокировать или разблокировать пользователя.\n" +
			"<blockquote>Используйте, чтобы остановить нежелательные сообщения.</blockquote>\n\n" +
			"• /silent\n" +
			"  Включить/выключить тихий режим.\n" +
			"<blockquote>При включении пользователь не будет получать сообщения.</blockquote>\n\n" +
			"• /information\n" +
			"  Показать информацию о пользователе.\n" +
			"<blockquote>Получить основные данные о пользователе.</blockquote>",
		UserRestartedBot: "Пользователь <b>{name}</b> перезапустил(а) бот поддержки!",
		UserStoppedBot:   "Пользователь <b>{name}</b> остановил(а) бот поддержки!",
		UserBlocked:      "<b>Пользователь заблокирован!</b> Сообщения от этого пользователя не будут обрабатываться.",
		UserUnblocked:    "<b>Пользователь разблокирован!</b> Сообщения от этого пользователя снова обрабатываются.",
		BlockedByUser:    "<b>Не удалось отправить сообщение!</b> Пользователь заблокировал бота.",
		UserInformation: "<b>Информация о пользователе:</b>\n" +
			"- <b>ID:</b> <code>{id}</code>\n" +
			"- <b>Имя:</b> {full_name}\n" +
			"- <b>Статус:</b> {state}\n" +
			"- <b>Username:</b> @{username}\n" +
			"- <b>Заблокирован:</b> {is_banned}\n" +
			"- <b>Тихий режим:</b> {is_silent}\n" +
			"- <b>Зарегистрирован:</b> {created_at}",
		MessageNotSent:    "<b>Не удалось отправить сообщение!</b> Произошла непредвиденная ошибка.",
		MessageSentToUser: "<b>Сообщение успешно доставлено пользователю!</b>",
		SilentModeEnabled: "<b>Тихий режим включён!</b> " +
			"Пользователь не будет получать сообщения до отключения тихого режима.",
		SilentModeDisabled: "<b>Тихий режим выключен!</b> " +
			"Пользователь снова будет получать все входящие сообщения.",
		AskTargetUserID: "<b>Отправьте id пользователя</b>, к которому применить /{command}.",
	},
}
