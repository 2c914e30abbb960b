package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiBaseURL = "https://api.telegram.org"

// Client is a Telegram Bot API client covering the methods the relay needs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// APIError is a non-ok response from the Bot API.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: api error %d: %s", e.Code, e.Description)
}

// IsBlockedByUser reports whether err means the target user blocked the bot.
func IsBlockedByUser(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == http.StatusForbidden
}

// IsNotFound reports whether err means the referenced message is gone or
// already matches the requested content. Other 400s (bad markup, bad
// arguments) are real failures and must not be classified here.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Code != http.StatusBadRequest {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	return strings.Contains(desc, "message to edit not found") ||
		strings.Contains(desc, "message to delete not found") ||
		strings.Contains(desc, "message is not modified")
}

func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    apiBaseURL,
		token:      token,
	}
}

// NewClientWithBaseURL is used in tests against a local HTTP server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = baseURL
	return c
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var wrapper struct {
		Ok          bool            `json:"ok"`
		ErrorCode   int             `json:"error_code,omitempty"`
		Description string          `json:"description,omitempty"`
		Result      json.RawMessage `json:"result,omitempty"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return fmt.Errorf("telegram: parse %s response: %w", method, err)
	}
	if !wrapper.Ok {
		return &APIError{Code: wrapper.ErrorCode, Description: wrapper.Description}
	}
	if result != nil {
		if err := json.Unmarshal(wrapper.Result, result); err != nil {
			return fmt.Errorf("telegram: parse %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe validates the token and returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset, timeoutSec int) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": timeoutSec,
		"allowed_updates": []string{
			"message", "edited_message", "callback_query", "my_chat_member",
		},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessageParams covers the sendMessage options the relay uses.
type SendMessageParams struct {
	ChatID          int64                 `json:"chat_id"`
	MessageThreadID int                   `json:"message_thread_id,omitempty"`
	Text            string                `json:"text"`
	ParseMode       string                `json:"parse_mode,omitempty"`
	ReplyMarkup     *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	if params.ParseMode == "" {
		params.ParseMode = "HTML"
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SendSticker(ctx context.Context, chatID int64, sticker string) (*Message, error) {
	payload := map[string]any{"chat_id": chatID, "sticker": sticker}
	var msg Message
	if err := c.call(ctx, "sendSticker", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CopyMessage re-sends a message into another chat without a forward header
// and returns the new message id.
func (c *Client) CopyMessage(ctx context.Context, toChatID int64, threadID int, fromChatID int64, messageID int) (int, error) {
	payload := map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	if threadID != 0 {
		payload["message_thread_id"] = threadID
	}
	var result struct {
		MessageID int `json:"message_id"`
	}
	if err := c.call(ctx, "copyMessage", payload, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	payload := map[string]any{"chat_id": chatID, "message_id": messageID}
	return c.call(ctx, "deleteMessage", payload, nil)
}

// CreateForumTopic opens a new topic in a forum-enabled group.
func (c *Client) CreateForumTopic(ctx context.Context, chatID int64, name, iconCustomEmojiID string) (*ForumTopic, error) {
	payload := map[string]any{"chat_id": chatID, "name": name}
	if iconCustomEmojiID != "" {
		payload["icon_custom_emoji_id"] = iconCustomEmojiID
	}
	var topic ForumTopic
	if err := c.call(ctx, "createForumTopic", payload, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand, scope *BotCommandScope, languageCode string) error {
	payload := map[string]any{"commands": commands}
	if scope != nil {
		payload["scope"] = scope
	}
	if languageCode != "" {
		payload["language_code"] = languageCode
	}
	return c.call(ctx, "setMyCommands", payload, nil)
}

func (c *Client) DeleteMyCommands(ctx context.Context, scope *BotCommandScope) error {
	payload := map[string]any{}
	if scope != nil {
		payload["scope"] = scope
	}
	return c.call(ctx, "deleteMyCommands", payload, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", struct{}{}, nil)
}
