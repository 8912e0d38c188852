package telegram

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/flemzord/meterbot/internal/channel"
)

// maxMessageLength is the Telegram hard limit on message text, in UTF-16
// units. Counting bytes keeps us under it.
const maxMessageLength = 4096

// Interface guards.
var (
	_ channel.Transport = (*Transport)(nil)
	_ channel.Typer     = (*Transport)(nil)
)

// Transport implements channel.Transport over the Bot API. Private chats
// share their ID with the user, so messages are addressed by user ID.
type Transport struct {
	client *Client
}

// NewTransport creates a Transport using client.
func NewTransport(client *Client) *Transport {
	return &Transport{client: client}
}

// Send posts a new message.
func (t *Transport) Send(ctx context.Context, userID int64, text string, mode channel.ParseMode) (channel.Handle, error) {
	msg, err := t.client.SendMessage(ctx, SendMessageRequest{
		ChatID:                userID,
		Text:                  truncateUTF8(text, maxMessageLength),
		ParseMode:             string(mode),
		DisableWebPagePreview: true,
	})
	if err != nil {
		return channel.Handle{}, err
	}
	return channel.Handle{UserID: userID, ChatID: msg.Chat.ID, MessageID: int64(msg.MessageID)}, nil
}

// Edit replaces the text of a sent message.
func (t *Transport) Edit(ctx context.Context, h channel.Handle, text string, mode channel.ParseMode) error {
	chatID := h.ChatID
	if chatID == 0 {
		chatID = h.UserID
	}
	_, err := t.client.EditMessageText(ctx, EditMessageTextRequest{
		ChatID:                chatID,
		MessageID:             int(h.MessageID),
		Text:                  truncateUTF8(text, maxMessageLength),
		ParseMode:             string(mode),
		DisableWebPagePreview: true,
	})
	return mapEditError(err)
}

// SendTyping shows the typing indicator.
func (t *Transport) SendTyping(ctx context.Context, userID int64) error {
	return t.client.SendChatAction(ctx, userID, "typing")
}

// mapEditError translates the Bot API's edit-specific 400 answers into
// channel sentinels.
func mapEditError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 400 {
		return err
	}
	switch {
	case strings.Contains(apiErr.Description, "not modified"):
		return channel.ErrNotModified
	case strings.Contains(apiErr.Description, "message to edit not found"):
		return channel.ErrMessageNotFound
	}
	return err
}

// truncateUTF8 truncates s to at most maxBytes bytes without splitting a rune.
func truncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
