// Package channel defines the display contract used to show a request's
// progress to the end user: a placeholder message that is edited in place
// as the answer grows, plus free-standing notices.
package channel

import (
	"context"
	"time"

	"github.com/flemzord/meterbot/pkg/chat"
)

// ParseMode selects the markup interpretation of a message text.
type ParseMode string

// Supported parse modes. ParseModeNone sends plain text.
const (
	ParseModeNone     ParseMode = ""
	ParseModeHTML     ParseMode = "HTML"
	ParseModeMarkdown ParseMode = "Markdown"
)

// Handle addresses a message previously sent through a Transport.
type Handle struct {
	UserID    int64
	ChatID    int64
	MessageID int64
}

// Inbound is one message received from a user.
type Inbound struct {
	UserID   int64
	ChatID   int64
	Username string
	Text     string
	Image    *chat.Image
}

// Content returns the text and image of the message as dialog content.
func (m Inbound) Content() chat.Content {
	return chat.Content{Text: m.Text, Image: m.Image}
}

// Handler processes inbound messages.
type Handler func(ctx context.Context, msg Inbound)

// Transport delivers messages to users and edits them in place.
type Transport interface {
	// Send posts a new message to the user and returns its handle.
	Send(ctx context.Context, userID int64, text string, mode ParseMode) (Handle, error)

	// Edit replaces the text of a sent message. Implementations return
	// ErrNotModified when the platform reports the text is unchanged.
	Edit(ctx context.Context, h Handle, text string, mode ParseMode) error
}

// Typer is implemented by transports that can show a typing indicator.
type Typer interface {
	SendTyping(ctx context.Context, userID int64) error
}

// StartTypingLoop sends a typing indicator immediately and then at the given
// interval until ctx is cancelled.
func StartTypingLoop(ctx context.Context, t Typer, userID int64, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		_ = t.SendTyping(ctx, userID)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = t.SendTyping(ctx, userID)
			}
		}
	}()
}
