package chat

import (
	"strings"
	"time"
)

// Image is an inline picture attached to a user message.
type Image struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Content is what the user sent in one turn.
type Content struct {
	Text  string `json:"text"`
	Image *Image `json:"image,omitempty"`
}

// Text is a shorthand for text-only content.
func Text(s string) Content {
	return Content{Text: s}
}

// IsEmpty reports whether the content carries neither text nor an image.
func (c Content) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == "" && c.Image == nil
}

// Turn is one user message and the assistant reply it produced.
type Turn struct {
	User      Content   `json:"user"`
	Bot       string    `json:"bot"`
	Timestamp time.Time `json:"date"`
}

// Dialog is an ordered sequence of turns. Only the current dialog of a user
// is ever appended to.
type Dialog struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	ChatMode  string    `json:"chat_mode"`
	Model     string    `json:"model"`
	StartedAt time.Time `json:"start_time"`
	Turns     []Turn    `json:"messages"`
}
