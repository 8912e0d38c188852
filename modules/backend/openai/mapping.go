package openai

import (
	"encoding/base64"

	"github.com/flemzord/meterbot/internal/generation"
	"github.com/flemzord/meterbot/pkg/chat"
)

// --- OpenAI API request/response types (unexported, serialization only) ---

type chatRequest struct {
	Model         string        `json:"model"`
	Messages      []chatMessage `json:"messages"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Temperature   *float64      `json:"temperature,omitempty"`
	Stream        bool          `json:"stream"`
	StreamOptions *streamOpts   `json:"stream_options,omitempty"`
}

type streamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

// chatMessage.Content is a string, or a []contentPart for messages with an
// image.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// --- Streaming types ---

type chatStreamChunk struct {
	Choices []chatStreamChoice `json:"choices"`
	Usage   *chatUsage         `json:"usage,omitempty"`
}

type chatStreamChoice struct {
	Delta        chatStreamDelta `json:"delta"`
	FinishReason *string         `json:"finish_reason"`
}

type chatStreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// --- Converter functions ---

// toMessages builds the conversation sent upstream: the chat mode prompt,
// the history turns as user/assistant pairs, then the new input.
func toMessages(prompt string, req generation.Request) []chatMessage {
	out := make([]chatMessage, 0, 2*len(req.History)+2)
	out = append(out, chatMessage{Role: "system", Content: prompt})
	for _, t := range req.History {
		out = append(out,
			chatMessage{Role: "user", Content: toContent(t.User)},
			chatMessage{Role: "assistant", Content: t.Bot},
		)
	}
	return append(out, chatMessage{Role: "user", Content: toContent(req.Input)})
}

func toContent(c chat.Content) any {
	if c.Image == nil {
		return c.Text
	}
	parts := make([]contentPart, 0, 2)
	if c.Text != "" {
		parts = append(parts, contentPart{Type: "text", Text: c.Text})
	}
	return append(parts, contentPart{
		Type:     "image_url",
		ImageURL: &imageURL{URL: dataURL(c.Image)},
	})
}

func dataURL(img *chat.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func fromUsage(u *chatUsage) generation.Usage {
	return generation.Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
}
