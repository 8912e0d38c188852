package chat

import (
	"maps"
	"time"
)

// Role controls admission rules and error visibility.
type Role string

// Known roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// TokenCounter accumulates completion tokens for one model.
type TokenCounter struct {
	Input  int `json:"n_input_tokens"`
	Output int `json:"n_output_tokens"`
}

// ImageCounter accumulates generated images and their cost for one image model.
type ImageCounter struct {
	Images int   `json:"n_images"`
	Cost   Money `json:"cost"`
}

// User is the billing and preference record of one end user.
type User struct {
	ID                 int64                   `json:"id"`
	Username           string                  `json:"username,omitempty"`
	CurrentModel       string                  `json:"current_model"`
	ChatMode           string                  `json:"current_chat_mode"`
	CurrentDialogID    string                  `json:"current_dialog_id,omitempty"`
	Balance            Money                   `json:"balance"`
	ModelTokens        map[string]TokenCounter `json:"n_used_tokens"`
	TranscribedSeconds float64                 `json:"n_transcribed_seconds"`
	GeneratedImages    int                     `json:"n_generated_images"`
	ImageSpend         map[string]ImageCounter `json:"image_spend"`
	TotalSpent         Money                   `json:"total_spent"`
	Role               Role                    `json:"role"`
	FirstSeen          time.Time               `json:"first_seen"`
	LastInteraction    time.Time               `json:"last_interaction"`
}

// IsAdmin reports whether the user bypasses balance checks and sees raw errors.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Clone returns a deep copy of u so callers can mutate maps freely.
func (u User) Clone() User {
	u.ModelTokens = maps.Clone(u.ModelTokens)
	u.ImageSpend = maps.Clone(u.ImageSpend)
	return u
}
