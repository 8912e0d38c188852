package chat

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// Field names a mutable attribute of a User.
type Field string

// Mutable user fields.
const (
	FieldBalance            Field = "balance"
	FieldModelTokens        Field = "n_used_tokens"
	FieldTranscribedSeconds Field = "n_transcribed_seconds"
	FieldGeneratedImages    Field = "n_generated_images"
	FieldImageSpend         Field = "image_spend"
	FieldTotalSpent         Field = "total_spent"
	FieldCurrentModel       Field = "current_model"
	FieldChatMode           Field = "current_chat_mode"
	FieldCurrentDialog      Field = "current_dialog_id"
	FieldRole               Field = "role"
	FieldLastInteraction    Field = "last_interaction"
)

var (
	// ErrUnknownField is returned by Set for a field name it does not know.
	ErrUnknownField = errors.New("chat: unknown user field")

	// ErrFieldType is returned by Set when the value has the wrong type.
	ErrFieldType = errors.New("chat: wrong value type for user field")
)

// Set assigns value to field. Map values are copied.
func (u *User) Set(field Field, value any) error {
	var ok bool
	switch field {
	case FieldBalance:
		u.Balance, ok = value.(Money)
	case FieldTotalSpent:
		u.TotalSpent, ok = value.(Money)
	case FieldModelTokens:
		var m map[string]TokenCounter
		if m, ok = value.(map[string]TokenCounter); ok {
			u.ModelTokens = maps.Clone(m)
		}
	case FieldImageSpend:
		var m map[string]ImageCounter
		if m, ok = value.(map[string]ImageCounter); ok {
			u.ImageSpend = maps.Clone(m)
		}
	case FieldTranscribedSeconds:
		u.TranscribedSeconds, ok = value.(float64)
	case FieldGeneratedImages:
		u.GeneratedImages, ok = value.(int)
	case FieldCurrentModel:
		u.CurrentModel, ok = value.(string)
	case FieldChatMode:
		u.ChatMode, ok = value.(string)
	case FieldCurrentDialog:
		u.CurrentDialogID, ok = value.(string)
	case FieldRole:
		u.Role, ok = value.(Role)
	case FieldLastInteraction:
		u.LastInteraction, ok = value.(time.Time)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if !ok {
		return fmt.Errorf("%w: %s got %T", ErrFieldType, field, value)
	}
	return nil
}
