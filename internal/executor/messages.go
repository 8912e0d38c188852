package executor

import (
	"errors"
	"fmt"

	ctxengine "github.com/flemzord/meterbot/internal/context"
	"github.com/flemzord/meterbot/internal/generation"
)

// User-facing texts.
const (
	msgBusy         = "⏳ Please wait for a reply to the previous message\nOr you can /cancel it"
	msgBalance      = "Oops, your balance is too low :( Please top up to continue."
	msgEmpty        = "🥲 You sent an empty message. Please, try again!"
	msgUnknownModel = "This model is not available."
	msgUnknownMode  = "This chat mode is not available."
	msgNoRetry      = "No message to retry 🤷‍♂️"
	msgNothing      = "Nothing to cancel..."
	msgCancelled    = "✅ Canceled"
	msgStopped      = "The bot is shutting down, please try again in a moment."
	msgOverflow     = "Your message is too long for this model. Please shorten it or switch to a model with a larger context."
	msgRateLimited  = "The model is overloaded right now. Please try again in a moment."
	msgFailed       = "Something went wrong. Please try again later."
	msgEmptyAnswer  = "🥲 The model returned an empty answer. Please try again."
)

// UserMessage returns the text shown to a user for an executor error.
// Internal error details are only included for admins.
func UserMessage(err error, admin bool) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return msgBusy
	case errors.Is(err, ErrInsufficientBalance):
		return msgBalance
	case errors.Is(err, ErrEmptyInput):
		return msgEmpty
	case errors.Is(err, ErrUnknownModel):
		return msgUnknownModel
	case errors.Is(err, ErrUnknownChatMode):
		return msgUnknownMode
	case errors.Is(err, ErrNothingToRetry):
		return msgNoRetry
	case errors.Is(err, ErrCancelledByUser):
		return msgCancelled
	case errors.Is(err, ErrStopped):
		return msgStopped
	case admin:
		return fmt.Sprintf("Something went wrong during completion. Reason: %v", err)
	case errors.Is(err, ctxengine.ErrContextOverflow):
		return msgOverflow
	case generation.IsRetryable(err):
		return msgRateLimited
	default:
		return msgFailed
	}
}

// droppedNotice tells the user how many old turns were left out.
func droppedNotice(n int) string {
	if n == 1 {
		return "✍️ <i>Note:</i> Your current dialog is too long, so your <b>first message</b> was removed from the context.\n Send /new command to start new dialog"
	}
	return fmt.Sprintf("✍️ <i>Note:</i> Your current dialog is too long, so <b>%d first messages</b> were removed from the context.\n Send /new command to start new dialog", n)
}

func idleNotice(chatMode string) string {
	return fmt.Sprintf("Starting new dialog due to timeout (<b>%s</b> mode) ✅", chatMode)
}
