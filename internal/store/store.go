// Package store defines the persistence contract for users, dialogs and
// usage events, with an in-memory implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/flemzord/meterbot/pkg/chat"
)

// Sentinel errors for store operations.
var (
	// ErrUserNotFound indicates no user exists with the given ID.
	ErrUserNotFound = errors.New("store: user not found")

	// ErrDialogNotFound indicates the user has no current dialog.
	ErrDialogNotFound = errors.New("store: dialog not found")

	// ErrEmptyDialog indicates PopTurn was called on a dialog without turns.
	ErrEmptyDialog = errors.New("store: dialog has no turns")
)

// Store persists users and their dialogs. Implementations must be safe for
// concurrent use. Returned values are copies.
type Store interface {
	// EnsureUser returns the user with tmpl.ID, creating it from tmpl
	// together with a first empty dialog when it does not exist.
	EnsureUser(ctx context.Context, tmpl chat.User) (chat.User, error)
	GetUser(ctx context.Context, userID int64) (chat.User, error)
	SetUserField(ctx context.Context, userID int64, field chat.Field, value any) error

	// CurrentDialog returns the user's current dialog.
	CurrentDialog(ctx context.Context, userID int64) (chat.Dialog, error)
	// StartNewDialog makes a new empty dialog current. The previous dialog
	// is kept unchanged.
	StartNewDialog(ctx context.Context, userID int64) (chat.Dialog, error)
	// AppendTurn adds turn to the current dialog.
	AppendTurn(ctx context.Context, userID int64, turn chat.Turn) error
	// PopTurn removes and returns the last turn of the current dialog.
	PopTurn(ctx context.Context, userID int64) (chat.Turn, error)
}

// UsageRecord is one persisted charge.
type UsageRecord struct {
	RequestID    string     `json:"request_id"`
	UserID       int64      `json:"user_id"`
	Kind         string     `json:"kind"`
	Model        string     `json:"model"`
	InputTokens  int        `json:"input_tokens,omitempty"`
	OutputTokens int        `json:"output_tokens,omitempty"`
	Images       int        `json:"images,omitempty"`
	Seconds      float64    `json:"seconds,omitempty"`
	Cost         chat.Money `json:"cost"`
	Balance      chat.Money `json:"balance_after"`
	At           time.Time  `json:"at"`
}

// UsageLog is implemented by stores that keep an audit trail of charges.
type UsageLog interface {
	RecordUsage(ctx context.Context, rec UsageRecord) error
	// RecentUsage returns up to limit records for userID, newest first.
	RecentUsage(ctx context.Context, userID int64, limit int) ([]UsageRecord, error)
}
