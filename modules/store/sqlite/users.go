package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/flemzord/meterbot/internal/store"
	"github.com/flemzord/meterbot/pkg/chat"
)

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EnsureUser implements store.Store.
func (s *Store) EnsureUser(ctx context.Context, tmpl chat.User) (chat.User, error) {
	var out chat.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		u, err := loadUser(ctx, tx, tmpl.ID)
		if err == nil {
			out = u
			return nil
		}
		if !errors.Is(err, store.ErrUserNotFound) {
			return err
		}

		u = tmpl.Clone()
		if u.FirstSeen.IsZero() {
			u.FirstSeen = s.now()
		}
		d, err := s.insertDialog(ctx, tx, u)
		if err != nil {
			return err
		}
		u.CurrentDialogID = d.ID
		if err := saveUser(ctx, tx, u, true); err != nil {
			return err
		}
		s.logger.Debug("sqlite: user created", "user_id", u.ID)
		out = u
		return nil
	})
	return out, err
}

// GetUser implements store.Store.
func (s *Store) GetUser(ctx context.Context, userID int64) (chat.User, error) {
	return loadUser(ctx, s.db, userID)
}

// SetUserField implements store.Store.
func (s *Store) SetUserField(ctx context.Context, userID int64, field chat.Field, value any) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		u, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := u.Set(field, value); err != nil {
			return err
		}
		return saveUser(ctx, tx, u, false)
	})
}

func loadUser(ctx context.Context, q querier, userID int64) (chat.User, error) {
	var doc string
	err := q.QueryRowContext(ctx, "SELECT doc FROM users WHERE id = ?", userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.User{}, fmt.Errorf("%w: %d", store.ErrUserNotFound, userID)
	}
	if err != nil {
		return chat.User{}, fmt.Errorf("sqlite: load user: %w", err)
	}

	var u chat.User
	if err := json.Unmarshal([]byte(doc), &u); err != nil {
		return chat.User{}, fmt.Errorf("sqlite: decode user %d: %w", userID, err)
	}
	return u, nil
}

func saveUser(ctx context.Context, q querier, u chat.User, insert bool) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("sqlite: encode user %d: %w", u.ID, err)
	}
	query := "UPDATE users SET doc = ? WHERE id = ?"
	if insert {
		query = "INSERT INTO users (doc, id) VALUES (?, ?)"
	}
	if _, err := q.ExecContext(ctx, query, string(doc), u.ID); err != nil {
		return fmt.Errorf("sqlite: save user %d: %w", u.ID, err)
	}
	return nil
}

func (s *Store) insertDialog(ctx context.Context, q querier, u chat.User) (chat.Dialog, error) {
	d := chat.Dialog{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		ChatMode:  u.ChatMode,
		Model:     u.CurrentModel,
		StartedAt: s.now().UTC(),
	}
	_, err := q.ExecContext(ctx,
		"INSERT INTO dialogs (id, user_id, chat_mode, model, started_at) VALUES (?, ?, ?, ?, ?)",
		d.ID, d.UserID, d.ChatMode, d.Model, formatTime(d.StartedAt),
	)
	if err != nil {
		return chat.Dialog{}, fmt.Errorf("sqlite: insert dialog: %w", err)
	}
	return d, nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}
