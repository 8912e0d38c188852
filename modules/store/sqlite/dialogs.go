package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/meterbot/internal/store"
	"github.com/flemzord/meterbot/pkg/chat"
)

// CurrentDialog implements store.Store.
func (s *Store) CurrentDialog(ctx context.Context, userID int64) (chat.Dialog, error) {
	var d chat.Dialog
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		d, err = currentDialog(ctx, tx, userID)
		if err != nil {
			return err
		}
		d.Turns, err = loadTurns(ctx, tx, d.ID)
		return err
	})
	return d, err
}

// StartNewDialog implements store.Store.
func (s *Store) StartNewDialog(ctx context.Context, userID int64) (chat.Dialog, error) {
	var d chat.Dialog
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		u, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		d, err = s.insertDialog(ctx, tx, u)
		if err != nil {
			return err
		}
		u.CurrentDialogID = d.ID
		return saveUser(ctx, tx, u, false)
	})
	return d, err
}

// AppendTurn implements store.Store.
func (s *Store) AppendTurn(ctx context.Context, userID int64, turn chat.Turn) error {
	content, err := json.Marshal(turn.User)
	if err != nil {
		return fmt.Errorf("sqlite: encode turn: %w", err)
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		d, err := currentDialog(ctx, tx, userID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO turns (dialog_id, seq, content, bot, created_at)
			VALUES (?, COALESCE((SELECT MAX(seq) FROM turns WHERE dialog_id = ?), 0) + 1, ?, ?, ?)`,
			d.ID, d.ID, string(content), turn.Bot, formatTime(turn.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("sqlite: append turn: %w", err)
		}
		return nil
	})
}

// PopTurn implements store.Store.
func (s *Store) PopTurn(ctx context.Context, userID int64) (chat.Turn, error) {
	var turn chat.Turn
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		d, err := currentDialog(ctx, tx, userID)
		if err != nil {
			return err
		}

		var seq int64
		row := tx.QueryRowContext(ctx, `
			SELECT seq, content, bot, created_at FROM turns
			WHERE dialog_id = ? ORDER BY seq DESC LIMIT 1`, d.ID)
		turn, seq, err = scanTurn(row)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrEmptyDialog
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM turns WHERE dialog_id = ? AND seq = ?", d.ID, seq); err != nil {
			return fmt.Errorf("sqlite: pop turn: %w", err)
		}
		return nil
	})
	return turn, err
}

// Dialogs returns every dialog of userID, oldest first, without turns.
func (s *Store) Dialogs(ctx context.Context, userID int64) ([]chat.Dialog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, chat_mode, model, started_at FROM dialogs
		WHERE user_id = ? ORDER BY rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list dialogs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []chat.Dialog
	for rows.Next() {
		d, err := scanDialog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list dialogs rows: %w", err)
	}
	return out, nil
}

func currentDialog(ctx context.Context, q querier, userID int64) (chat.Dialog, error) {
	u, err := loadUser(ctx, q, userID)
	if err != nil {
		return chat.Dialog{}, err
	}
	row := q.QueryRowContext(ctx,
		"SELECT id, user_id, chat_mode, model, started_at FROM dialogs WHERE id = ?", u.CurrentDialogID)
	d, err := scanDialog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Dialog{}, fmt.Errorf("%w: user %d", store.ErrDialogNotFound, userID)
	}
	return d, err
}

func loadTurns(ctx context.Context, q querier, dialogID string) ([]chat.Turn, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT seq, content, bot, created_at FROM turns
		WHERE dialog_id = ? ORDER BY seq ASC`, dialogID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []chat.Turn
	for rows.Next() {
		t, _, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: load turns rows: %w", err)
	}
	return turns, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanDialog(s scanner) (chat.Dialog, error) {
	var (
		d       chat.Dialog
		started string
	)
	if err := s.Scan(&d.ID, &d.UserID, &d.ChatMode, &d.Model, &started); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, err
		}
		return d, fmt.Errorf("sqlite: scan dialog: %w", err)
	}
	t, err := parseTime(started)
	if err != nil {
		return d, err
	}
	d.StartedAt = t
	return d, nil
}

func scanTurn(s scanner) (chat.Turn, int64, error) {
	var (
		t       chat.Turn
		seq     int64
		content string
		created string
	)
	if err := s.Scan(&seq, &content, &t.Bot, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, 0, err
		}
		return t, 0, fmt.Errorf("sqlite: scan turn: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &t.User); err != nil {
		return t, 0, fmt.Errorf("sqlite: decode turn content: %w", err)
	}
	ts, err := parseTime(created)
	if err != nil {
		return t, 0, err
	}
	t.Timestamp = ts
	return t, seq, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}
