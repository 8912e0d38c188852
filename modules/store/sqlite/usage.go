package sqlite

import (
	"context"
	"fmt"

	"github.com/flemzord/meterbot/internal/store"
	"github.com/flemzord/meterbot/pkg/chat"
)

// RecordUsage implements store.UsageLog.
func (s *Store) RecordUsage(ctx context.Context, rec store.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events
			(request_id, user_id, kind, model, input_tokens, output_tokens, images, seconds, cost, balance_after, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.UserID, rec.Kind, rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.Images, rec.Seconds,
		int64(rec.Cost), int64(rec.Balance), formatTime(rec.At),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record usage: %w", err)
	}
	return nil
}

// RecentUsage implements store.UsageLog. A limit <= 0 returns every record.
func (s *Store) RecentUsage(ctx context.Context, userID int64, limit int) ([]store.UsageRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, user_id, kind, model, input_tokens, output_tokens, images, seconds, cost, balance_after, at
		FROM usage_events
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.UsageRecord
	for rows.Next() {
		var (
			rec           store.UsageRecord
			cost, balance int64
			at            string
		)
		if err := rows.Scan(&rec.RequestID, &rec.UserID, &rec.Kind, &rec.Model,
			&rec.InputTokens, &rec.OutputTokens, &rec.Images, &rec.Seconds,
			&cost, &balance, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan usage: %w", err)
		}
		rec.Cost = chat.Money(cost)
		rec.Balance = chat.Money(balance)
		if rec.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: recent usage rows: %w", err)
	}
	return out, nil
}
