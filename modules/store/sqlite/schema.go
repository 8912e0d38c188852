package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// legacyTokenModel receives token counts stored before per-model tracking.
const legacyTokenModel = "gpt-4-1106-preview"

// migration upgrades the schema by one version inside a transaction.
type migration func(ctx context.Context, tx *sql.Tx) error

// migrations[i] upgrades from version i to i+1.
var migrations = []migration{
	createTables,
	upgradeLegacyTokens,
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id  INTEGER PRIMARY KEY,
		doc TEXT    NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS dialogs (
		id         TEXT    PRIMARY KEY,
		user_id    INTEGER NOT NULL,
		chat_mode  TEXT    NOT NULL DEFAULT '',
		model      TEXT    NOT NULL DEFAULT '',
		started_at TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_dialogs_user ON dialogs(user_id)`,

	`CREATE TABLE IF NOT EXISTS turns (
		dialog_id  TEXT    NOT NULL,
		seq        INTEGER NOT NULL,
		content    TEXT    NOT NULL,
		bot        TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL,
		PRIMARY KEY (dialog_id, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS usage_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id    TEXT    NOT NULL,
		user_id       INTEGER NOT NULL,
		kind          TEXT    NOT NULL,
		model         TEXT    NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		images        INTEGER NOT NULL DEFAULT 0,
		seconds       REAL    NOT NULL DEFAULT 0,
		cost          INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		at            TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_events(user_id, id)`,
}

func createTables(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w\nstatement: %s", err, stmt)
		}
	}
	return nil
}

// upgradeLegacyTokens rewrites user documents whose n_used_tokens is a plain
// number into the per-model map, attributing the count to output tokens.
func upgradeLegacyTokens(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT id, doc FROM users")
	if err != nil {
		return err
	}

	type update struct {
		id  int64
		doc []byte
	}
	var updates []update
	for rows.Next() {
		var (
			id  int64
			doc string
		)
		if err := rows.Scan(&id, &doc); err != nil {
			_ = rows.Close()
			return err
		}
		upgraded, changed, err := upgradeTokenDoc([]byte(doc))
		if err != nil {
			_ = rows.Close()
			return fmt.Errorf("user %d: %w", id, err)
		}
		if changed {
			updates = append(updates, update{id: id, doc: upgraded})
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, "UPDATE users SET doc = ? WHERE id = ?", string(u.doc), u.id); err != nil {
			return err
		}
	}
	return nil
}

func upgradeTokenDoc(doc []byte) ([]byte, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, false, err
	}
	raw, ok := fields["n_used_tokens"]
	if !ok || len(raw) == 0 || bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) || string(raw) == "null" {
		return doc, false, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, false, fmt.Errorf("n_used_tokens: %w", err)
	}
	counters, err := json.Marshal(map[string]map[string]int{
		legacyTokenModel: {"n_input_tokens": 0, "n_output_tokens": int(n)},
	})
	if err != nil {
		return nil, false, err
	}
	fields["n_used_tokens"] = counters

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// migrate applies every pending migration and returns the resulting version.
func migrate(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return 0, fmt.Errorf("sqlite: read schema version: %w", err)
	}

	for v := current; v < len(migrations); v++ {
		if err := applyMigration(ctx, db, v+1, migrations[v]); err != nil {
			return v, err
		}
	}
	return max(current, len(migrations)), nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := m(ctx, tx); err != nil {
		return fmt.Errorf("sqlite: migration %d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return tx.Commit()
}
