// Package sqlite is a persistent store.Store and store.UsageLog backed by
// SQLite through modernc.org/sqlite (pure Go, no CGO).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/meterbot/internal/store"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Compile-time interface guards.
var (
	_ store.Store    = (*Store)(nil)
	_ store.UsageLog = (*Store)(nil)
)

// Store persists users, dialogs and usage events in one database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the database described by cfg and migrates its
// schema. The pool is limited to one connection since SQLite serialises
// writes; read-modify-write operations run in a transaction.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	version, err := migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite: store opened",
		"path", cfg.Path,
		"wal", cfg.walEnabled(),
		"schema_version", version,
	)
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
