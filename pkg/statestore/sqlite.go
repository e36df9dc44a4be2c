package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteConfig configures the SQLite state store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CleanupInterval is how often expired entries are purged.
	// Zero disables the background cleanup loop.
	CleanupInterval time.Duration
}

// SQLiteStore persists state in a SQLite database. Non-persistent values
// are written too, but are deleted on open.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
	now       func() time.Time

	setStmt     *sql.Stmt
	getStmt     *sql.Stmt
	deleteStmt  *sql.Stmt
	keysStmt    *sql.Stmt
	cleanupStmt *sql.Stmt
}

// NewSQLiteStore opens (or creates) a SQLite state store.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newError("sqlite", "open", "", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "statestore.sqlite"),
		now:    time.Now,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, newError("sqlite", "create_schema", "", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, newError("sqlite", "prepare", "", err)
	}
	if _, err := db.Exec(`DELETE FROM state WHERE persistent = 0`); err != nil {
		db.Close()
		return nil, newError("sqlite", "purge_transient", "", err)
	}

	if cfg.CleanupInterval > 0 {
		go s.cleanupLoop(cfg.CleanupInterval)
	}

	s.logger.Info("SQLite state store initialized", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		persistent INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_state_expires_at ON state(expires_at);
	`)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.setStmt, err = s.db.Prepare(`
		INSERT INTO state (key, value, persistent, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			persistent = excluded.persistent,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare set statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT value FROM state
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM state WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.keysStmt, err = s.db.Prepare(`
		SELECT key FROM state
		WHERE substr(key, 1, ?) = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare keys statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM state
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// SetState implements Store.
func (s *SQLiteStore) SetState(ctx context.Context, key string, value any, meta Metadata) error {
	if key == "" {
		return newError("sqlite", "set", key, fmt.Errorf("key cannot be empty"))
	}
	data, err := json.Marshal(value)
	if err != nil {
		return newError("sqlite", "encode", key, err)
	}

	now := s.now()
	var expiresAt sql.NullInt64
	if meta.TTL > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(meta.TTL).UnixMilli(), Valid: true}
	}
	persistent := 0
	if meta.Persistent {
		persistent = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.setStmt.ExecContext(ctx, key, string(data), persistent, expiresAt, now.UnixMilli()); err != nil {
		return newError("sqlite", "set", key, err)
	}
	return nil
}

// GetState implements Store.
func (s *SQLiteStore) GetState(ctx context.Context, key string, dest any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.getStmt.QueryRowContext(ctx, key, s.now().UnixMilli()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return newError("sqlite", "get", key, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return newError("sqlite", "decode", key, err)
	}
	return nil
}

// DeleteState implements Store.
func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deleteStmt.ExecContext(ctx, key); err != nil {
		return newError("sqlite", "delete", key, err)
	}
	return nil
}

// Keys implements Store.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.keysStmt.QueryContext(ctx, utf8.RuneCountInString(prefix), prefix, s.now().UnixMilli())
	if err != nil {
		return nil, newError("sqlite", "keys", prefix, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, newError("sqlite", "keys", prefix, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, newError("sqlite", "keys", prefix, err)
	}
	return keys, nil
}

// Cleanup removes expired entries and returns how many were removed.
func (s *SQLiteStore) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.cleanupStmt.ExecContext(ctx, s.now().UnixMilli())
	if err != nil {
		return 0, newError("sqlite", "cleanup", "", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, newError("sqlite", "cleanup", "", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.Cleanup(context.Background())
			if err != nil {
				s.logger.Error("state cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("expired state removed", "count", n)
			}
		case <-s.done:
			return
		}
	}
}

// Ping implements Pinger.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		defer s.mu.Unlock()

		for _, stmt := range []*sql.Stmt{s.setStmt, s.getStmt, s.deleteStmt, s.keysStmt, s.cleanupStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
