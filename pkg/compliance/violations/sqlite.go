package violations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/sentinel/pkg/compliance"
)

// SQLiteConfig contains configuration for the SQLite violation store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/violations.db",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore implements Store on SQLite. The full violation is kept as
// JSON next to indexed columns used for filtering.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, &StorageError{Operation: "open", Cause: err}
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "violations.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite violation store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return &StorageError{Operation: "enable_wal", Cause: err}
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return &StorageError{Operation: "set_busy_timeout", Cause: err}
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return &StorageError{Operation: "create_schema", Cause: err}
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return &StorageError{Operation: "insert_schema_version", Cause: err}
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return &StorageError{Operation: "get_schema_version", Cause: err}
	}
	if version != SchemaVersion {
		return &StorageError{Operation: "schema_version_mismatch",
			Cause: fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version)}
	}
	return nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, v *compliance.Violation) error {
	if v == nil || v.ID == "" {
		return fmt.Errorf("violation id cannot be empty")
	}
	body, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Operation: "encode", ID: v.ID, Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, upsertViolation,
		v.ID, v.RuleID, string(v.Type), string(v.Severity), v.Data.TenantID,
		v.Timestamp.UnixNano(), v.Resolved, string(body),
	)
	if err != nil {
		return &StorageError{Operation: "save", ID: v.ID, Cause: err}
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*compliance.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM violations WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, compliance.ErrViolationNotFound
	}
	if err != nil {
		return nil, &StorageError{Operation: "get", ID: id, Cause: err}
	}
	return decodeViolation(body)
}

// Resolve implements Store.
func (s *SQLiteStore) Resolve(ctx context.Context, id, resolvedBy, notes string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, &StorageError{Operation: "resolve", ID: id, Cause: err}
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx, `SELECT body FROM violations WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Operation: "resolve", ID: id, Cause: err}
	}

	v, err := decodeViolation(body)
	if err != nil {
		return false, err
	}
	v.Resolve(resolvedBy, notes, at)

	updated, err := json.Marshal(v)
	if err != nil {
		return false, &StorageError{Operation: "encode", ID: id, Cause: err}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE violations SET resolved = 1, body = ? WHERE id = ?`, string(updated), id); err != nil {
		return false, &StorageError{Operation: "resolve", ID: id, Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return false, &StorageError{Operation: "resolve", ID: id, Cause: err}
	}
	return true, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, filter *Filter) ([]*compliance.Violation, error) {
	where, args := buildWhereClause(filter)

	query := "SELECT body FROM violations"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY timestamp ASC, rowid ASC"
	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	} else if filter != nil && filter.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", filter.Offset)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Operation: "list", Cause: err}
	}
	defer rows.Close()

	out := []*compliance.Violation{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, &StorageError{Operation: "scan", Cause: err}
		}
		v, err := decodeViolation(body)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Operation: "list", Cause: err}
	}
	return out, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context, filter *Filter) (int64, error) {
	where, args := buildWhereClause(filter)
	query := "SELECT COUNT(*) FROM violations"
	if where != "" {
		query += " WHERE " + where
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &StorageError{Operation: "count", Cause: err}
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func buildWhereClause(filter *Filter) (string, []any) {
	if filter == nil {
		return "", nil
	}
	var conditions []string
	var args []any

	if filter.RuleID != "" {
		conditions = append(conditions, "rule_id = ?")
		args = append(args, filter.RuleID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.TenantID != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.Resolved != nil {
		conditions = append(conditions, "resolved = ?")
		args = append(args, *filter.Resolved)
	}
	if filter.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartTime.UnixNano())
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.EndTime.UnixNano())
	}

	return strings.Join(conditions, " AND "), args
}

func decodeViolation(body string) (*compliance.Violation, error) {
	var v compliance.Violation
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, &StorageError{Operation: "decode", Cause: err}
	}
	return &v, nil
}

// StorageError wraps a SQLite failure.
type StorageError struct {
	Operation string
	ID        string
	Cause     error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("violation store %s %s: %v", e.Operation, e.ID, e.Cause)
	}
	return fmt.Sprintf("violation store %s: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
