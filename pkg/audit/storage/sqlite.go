package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/relay/pkg/audit"
)

const (
	backendSQLite = "sqlite"

	// DriverModernc is the pure Go driver registered by modernc.org/sqlite.
	DriverModernc = "sqlite"

	// DriverCGO is the cgo driver registered by mattn/go-sqlite3. It only
	// works in binaries built with CGO_ENABLED=1.
	DriverCGO = "sqlite3"
)

// timeLayout has a fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Driver is DriverModernc or DriverCGO.
	// Default: DriverModernc
	Driver string

	// Path is the database file path. Its directory is created if needed.
	Path string

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	Logger *slog.Logger
}

// SQLiteStorage implements audit.Storage on a SQLite file.
type SQLiteStorage struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens or creates the database and applies the schema.
func NewSQLiteStorage(cfg SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, audit.NewStorageError(backendSQLite, "open", errors.New("path is required"))
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.storage.sqlite")

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, audit.NewStorageError(backendSQLite, "open", err)
		}
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, audit.NewStorageError(backendSQLite, "open", err)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, audit.NewStorageError(backendSQLite, "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{db: db, config: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

// buildDSN encodes the pragmas in the form each driver understands.
func buildDSN(cfg SQLiteConfig) (string, error) {
	busy := cfg.BusyTimeout.Milliseconds()

	switch cfg.Driver {
	case DriverModernc:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, busy)
		if cfg.WALMode {
			dsn += "&_pragma=journal_mode(WAL)"
		}
		return dsn, nil
	case DriverCGO:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", cfg.Path, busy)
		if cfg.WALMode {
			dsn += "&_journal_mode=WAL"
		}
		return dsn, nil
	default:
		return "", fmt.Errorf("unknown sqlite driver %q", cfg.Driver)
	}
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError(backendSQLite, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError(backendSQLite, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return audit.NewStorageError(backendSQLite, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError(backendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store persists a record.
func (s *SQLiteStorage) Store(ctx context.Context, rec *audit.Record) error {
	_, err := s.db.ExecContext(ctx, insertRecord,
		rec.ID, rec.RequestID, formatTime(rec.RecordedAt), rec.Method, rec.Path,
		rec.Outcome, nullString(rec.ErrorKind),
		rec.UpstreamStatus, rec.UpstreamLatency.Microseconds(), rec.Duration.Microseconds(),
		rec.MessageCount, nullString(rec.RequestHash), rec.RequestBytes, rec.ResponseBytes,
	)
	if err != nil {
		return audit.NewStorageError(backendSQLite, "store", err)
	}
	return nil
}

// Query returns the matching records, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Record, error) {
	where, args := buildWhereClause(q)

	query := selectColumns + where + " ORDER BY recorded_at DESC, id DESC"
	limit, offset := -1, 0
	if q != nil {
		if q.Limit > 0 {
			limit = q.Limit
		}
		offset = q.Offset
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError(backendSQLite, "query", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, audit.NewStorageError(backendSQLite, "scan", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError(backendSQLite, "query", err)
	}
	return records, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhereClause(q)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM relay_audit"+where, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError(backendSQLite, "count", err)
	}
	return count, nil
}

// Delete removes the matching records.
func (s *SQLiteStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhereClause(q)

	result, err := s.db.ExecContext(ctx, "DELETE FROM relay_audit"+where, args...)
	if err != nil {
		return 0, audit.NewStorageError(backendSQLite, "delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError(backendSQLite, "delete", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return audit.NewStorageError(backendSQLite, "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError(backendSQLite, "close", err)
	}
	s.logger.Debug("SQLite audit storage closed")
	return nil
}

// buildWhereClause returns a " WHERE ..." clause (or "") and its arguments.
func buildWhereClause(q *audit.Query) (string, []any) {
	if q == nil {
		return "", nil
	}

	var conditions []string
	var args []any

	if q.Since != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, formatTime(*q.Since))
	}
	if q.Until != nil {
		conditions = append(conditions, "recorded_at < ?")
		args = append(args, formatTime(*q.Until))
	}
	if q.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, q.Outcome)
	}
	if q.ErrorKind != "" {
		conditions = append(conditions, "error_kind = ?")
		args = append(args, q.ErrorKind)
	}
	if q.RequestID != "" {
		conditions = append(conditions, "request_id = ?")
		args = append(args, q.RequestID)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*audit.Record, error) {
	var rec audit.Record
	var recordedAt string
	var errorKind, requestHash sql.NullString
	var upstreamLatencyUs, durationUs int64

	err := rows.Scan(
		&rec.ID, &rec.RequestID, &recordedAt, &rec.Method, &rec.Path,
		&rec.Outcome, &errorKind,
		&rec.UpstreamStatus, &upstreamLatencyUs, &durationUs,
		&rec.MessageCount, &requestHash, &rec.RequestBytes, &rec.ResponseBytes,
	)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid recorded_at %q: %w", recordedAt, err)
	}
	rec.RecordedAt = t
	rec.ErrorKind = errorKind.String
	rec.RequestHash = requestHash.String
	rec.UpstreamLatency = time.Duration(upstreamLatencyUs) * time.Microsecond
	rec.Duration = time.Duration(durationUs) * time.Microsecond
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
