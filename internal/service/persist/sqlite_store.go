package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// SQLiteStore keeps each record as one row. The session_id UNIQUE
// constraint makes the once-per-session rule hold across processes.
type SQLiteStore struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		now:    time.Now,
		logger: logger.With(zap.String("component", "persist.sqlite")),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS analytics_requests (
		record_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		request_type TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analytics_requests_created ON analytics_requests(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save implements Persister. The INSERT is a single statement, so a record
// is either fully visible or absent.
func (s *SQLiteStore) Save(ctx context.Context, record intake.SavedRecord) (string, error) {
	if err := validateRecord(record); err != nil {
		return "", err
	}
	data, err := intake.EncodeRecord(record)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", ErrPersist, ErrInvalidRecord, err)
	}

	now := s.now()
	id := NewRecordID(record.Metadata.SessionID, now)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analytics_requests (record_id, session_id, request_type, status, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, record.Metadata.SessionID, string(record.RequestType), record.Metadata.Status,
		now.UTC().UnixNano(), string(data),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: session %s", ErrAlreadyPersisted, record.Metadata.SessionID)
		}
		return "", fmt.Errorf("%w: insert record: %w", ErrPersist, err)
	}

	s.logger.Info("record saved", zap.String("record_id", id), zap.String("session_id", record.Metadata.SessionID))
	return id, nil
}

// Load implements Loader.
func (s *SQLiteStore) Load(ctx context.Context, recordID string) (intake.SavedRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM analytics_requests WHERE record_id = ?`, recordID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return intake.SavedRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	if err != nil {
		return intake.SavedRecord{}, fmt.Errorf("query record %s: %w", recordID, err)
	}
	return intake.DecodeRecord([]byte(payload))
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analytics_requests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsBusy reports SQLite lock contention, which is worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
