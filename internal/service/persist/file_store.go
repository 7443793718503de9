package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

const (
	filePrefix = "analytics_request_"
	fileSuffix = ".json"
)

// FileStore writes one JSON file per record into a directory. Files appear
// under their final name only once fully written and synced.
type FileStore struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	saved    map[string]string
	inflight map[string]struct{}
}

// NewFileStore prepares dir and indexes the records already in it so a
// restart still refuses a second record for a session.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}

	s := &FileStore{
		dir:      dir,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "persist.file")),
		saved:    make(map[string]string),
		inflight: make(map[string]struct{}),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read record directory: %w", err)
	}
	for _, entry := range entries {
		id, ok := recordIDFromFile(entry.Name())
		if !ok {
			continue
		}
		if sessionID, ok := SessionFromRecordID(id); ok {
			s.saved[sessionID] = id
		}
	}
	return s, nil
}

// Save implements Persister.
func (s *FileStore) Save(ctx context.Context, record intake.SavedRecord) (string, error) {
	if err := validateRecord(record); err != nil {
		return "", err
	}
	sessionID := record.Metadata.SessionID

	if err := s.claim(sessionID); err != nil {
		return "", err
	}

	id, err := s.write(ctx, record)
	s.release(sessionID, id, err)
	if err != nil {
		return "", err
	}

	s.logger.Info("record saved", zap.String("record_id", id), zap.String("session_id", sessionID))
	return id, nil
}

func (s *FileStore) claim(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.saved[sessionID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyPersisted, id)
	}
	if _, ok := s.inflight[sessionID]; ok {
		return fmt.Errorf("%w: save in progress", ErrAlreadyPersisted)
	}
	s.inflight[sessionID] = struct{}{}
	return nil
}

func (s *FileStore) release(sessionID, id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, sessionID)
	if err == nil {
		s.saved[sessionID] = id
	}
}

func (s *FileStore) write(ctx context.Context, record intake.SavedRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}

	data, err := intake.EncodeRecord(record)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", ErrPersist, ErrInvalidRecord, err)
	}

	id := NewRecordID(record.Metadata.SessionID, s.now())
	final := s.path(id)

	tmp, err := os.CreateTemp(s.dir, "."+filePrefix+"*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", ErrPersist, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("%w: write temp file: %w", ErrPersist, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("%w: sync temp file: %w", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: close temp file: %w", ErrPersist, err)
	}
	if _, err := os.Stat(final); err == nil {
		cleanup()
		// a retry stamps a new id
		return "", fmt.Errorf("%w: %w: record file %s exists", ErrPersist, ErrTransient, filepath.Base(final))
	}
	if err := os.Rename(tmpPath, final); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: rename record file: %w", ErrPersist, err)
	}
	if err := syncDir(s.dir); err != nil {
		s.logger.Warn("record directory sync failed", zap.String("record_id", id), zap.Error(err))
	}
	return id, nil
}

// Load implements Loader.
func (s *FileStore) Load(_ context.Context, recordID string) (intake.SavedRecord, error) {
	data, err := os.ReadFile(s.path(recordID))
	if errors.Is(err, os.ErrNotExist) {
		return intake.SavedRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	if err != nil {
		return intake.SavedRecord{}, fmt.Errorf("read record %s: %w", recordID, err)
	}
	return intake.DecodeRecord(data)
}

// Path returns the file a record id is stored in.
func (s *FileStore) Path(recordID string) string {
	return s.path(recordID)
}

func (s *FileStore) path(recordID string) string {
	return filepath.Join(s.dir, filePrefix+recordID+fileSuffix)
}

func recordIDFromFile(name string) (string, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix), true
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
