// Package persist writes finished intake records durably, once per session.
package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

var (
	// ErrAlreadyPersisted is returned when a session already has a record.
	// It is never retried.
	ErrAlreadyPersisted = errors.New("record already persisted for session")
	// ErrPersist wraps every other write failure.
	ErrPersist = errors.New("persist record")
	// ErrRecordNotFound is returned by Load for an unknown record id.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidRecord marks a record no store can ever accept.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrTransient marks a failure a store expects to clear on retry.
	ErrTransient = errors.New("transient store failure")
)

// IsTransient reports whether a failed Save may succeed if repeated:
// SQLite lock contention, file-system I/O errors and failures a store
// marked with ErrTransient. Anything else is permanent.
func IsTransient(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrAlreadyPersisted),
		errors.Is(err, ErrInvalidRecord),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrTransient), IsBusy(err):
		return true
	}
	var (
		pathErr    *fs.PathError
		linkErr    *os.LinkError
		syscallErr *os.SyscallError
	)
	return errors.As(err, &pathErr) || errors.As(err, &linkErr) || errors.As(err, &syscallErr)
}

// Persister writes a finished record and returns its id.
type Persister interface {
	Save(ctx context.Context, record intake.SavedRecord) (string, error)
}

// Loader reads a record back by id.
type Loader interface {
	Load(ctx context.Context, recordID string) (intake.SavedRecord, error)
}

// Store is a Persister that can also read records back.
type Store interface {
	Persister
	Loader
}

const recordIDLayout = "20060102T150405.000000000Z"

// NewRecordID derives a collision-free id from the session id and a
// nanosecond UTC timestamp. Ids sort by creation time.
func NewRecordID(sessionID string, at time.Time) string {
	return at.UTC().Format(recordIDLayout) + "_" + sessionID
}

// SessionFromRecordID returns the session id embedded in a record id.
func SessionFromRecordID(recordID string) (string, bool) {
	prefix, sessionID, ok := strings.Cut(recordID, "_")
	if !ok || sessionID == "" {
		return "", false
	}
	if _, err := time.Parse(recordIDLayout, prefix); err != nil {
		return "", false
	}
	return sessionID, true
}

func validateRecord(record intake.SavedRecord) error {
	if record.Metadata.SessionID == "" {
		return fmt.Errorf("%w: %w: record has no session id", ErrPersist, ErrInvalidRecord)
	}
	if strings.Contains(record.Metadata.SessionID, "_") || strings.ContainsAny(record.Metadata.SessionID, `/\`) {
		return fmt.Errorf("%w: %w: session id %q is not usable in a record id", ErrPersist, ErrInvalidRecord, record.Metadata.SessionID)
	}
	return nil
}
