package intake

import (
	"errors"

	model "github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionClosed          = errors.New("session is closed")
	ErrSessionTimeout         = errors.New("session timed out")
	ErrInterpreterUnavailable = errors.New("interpreter unavailable")
	ErrSchemaMismatch         = errors.New("requirements do not match session category")

	ErrReclassification  = model.ErrReclassification
	ErrInvalidTransition = model.ErrInvalidTransition
)

// Failure reason codes reported with a FAILED session.
const (
	ReasonReclassification       = "reclassification_attempt"
	ReasonPersistFailed          = "persist_failed"
	ReasonAlreadyPersisted       = "already_persisted"
	ReasonInterpreterUnavailable = "interpreter_unavailable"
	ReasonSessionTimeout         = "session_timeout"
	ReasonInvalidTransition      = "invalid_transition"
	ReasonSchemaMismatch         = "schema_mismatch"
)
