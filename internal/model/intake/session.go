package intake

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReclassification is returned when a session that already has a
	// category is asked to take a different one.
	ErrReclassification = errors.New("session category already set")
	// ErrInvalidTransition is returned for an edge outside the phase table.
	ErrInvalidTransition = errors.New("invalid phase transition")
)

// BasicInfo is the universal requester block collected before classification.
type BasicInfo struct {
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Department  string    `json:"department"`
	Timeline    string    `json:"timeline"`
	CollectedAt Timestamp `json:"collected_at"`
}

// NewBasicInfo builds BasicInfo from validated basic-info fields.
func NewBasicInfo(fields Fields, collectedAt time.Time) BasicInfo {
	return BasicInfo{
		Name:        fields.Text("name"),
		Role:        fields.Text("role"),
		Department:  fields.Text("department"),
		Timeline:    fields.Text("timeline"),
		CollectedAt: Timestamp(collectedAt.UTC()),
	}
}

// Requirements is the category-tagged field set gathered by a category collector.
type Requirements struct {
	Category Category `json:"category"`
	Fields   Fields   `json:"fields"`
}

// Session is one intake conversation. It is owned by the coordinator and only
// mutated while the coordinator holds the session's turn lock.
type Session struct {
	ID            string       `json:"id"`
	Phase         Phase        `json:"phase"`
	BasicFields   Fields       `json:"basicFields"`
	BasicInfo     *BasicInfo   `json:"basicInfo,omitempty"`
	Category      Category     `json:"category,omitempty"`
	Requirements  Requirements `json:"requirements"`
	PendingSignal string       `json:"-"`
	RecordID      string       `json:"recordId,omitempty"`
	FailureReason string       `json:"failureReason,omitempty"`
	Transcript    []Message    `json:"transcript,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	LastUpdatedAt time.Time    `json:"lastUpdatedAt"`
}

// NewSession returns a session at the start of the intake sequence.
func NewSession(id string, now time.Time) Session {
	return Session{
		ID:            id,
		Phase:         PhaseCollectingBasicInfo,
		BasicFields:   Fields{},
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// SetCategory fixes the session category. It succeeds exactly once.
func (s *Session) SetCategory(c Category) error {
	if s.Category != Unclassified {
		return fmt.Errorf("%w: have %s, got %s", ErrReclassification, s.Category, c)
	}
	s.Category = c
	s.Requirements = Requirements{Category: c, Fields: Fields{}}
	return nil
}

// Advance moves the session along a legal edge and returns the transition taken.
func (s *Session) Advance(to Phase) (Transition, error) {
	t := Transition{From: s.Phase, To: to}
	if !CanTransition(s.Phase, to) {
		return t, fmt.Errorf("%w: %s", ErrInvalidTransition, t)
	}
	s.Phase = to
	return t, nil
}

// Clone returns a copy that shares no mutable state with s.
func (s Session) Clone() Session {
	out := s
	out.BasicFields = s.BasicFields.Clone()
	if s.BasicInfo != nil {
		bi := *s.BasicInfo
		out.BasicInfo = &bi
	}
	out.Requirements.Fields = s.Requirements.Fields.Clone()
	out.Transcript = append([]Message(nil), s.Transcript...)
	return out
}
