// Package ai is the language layer of the intake service: it turns raw user
// utterances into structured field deltas and intent signals, and writes the
// closing summary once a record is saved.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/schema"
)

// ErrNotUnderstood marks a semantic failure: the utterance was received but
// nothing usable came out of it. Callers re-prompt instead of retrying.
var ErrNotUnderstood = errors.New("utterance not understood")

// Request is everything an interpreter needs for one turn.
type Request struct {
	SessionID string
	Phase     intake.Phase
	Category  intake.Category
	Utterance string
	// Expected lists the fields the coordinator is currently collecting.
	Expected []schema.Field
	History  []intake.Message
}

// Interpretation is the structured signal extracted from one utterance.
type Interpretation struct {
	// Fields holds candidate values keyed by schema field name.
	Fields intake.Fields
	// Intent is the user's stated request need, set only when the user
	// says what kind of analytics help they want.
	Intent string
}

// Interpreter turns an utterance into an Interpretation. Transport failures
// are returned as ordinary errors; ErrNotUnderstood is returned when the
// utterance carried nothing usable.
type Interpreter interface {
	Interpret(ctx context.Context, req Request) (Interpretation, error)
}

type interpretPayload struct {
	Understood *bool          `json:"understood"`
	Intent     string         `json:"intent"`
	Fields     map[string]any `json:"fields"`
}

// parseInterpretation extracts the JSON object from a model reply.
func parseInterpretation(content string) (Interpretation, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return Interpretation{}, fmt.Errorf("%w: reply has no json object", ErrNotUnderstood)
	}

	payload := &interpretPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return Interpretation{}, fmt.Errorf("%w: %v", ErrNotUnderstood, err)
	}
	if payload.Understood != nil && !*payload.Understood {
		return Interpretation{}, ErrNotUnderstood
	}

	fields := intake.Fields{}
	for k, v := range payload.Fields {
		if v == nil {
			continue
		}
		fields[strings.TrimSpace(k)] = v
	}
	intent := strings.TrimSpace(payload.Intent)
	if len(fields) == 0 && intent == "" {
		return Interpretation{}, ErrNotUnderstood
	}
	return Interpretation{Fields: fields, Intent: intent}, nil
}
