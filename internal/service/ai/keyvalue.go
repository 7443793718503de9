package ai

import (
	"context"
	"strings"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// KeyValueInterpreter is the model-free fallback. It understands
// "field: value" segments separated by newlines or semicolons, matched
// against the expected fields by name or label. "type: <kind>" (or
// "request type", "need") sets the intent; before classification any
// remaining free text is treated as the intent too.
type KeyValueInterpreter struct{}

var intentKeys = map[string]bool{
	"type":         true,
	"request":      true,
	"request_type": true,
	"need":         true,
	"category":     true,
}

// Interpret implements Interpreter.
func (KeyValueInterpreter) Interpret(_ context.Context, req Request) (Interpretation, error) {
	lookup := make(map[string]string, len(req.Expected)*2)
	for _, f := range req.Expected {
		lookup[normalizeKey(f.Name)] = f.Name
		if f.Label != "" {
			lookup[normalizeKey(f.Label)] = f.Name
		}
	}

	fields := intake.Fields{}
	var intent string
	var free []string
	for _, segment := range splitSegments(req.Utterance) {
		key, value, ok := strings.Cut(segment, ":")
		if !ok {
			free = append(free, segment)
			continue
		}
		k := normalizeKey(key)
		value = strings.TrimSpace(value)
		if name, ok := lookup[k]; ok {
			fields[name] = value
			continue
		}
		if intentKeys[k] {
			intent = value
			continue
		}
		free = append(free, segment)
	}

	if intent == "" && len(free) > 0 {
		switch req.Phase {
		case intake.PhaseCollectingBasicInfo, intake.PhaseClassifying:
			intent = strings.Join(free, " ")
		}
	}

	if len(fields) == 0 && intent == "" {
		return Interpretation{}, ErrNotUnderstood
	}
	return Interpretation{Fields: fields, Intent: intent}, nil
}

func splitSegments(utterance string) []string {
	parts := strings.FieldsFunc(utterance, func(r rune) bool {
		return r == '\n' || r == ';'
	})
	out := parts[:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}
