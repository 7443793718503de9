// Package collect merges per-turn field deltas into a session's partial
// field sets and decides what to ask for next.
package collect

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/schema"
)

// Collector gathers one schema's fields across turns.
type Collector interface {
	// Collect merges delta into current and reports what is still needed.
	// current is never modified.
	Collect(delta, current intake.Fields) Outcome
	// RequiredSchema is the schema the collector fills.
	RequiredSchema() schema.Schema
}

// Outcome is the result of merging one delta.
type Outcome struct {
	Fields intake.Fields
	// Result is the validation of Fields after the merge.
	Result schema.Result
	// Rejected maps fields whose new value was refused in favour of an
	// already-valid value to the reason the new value failed.
	Rejected map[string]string
	// Dropped lists delta keys the schema does not declare.
	Dropped []string
	// Ready is set when no required field is missing. Invalid values are
	// left to the validating phase.
	Ready  bool
	Prompt string
}

type schemaCollector struct {
	schema schema.Schema
	logger *zap.Logger
}

func newSchemaCollector(s schema.Schema, logger *zap.Logger) *schemaCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &schemaCollector{
		schema: s,
		logger: logger.With(zap.String("component", "collect"), zap.String("schema", s.Name)),
	}
}

func (c *schemaCollector) RequiredSchema() schema.Schema {
	return c.schema
}

func (c *schemaCollector) Collect(delta, current intake.Fields) Outcome {
	merged := current.Clone()
	out := Outcome{}

	for _, name := range delta.Keys() {
		field, ok := c.schema.Field(name)
		if !ok {
			out.Dropped = append(out.Dropped, name)
			continue
		}
		value := field.Coerce(delta[name])
		if value == nil {
			continue
		}
		if reason := field.Check(value); reason != "" {
			if old, exists := merged[name]; exists && old != nil && field.Check(old) == "" {
				if out.Rejected == nil {
					out.Rejected = make(map[string]string)
				}
				out.Rejected[name] = reason
				continue
			}
		}
		merged[name] = value
	}

	if len(out.Dropped) > 0 {
		c.logger.Debug("dropped fields outside schema", zap.Strings("fields", out.Dropped))
	}
	if len(out.Rejected) > 0 {
		c.logger.Debug("kept valid values over invalid deltas", zap.Any("rejected", out.Rejected))
	}

	out.Fields = merged
	out.Result = schema.Validate(merged, c.schema)
	out.Ready = len(out.Result.Missing) == 0
	if !out.Result.Complete() || len(out.Rejected) > 0 {
		out.Prompt = Prompt(c.schema, out.Result, out.Rejected)
	}
	return out
}

// Prompt asks for exactly the missing and invalid fields of res, in schema
// order, plus any rejected values. Fields already valid are never mentioned.
func Prompt(s schema.Schema, res schema.Result, rejected map[string]string) string {
	missing := make(map[string]bool, len(res.Missing))
	for _, name := range res.Missing {
		missing[name] = true
	}

	var lines []string
	for _, f := range s.Fields {
		switch {
		case res.Invalid[f.Name] != "":
			lines = append(lines, fmt.Sprintf("- %s: %s. %s", label(f), res.Invalid[f.Name], f.Question))
		case rejected[f.Name] != "":
			lines = append(lines, fmt.Sprintf("- %s: I kept your earlier answer because the new one was not usable (%s).", label(f), rejected[f.Name]))
		case missing[f.Name]:
			lines = append(lines, "- "+f.Question)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "I still need a few details:\n" + strings.Join(lines, "\n")
}

func label(f schema.Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}
