package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

var (
	// ErrIncomplete marks a field set with required fields missing.
	ErrIncomplete = errors.New("required fields missing")
	// ErrInvalidField marks a field set with a value violating its constraint.
	ErrInvalidField = errors.New("field value invalid")
)

// Result is the outcome of Validate. It is Complete when nothing is missing
// and nothing is invalid.
type Result struct {
	Missing []string          `json:"missing,omitempty"`
	Invalid map[string]string `json:"invalid,omitempty"`
}

// Complete reports whether the field set satisfies the schema.
func (r Result) Complete() bool {
	return len(r.Missing) == 0 && len(r.Invalid) == 0
}

// Err converts an incomplete result into an *IncompleteError, or nil.
func (r Result) Err() error {
	if r.Complete() {
		return nil
	}
	return &IncompleteError{Result: r}
}

// IncompleteError carries the validation result.
type IncompleteError struct {
	Result Result
}

func (e *IncompleteError) Error() string {
	var parts []string
	if len(e.Result.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Result.Missing, ", "))
	}
	if len(e.Result.Invalid) > 0 {
		keys := make([]string, 0, len(e.Result.Invalid))
		for k := range e.Result.Invalid {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, e.Result.Invalid[k]))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrIncomplete and ErrInvalidField.
func (e *IncompleteError) Is(target error) bool {
	switch target {
	case ErrIncomplete:
		return len(e.Result.Missing) > 0
	case ErrInvalidField:
		return len(e.Result.Invalid) > 0
	}
	return false
}

// Validate checks fields against s. Missing lists required fields that are
// absent or nil, in schema order; Invalid maps present fields that violate
// their constraint to the reason. Fields not declared by s are reported as
// invalid so a foreign key never passes for a different category.
func Validate(fields intake.Fields, s Schema) Result {
	var res Result
	invalid := func(name, reason string) {
		if res.Invalid == nil {
			res.Invalid = make(map[string]string)
		}
		res.Invalid[name] = reason
	}
	for _, f := range s.Fields {
		v, ok := fields[f.Name]
		if !ok || v == nil {
			if f.Required {
				res.Missing = append(res.Missing, f.Name)
			}
			continue
		}
		if reason := f.Check(v); reason != "" {
			invalid(f.Name, reason)
		}
	}
	for _, name := range fields.Keys() {
		if _, ok := s.Field(name); !ok {
			invalid(name, "not part of the "+s.Name+" schema")
		}
	}
	return res
}
