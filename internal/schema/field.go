package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind is the constraint applied to a field value.
type Kind string

const (
	KindText    Kind = "text"
	KindMinText Kind = "min_text"
	KindSet     Kind = "set"
	KindEnum    Kind = "enum"
	KindFree    Kind = "free"
)

// Field describes one collectable value.
type Field struct {
	Name     string   `yaml:"name"`
	Label    string   `yaml:"label"`
	Kind     Kind     `yaml:"kind"`
	Required bool     `yaml:"required"`
	MinLen   int      `yaml:"min_len"`
	Options  []string `yaml:"options"`
	Question string   `yaml:"question"`
}

// Empty is the explicit empty value written for an unfilled optional field.
func (f Field) Empty() any {
	if f.Kind == KindSet {
		return []string{}
	}
	return ""
}

// Coerce converts a value produced by the language layer into the field's
// storage shape: []string for sets, string otherwise. nil stays nil.
func (f Field) Coerce(raw any) any {
	if raw == nil {
		return nil
	}
	if f.Kind == KindSet {
		return coerceSet(raw)
	}
	text := strings.TrimSpace(coerceText(raw))
	if f.Kind == KindEnum {
		for _, opt := range f.Options {
			if strings.EqualFold(opt, text) {
				return opt
			}
		}
	}
	return text
}

// Check returns "" when v satisfies the field constraint, otherwise the reason.
// Optional fields accept an empty value.
func (f Field) Check(v any) string {
	switch f.Kind {
	case KindSet:
		items, ok := v.([]string)
		if !ok {
			return "list of values required"
		}
		if len(nonBlank(items)) == 0 {
			if f.Required {
				return "non-empty set required"
			}
		}
		return ""
	default:
		s, ok := v.(string)
		if !ok {
			return "text value required"
		}
		s = strings.TrimSpace(s)
		if s == "" {
			if f.Required && f.Kind != KindFree {
				return "non-empty string required"
			}
			return ""
		}
		switch f.Kind {
		case KindMinText:
			if utf8.RuneCountInString(s) < f.MinLen {
				return fmt.Sprintf("at least %d characters required", f.MinLen)
			}
		case KindEnum:
			for _, opt := range f.Options {
				if opt == s {
					return ""
				}
			}
			return "must be one of: " + strings.Join(f.Options, ", ")
		}
		return ""
	}
}

func coerceSet(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return nonBlank(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, coerceText(item))
		}
		return nonBlank(items)
	case string:
		return nonBlank(strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n'
		}))
	default:
		return nonBlank([]string{coerceText(v)})
	}
}

func coerceText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []string:
		return strings.Join(nonBlank(v), ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, coerceText(item))
		}
		return strings.Join(nonBlank(parts), ", ")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
