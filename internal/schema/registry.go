// Package schema declares the field sets the intake collects and validates
// collected values against them.
package schema

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// ErrUnknownCategory is returned by Lookup for a category outside the closed set.
var ErrUnknownCategory = errors.New("unknown category")

//go:embed schemas.yaml
var schemasYAML []byte

// Schema is an ordered list of fields.
type Schema struct {
	Name   string  `yaml:"name"`
	Intro  string  `yaml:"intro"`
	Fields []Field `yaml:"fields"`
}

// Names returns the field names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Fill returns the record keys in schema order and a copy of fields in which
// every optional field absent from fields is present as an explicit empty value.
func (s Schema) Fill(fields intake.Fields) ([]string, intake.Fields) {
	out := make(intake.Fields, len(s.Fields))
	for _, f := range s.Fields {
		if v, ok := fields[f.Name]; ok && v != nil {
			out[f.Name] = v
			continue
		}
		out[f.Name] = f.Empty()
	}
	return s.Names(), out.Clone()
}

type registryFile struct {
	BasicInfo  Schema                     `yaml:"basic_info"`
	Categories map[intake.Category]Schema `yaml:"categories"`
}

var registry = mustLoad(schemasYAML)

func mustLoad(data []byte) registryFile {
	reg, err := load(data)
	if err != nil {
		panic(fmt.Sprintf("schema: %v", err))
	}
	return reg
}

func load(data []byte) (registryFile, error) {
	var reg registryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("parse schemas: %w", err)
	}
	if err := reg.BasicInfo.check(); err != nil {
		return registryFile{}, fmt.Errorf("basic_info: %w", err)
	}
	for _, c := range intake.Categories() {
		s, ok := reg.Categories[c]
		if !ok {
			return registryFile{}, fmt.Errorf("missing schema for category %q", c)
		}
		if err := s.check(); err != nil {
			return registryFile{}, fmt.Errorf("%s: %w", c, err)
		}
	}
	if len(reg.Categories) != len(intake.Categories()) {
		return registryFile{}, fmt.Errorf("schemas declare %d categories, want %d", len(reg.Categories), len(intake.Categories()))
	}
	return reg, nil
}

func (s Schema) check() error {
	if len(s.Fields) == 0 {
		return errors.New("no fields")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.New("field without name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case KindText, KindSet, KindFree:
		case KindMinText:
			if f.MinLen < 1 {
				return fmt.Errorf("field %q: min_text needs min_len", f.Name)
			}
		case KindEnum:
			if len(f.Options) == 0 {
				return fmt.Errorf("field %q: enum needs options", f.Name)
			}
		default:
			return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
		}
	}
	return nil
}

// BasicInfo returns the schema shared by every session before classification.
func BasicInfo() Schema {
	return registry.BasicInfo
}

// Lookup returns the requirements schema for a category.
func Lookup(c intake.Category) (Schema, error) {
	s, ok := registry.Categories[c]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return s, nil
}
