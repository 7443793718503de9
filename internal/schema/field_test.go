package schema

import (
	"strings"
	"testing"
)

func TestCoerceSetSplitsText(t *testing.T) {
	f := Field{Name: "metrics", Kind: KindSet, Required: true}

	got := f.Coerce("revenue, conversion rate;\n churn ,")
	items, ok := got.([]string)
	if !ok {
		t.Fatalf("expected []string, got %T", got)
	}
	if strings.Join(items, "|") != "revenue|conversion rate|churn" {
		t.Fatalf("unexpected items %q", items)
	}

	if got := f.Coerce([]any{"a", 3, " "}); strings.Join(got.([]string), "|") != "a|3" {
		t.Fatalf("unexpected coercion of []any: %v", got)
	}
	if f.Coerce(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestCoerceTextJoinsLists(t *testing.T) {
	f := Field{Name: "purpose", Kind: KindText, Required: true}
	if got := f.Coerce([]string{"track", " growth "}); got != "track, growth" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := f.Coerce("  padded  "); got != "padded" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestLoadRejectsBrokenRegistry(t *testing.T) {
	cases := map[string]string{
		"missing category": `
basic_info:
  name: basic_info
  fields: [{name: name, kind: text}]
categories:
  reports:
    name: report
    fields: [{name: purpose, kind: text}]
`,
		"unknown kind": `
basic_info:
  name: basic_info
  fields: [{name: name, kind: shout}]
categories: {}
`,
		"enum without options": `
basic_info:
  name: basic_info
  fields: [{name: freq, kind: enum}]
categories: {}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := load([]byte(doc)); err == nil {
				t.Fatal("expected load error")
			}
		})
	}
}

func TestEmbeddedRegistryLoads(t *testing.T) {
	reg, err := load(schemasYAML)
	if err != nil {
		t.Fatalf("embedded schemas invalid: %v", err)
	}
	if len(reg.BasicInfo.Fields) != 4 {
		t.Fatalf("expected 4 basic info fields, got %d", len(reg.BasicInfo.Fields))
	}
}
