package intake

import "sort"

// Fields holds collected values keyed by schema field name. Values are either
// string or []string once they have passed schema coercion.
type Fields map[string]any

// Clone returns a deep copy so collectors never alias caller state.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if items, ok := v.([]string); ok {
			cp := make([]string, len(items))
			copy(cp, items)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// Text returns the string value for key, or "" when absent or not text.
func (f Fields) Text(key string) string {
	s, _ := f[key].(string)
	return s
}

// Items returns the list value for key, or nil when absent or not a list.
func (f Fields) Items(key string) []string {
	items, _ := f[key].([]string)
	return items
}

// Keys returns the field names in lexical order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
