package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StatusPendingReview is the only status this service writes.
const StatusPendingReview = "pending_review"

// RecordMetadata is the bookkeeping block of a saved record.
type RecordMetadata struct {
	CreatedAt Timestamp `json:"created_at"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
}

// SavedRecord is the terminal artifact of a completed intake.
type SavedRecord struct {
	BasicInfo    BasicInfo      `json:"basic_info"`
	RequestType  Category       `json:"request_type"`
	Requirements OrderedFields  `json:"requirements"`
	Metadata     RecordMetadata `json:"metadata"`
}

// NewSavedRecord assembles the record for a session. keys fixes the order of
// requirement fields and must cover every key in fields.
func NewSavedRecord(s Session, keys []string, fields Fields, now time.Time) (SavedRecord, error) {
	if s.BasicInfo == nil {
		return SavedRecord{}, errors.New("session has no basic info")
	}
	if s.Category == Unclassified || s.Requirements.Category != s.Category {
		return SavedRecord{}, fmt.Errorf("requirements category %q does not match session category %q",
			s.Requirements.Category, s.Category)
	}
	if len(keys) != len(fields) {
		return SavedRecord{}, fmt.Errorf("requirement keys (%d) do not cover fields (%d)", len(keys), len(fields))
	}
	for _, k := range keys {
		if _, ok := fields[k]; !ok {
			return SavedRecord{}, fmt.Errorf("requirement key %q has no value", k)
		}
	}
	return SavedRecord{
		BasicInfo:    *s.BasicInfo,
		RequestType:  s.Category,
		Requirements: OrderedFields{Keys: append([]string(nil), keys...), Values: fields.Clone()},
		Metadata: RecordMetadata{
			CreatedAt: Timestamp(now.UTC()),
			SessionID: s.ID,
			Status:    StatusPendingReview,
		},
	}, nil
}

// EncodeRecord renders a record as 2-space indented JSON with key order
// preserved and no HTML escaping.
func EncodeRecord(r SavedRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeRecord parses a record produced by EncodeRecord.
func DecodeRecord(data []byte) (SavedRecord, error) {
	var r SavedRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return SavedRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

// OrderedFields is a Fields map that marshals its keys in a fixed order.
type OrderedFields struct {
	Keys   []string
	Values Fields
}

func (o OrderedFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalPlain(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalPlain(o.Values[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *OrderedFields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("requirements must be an object")
	}
	o.Keys = nil
	o.Values = Fields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		o.Keys = append(o.Keys, key)
		o.Values[key] = plainValue(raw)
	}
	_, err = dec.Token()
	return err
}

func marshalPlain(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func plainValue(raw any) any {
	switch v := raw.(type) {
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
		return items
	case nil:
		return nil
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
