package intake

import (
	"fmt"
	"time"
)

// TimestampLayout is the ISO-8601 form written to saved records.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Timestamp marshals as an ISO-8601 string with microsecond precision.
type Timestamp time.Time

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("timestamp must be a string, got %s", data)
	}
	parsed, err := time.Parse(time.RFC3339Nano, string(data[1:len(data)-1]))
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	*t = Timestamp(parsed.UTC())
	return nil
}
