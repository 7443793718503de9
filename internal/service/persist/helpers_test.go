package persist

import (
	"testing"
	"time"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

var testNow = time.Date(2024, 6, 3, 9, 30, 0, 42, time.UTC)

func testRecord(t *testing.T, sessionID string) intake.SavedRecord {
	t.Helper()
	return intake.SavedRecord{
		BasicInfo: intake.BasicInfo{
			Name:        "Grace Hopper",
			Role:        "Engineering manager",
			Department:  "Platform",
			Timeline:    "two weeks",
			CollectedAt: intake.Timestamp(testNow),
		},
		RequestType: intake.Update,
		Requirements: intake.OrderedFields{
			Keys: []string{"existing_report_name", "changes_needed", "timeline"},
			Values: intake.Fields{
				"existing_report_name": "Weekly uptime",
				"changes_needed":       []string{"add p99 latency"},
				"timeline":             "next sprint",
			},
		},
		Metadata: intake.RecordMetadata{
			CreatedAt: intake.Timestamp(testNow),
			SessionID: sessionID,
			Status:    intake.StatusPendingReview,
		},
	}
}

// instantTimer fires immediately and records every delay it was asked for.
type instantTimer struct {
	delays []time.Duration
	c      chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }
