package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// Summarizer writes the confirmation summary shown after a record is saved.
// It never fails; implementations fall back to TemplateSummary.
type Summarizer interface {
	Summarize(ctx context.Context, record intake.SavedRecord) string
}

// TemplateSummarizer is the model-free Summarizer.
type TemplateSummarizer struct{}

// Summarize implements Summarizer.
func (TemplateSummarizer) Summarize(_ context.Context, record intake.SavedRecord) string {
	return TemplateSummary(record)
}

// TemplateSummary describes a record without a model.
func TemplateSummary(record intake.SavedRecord) string {
	bi := record.BasicInfo
	var b strings.Builder
	fmt.Fprintf(&b, "Request type: %s, requested by %s (%s, %s), needed %s.",
		record.RequestType.Label(), bi.Name, bi.Role, bi.Department, bi.Timeline)

	for _, key := range record.Requirements.Keys {
		switch v := record.Requirements.Values[key].(type) {
		case string:
			if v != "" {
				fmt.Fprintf(&b, "\n- %s: %s", key, v)
			}
		case []string:
			if len(v) > 0 {
				fmt.Fprintf(&b, "\n- %s: %s", key, strings.Join(v, ", "))
			}
		}
	}
	return b.String()
}
