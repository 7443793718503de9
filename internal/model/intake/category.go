package intake

import "strings"

// Category is the closed set of request types an intake can resolve to.
// The string value is the wire name written to saved records.
type Category string

const (
	Unclassified Category = ""
	Report       Category = "reports"
	Dashboard    Category = "dashboard"
	Update       Category = "updates"
)

// Categories lists the concrete categories in prompt order.
func Categories() []Category {
	return []Category{Report, Dashboard, Update}
}

// ParseCategory accepts wire names and the common singular spellings.
func ParseCategory(raw string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "report", "reports", "one-off report":
		return Report, true
	case "dashboard", "dashboards":
		return Dashboard, true
	case "update", "updates", "update-request", "update_request":
		return Update, true
	default:
		return Unclassified, false
	}
}

// Label is the human readable name used in prompts.
func (c Category) Label() string {
	switch c {
	case Report:
		return "one-off report"
	case Dashboard:
		return "dashboard"
	case Update:
		return "update to an existing report"
	default:
		return "unclassified request"
	}
}
