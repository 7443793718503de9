package collect

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/schema"
)

// NewReport collects requirements for a one-off report.
func NewReport(logger *zap.Logger) Collector {
	return mustCategory(intake.Report, logger)
}

// NewDashboard collects requirements for a new or changed dashboard.
func NewDashboard(logger *zap.Logger) Collector {
	return mustCategory(intake.Dashboard, logger)
}

// NewUpdate collects requirements for an update to an existing report.
func NewUpdate(logger *zap.Logger) Collector {
	return mustCategory(intake.Update, logger)
}

// ForCategory returns the collector for c.
func ForCategory(c intake.Category, logger *zap.Logger) (Collector, error) {
	s, err := schema.Lookup(c)
	if err != nil {
		return nil, fmt.Errorf("collector for %q: %w", c, err)
	}
	return newSchemaCollector(s, logger), nil
}

// Table returns one collector per concrete category.
func Table(logger *zap.Logger) map[intake.Category]Collector {
	table := make(map[intake.Category]Collector, len(intake.Categories()))
	for _, c := range intake.Categories() {
		table[c] = mustCategory(c, logger)
	}
	return table
}

// Intro is the sentence that opens requirements collection for c.
func Intro(c Collector) string {
	return c.RequiredSchema().Intro
}

func mustCategory(c intake.Category, logger *zap.Logger) Collector {
	coll, err := ForCategory(c, logger)
	if err != nil {
		// The registry refuses to load without every concrete category.
		panic(err)
	}
	return coll
}
