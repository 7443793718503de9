package collect

import (
	"go.uber.org/zap"

	"github.com/zhouzirui/z-intake/backend/internal/schema"
)

// NewBasicInfo returns the collector for the requester block shared by all
// categories: name, role, department and timeline.
func NewBasicInfo(logger *zap.Logger) Collector {
	return newSchemaCollector(schema.BasicInfo(), logger)
}
