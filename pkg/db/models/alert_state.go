package models

import (
	"time"

	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// AlertState persists whether an alert alias is currently open, so alert
// de-duplication survives restarts and works across instances.
type AlertState struct {
	Alias     string              `gorm:"column:alias;primaryKey"`
	Active    bool                `gorm:"column:active;not null;default:false"`
	Severity  enums.AlertSeverity `gorm:"column:severity"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
