package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AccessCode is a reusable admission credential tied to one event. Every
// authorized scan increments ScanCount; disabling the code blocks future
// scans without touching the history.
type AccessCode struct {
	bun.BaseModel `bun:"table:event_access_codes"`

	ID      int64 `bun:"id,pk,autoincrement" json:"id"`
	EventID int64 `bun:"event_id,notnull" json:"event_id"`

	AccessCode string `bun:"access_code,unique,notnull" json:"access_code"`
	Label      string `bun:"label,nullzero" json:"label,omitempty"`
	IsEnabled  bool   `bun:"is_enabled,notnull" json:"is_enabled"`

	ScanCount  int        `bun:"scan_count,notnull,default:0" json:"scan_count"`
	LastScanAt *time.Time `bun:"last_scan_at,nullzero" json:"last_scan_at,omitempty"`

	CreatedByUserID *int64    `bun:"created_by_user_id,nullzero" json:"created_by_user_id,omitempty"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
