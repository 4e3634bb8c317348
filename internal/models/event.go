package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventStatus is a closed enum persisted as text. Transitions are always
// admin-driven; an event is never flipped to "ended" automatically, the
// admission gate derives that from the clock instead.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventActive    EventStatus = "active"
	EventEnded     EventStatus = "ended"
	EventCancelled EventStatus = "cancelled"
)

// ParseEventStatus validates raw API input against the closed enum.
func ParseEventStatus(s string) (EventStatus, bool) {
	switch EventStatus(s) {
	case EventDraft, EventActive, EventEnded, EventCancelled:
		return EventStatus(s), true
	default:
		return "", false
	}
}

// Terminal reports whether the status permanently blocks new admissions.
func (s EventStatus) Terminal() bool {
	return s == EventEnded || s == EventCancelled
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64       `bun:"id,pk,autoincrement" json:"id"`
	Name        string      `bun:"name,notnull" json:"name"`
	Description string      `bun:"description,nullzero" json:"description,omitempty"`
	StartAt     time.Time   `bun:"start_at,notnull" json:"start_at"`
	EndAt       time.Time   `bun:"end_at,notnull" json:"end_at"`
	Status      EventStatus `bun:"status,notnull" json:"status"`
	PublicCode  string      `bun:"public_code,unique,notnull" json:"public_code"`
	CreatedAt   time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
