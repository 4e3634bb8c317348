package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	ReservationCreated   ReservationStatus = "created"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCheckedIn ReservationStatus = "checked_in"
)

// Email delivery outcomes recorded on the reservation row.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// Reservation is a single-use admission credential. UsedAt is non-null
// exactly when Status is checked_in; the transition created -> checked_in
// happens at most once per code, enforced by the conditional UPDATE in the
// reservations db layer.
type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID      int64 `bun:"id,pk,autoincrement" json:"id"`
	EventID int64 `bun:"event_id,notnull" json:"event_id"`

	FirstName string `bun:"first_name,notnull" json:"first_name"`
	LastName  string `bun:"last_name,notnull" json:"last_name"`
	Email     string `bun:"email,notnull" json:"email"`
	Phone     string `bun:"phone,notnull" json:"phone"`
	Instagram string `bun:"instagram,nullzero" json:"instagram,omitempty"`

	ReservationCode string            `bun:"reservation_code,unique,notnull" json:"reservation_code"`
	Status          ReservationStatus `bun:"status,notnull" json:"status"`

	UsedAt          *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	ScannedByUserID *int64     `bun:"scanned_by_user_id,nullzero" json:"scanned_by_user_id,omitempty"`
	ScanCount       int        `bun:"scan_count,notnull,default:0" json:"scan_count"`
	LastScanAt      *time.Time `bun:"last_scan_at,nullzero" json:"last_scan_at,omitempty"`

	EmailSentAt     *time.Time `bun:"email_sent_at,nullzero" json:"email_sent_at,omitempty"`
	EmailSendStatus string     `bun:"email_send_status,nullzero" json:"email_send_status,omitempty"`
	EmailError      string     `bun:"email_error,nullzero" json:"-"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
