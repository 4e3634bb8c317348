package models

import (
	"time"

	"github.com/google/uuid"
)

// Scan event types published to Kafka.
const (
	ScanReservationCreated   = "reservation.created"
	ScanReservationCheckedIn = "reservation.checked_in"
	ScanAccessGranted        = "access.granted"
)

// ScanEvent is the wire DTO streamed on the admission.scans topic whenever
// a credential is issued or redeemed.
type ScanEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	EventID      int64     `json:"event_id"`
	CredentialID int64     `json:"credential_id"`
	Code         string    `json:"code"`
	ScannedBy    *int64    `json:"scanned_by,omitempty"`
	Reason       string    `json:"reason"`
	At           time.Time `json:"at"`
}

func NewScanEvent(typ string, eventID, credentialID int64, code string, scannedBy *int64, reason string) ScanEvent {
	return ScanEvent{
		ID:           uuid.New().String(),
		Type:         typ,
		EventID:      eventID,
		CredentialID: credentialID,
		Code:         code,
		ScannedBy:    scannedBy,
		Reason:       reason,
		At:           time.Now().UTC(),
	}
}
