package admission

import "errors"

// Reason is the stable string enum returned to scanner clients. Existing
// callers match on the exact strings, so these values never change.
type Reason string

const (
	ReasonOK            Reason = "OK"
	ReasonAccessGranted Reason = "ACCESS_GRANTED"

	ReasonNotFound          Reason = "NOT_FOUND"
	ReasonEventNotFound     Reason = "EVENT_NOT_FOUND"
	ReasonEventEnded        Reason = "EVENT_ENDED"
	ReasonEventNotAvailable Reason = "EVENT_NOT_AVAILABLE"
	ReasonEventNotActive    Reason = "EVENT_NOT_ACTIVE"
	ReasonCodeDisabled      Reason = "CODE_DISABLED"
	ReasonAlreadyUsed       Reason = "ALREADY_USED"

	ReasonReservationCodeGenFailed Reason = "RESERVATION_CODE_GENERATION_FAILED"
	ReasonCannotGenerateUniqueCode Reason = "CANNOT_GENERATE_UNIQUE_CODE"
	ReasonPublicCodeGenFailed      Reason = "PUBLIC_CODE_GENERATION_FAILED"
)

// Denial is an expected failure carrying a stable reason code. Storage
// faults are returned as plain errors, never wrapped in a Denial.
type Denial struct {
	Reason Reason
}

func (d *Denial) Error() string { return string(d.Reason) }

func Deny(r Reason) error { return &Denial{Reason: r} }

// DenialReason unwraps the reason from an error produced by Deny.
func DenialReason(err error) (Reason, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d.Reason, true
	}
	return "", false
}
