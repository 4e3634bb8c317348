package admission

import (
	"time"

	"ms-admission/internal/models"
)

// Gate decides whether an event currently permits redemption. It is a pure
// function of the event, the clock and the configured grace period; it
// never touches storage.
type Gate struct {
	// Grace extends the admission window past end_at. Zero by default.
	Grace time.Duration
}

// CheckinAllowed is the reservation variant. The clock wins over the
// persisted status: an event past end_at is ended even if an admin never
// flipped it. Draft events inside their window can still be checked into;
// only reusable access codes require a strictly active event.
func (g Gate) CheckinAllowed(ev *models.Event, now time.Time) (bool, Reason) {
	if !now.Before(ev.EndAt.Add(g.Grace)) {
		return false, ReasonEventEnded
	}
	switch ev.Status {
	case models.EventEnded, models.EventCancelled:
		return false, ReasonEventNotAvailable
	case models.EventDraft, models.EventActive:
		return true, ReasonOK
	}
	// Unknown statuses never slipped past ParseEventStatus; fail closed.
	return false, ReasonEventNotAvailable
}

// AccessAllowed is the stricter variant used for reusable access codes:
// the event must be exactly active, not merely inside its time window.
func (g Gate) AccessAllowed(ev *models.Event, now time.Time) (bool, Reason) {
	if ev.Status != models.EventActive {
		return false, ReasonEventNotActive
	}
	return true, ReasonAccessGranted
}
