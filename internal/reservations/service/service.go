package reservations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-admission/internal/admission"
	"ms-admission/internal/config"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/qr"
	"ms-admission/internal/utils"
)

type ReservationDBLayer interface {
	GetByCode(ctx context.Context, code string) (*models.Reservation, error)
	GetByID(ctx context.Context, id int64) (*models.Reservation, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, reservation *models.Reservation) error
	ListByEvent(ctx context.Context, eventID int64) ([]models.Reservation, error)
	UpdateEmailAudit(ctx context.Context, reservation *models.Reservation) error
	CheckinConditional(ctx context.Context, code string, scannedBy *int64, now time.Time) (bool, error)
}

type EventDBLayer interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	GetEventByPublicCode(ctx context.Context, publicCode string) (*models.Event, error)
}

// Notifier delivers the invitation. Failures are recorded on the
// reservation, never propagated to the visitor.
type Notifier interface {
	Deliver(toEmail, guestName, eventName, checkinURL string, qrPNG []byte) error
}

type ScanPublisher interface {
	PublishScan(ev models.ScanEvent) error
}

type ReservationService struct {
	DB     ReservationDBLayer
	Events EventDBLayer
	Gate   admission.Gate
	Cfg    config.AdmissionConfig
	Mailer Notifier
	Kafka  ScanPublisher
	QR     *qr.Generator
	Logger *logger.Logger

	// Now is swapped out in tests.
	Now func() time.Time
}

func NewReservationService(db ReservationDBLayer, events EventDBLayer, cfg config.AdmissionConfig, mailer Notifier, kafka ScanPublisher, log *logger.Logger) *ReservationService {
	return &ReservationService{
		DB:     db,
		Events: events,
		Gate:   admission.Gate{Grace: cfg.Grace},
		Cfg:    cfg,
		Mailer: mailer,
		Kafka:  kafka,
		QR:     qr.NewGenerator(),
		Logger: log,
		Now:    time.Now,
	}
}

type GuestInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Instagram string
}

// CreateReservation issues a single-use credential for the event behind the
// public code. The invitation email is best effort: its outcome lands on
// the row, the reservation itself is already committed.
func (s *ReservationService) CreateReservation(ctx context.Context, publicCode string, guest GuestInput) (*models.Reservation, error) {
	event, err := s.Events.GetEventByPublicCode(ctx, publicCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, admission.Deny(admission.ReasonEventNotFound)
		}
		return nil, err
	}

	now := s.Now().UTC()
	if allowed, reason := s.Gate.CheckinAllowed(event, now); !allowed {
		return nil, admission.Deny(reason)
	}

	code, err := s.uniqueReservationCode(ctx)
	if err != nil {
		return nil, err
	}

	reservation := &models.Reservation{
		EventID:         event.ID,
		FirstName:       strings.TrimSpace(guest.FirstName),
		LastName:        strings.TrimSpace(guest.LastName),
		Email:           strings.ToLower(strings.TrimSpace(guest.Email)),
		Phone:           strings.TrimSpace(guest.Phone),
		Instagram:       strings.TrimSpace(guest.Instagram),
		ReservationCode: code,
		Status:          models.ReservationCreated,
		ScanCount:       0,
		CreatedAt:       now,
	}
	if err := s.DB.Create(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	s.deliverInvitation(ctx, reservation, event)
	s.publishScan(models.NewScanEvent(models.ScanReservationCreated, event.ID, reservation.ID, code, nil, string(admission.ReasonOK)))

	return reservation, nil
}

func (s *ReservationService) uniqueReservationCode(ctx context.Context) (string, error) {
	for i := 0; i < s.Cfg.ReservationCodeAttempts; i++ {
		code, err := utils.NewHexCode(s.Cfg.ReservationCodeBytes)
		if err != nil {
			return "", err
		}
		exists, err := s.DB.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", admission.Deny(admission.ReasonReservationCodeGenFailed)
}

// deliverInvitation renders the QR and sends the email. Any failure is
// caught here and written to the audit columns.
func (s *ReservationService) deliverInvitation(ctx context.Context, reservation *models.Reservation, event *models.Event) {
	if s.Mailer == nil {
		return
	}

	url := s.CheckinURL(reservation.ReservationCode)
	guestName := reservation.FirstName + " " + reservation.LastName

	var deliverErr error
	png, deliverErr := s.QR.PNG(url)
	if deliverErr == nil {
		deliverErr = s.Mailer.Deliver(reservation.Email, guestName, event.Name, url, png)
	}

	now := s.Now().UTC()
	if deliverErr != nil {
		reservation.EmailSendStatus = models.EmailStatusFailed
		reservation.EmailError = deliverErr.Error()
		s.Logger.Error("MAIL", fmt.Sprintf("Invitation for reservation %d failed: %v", reservation.ID, deliverErr))
	} else {
		reservation.EmailSentAt = &now
		reservation.EmailSendStatus = models.EmailStatusSent
		reservation.EmailError = ""
	}

	if err := s.DB.UpdateEmailAudit(ctx, reservation); err != nil {
		s.Logger.Error("MAIL", fmt.Sprintf("Failed to record delivery outcome for reservation %d: %v", reservation.ID, err))
	}
}

// Checkin redeems a single-use code. Denials come back as a reason, not an
// error; err is only non-nil for storage faults.
func (s *ReservationService) Checkin(ctx context.Context, code string, scannedBy *int64) (bool, *models.Reservation, admission.Reason, error) {
	reservation, err := s.DB.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil, admission.ReasonNotFound, nil
		}
		return false, nil, "", err
	}

	event, err := s.Events.GetEventByID(ctx, reservation.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, reservation, admission.ReasonEventNotFound, nil
		}
		return false, reservation, "", err
	}

	now := s.Now().UTC()
	if allowed, reason := s.Gate.CheckinAllowed(event, now); !allowed {
		s.Logger.LogScan("checkin", code, string(reason))
		return false, reservation, reason, nil
	}

	won, err := s.DB.CheckinConditional(ctx, code, scannedBy, now)
	if err != nil {
		return false, reservation, "", err
	}

	// Either way, return the current row so the scanner sees used_at.
	fresh, err := s.DB.GetByCode(ctx, code)
	if err != nil {
		return false, reservation, "", err
	}

	if !won {
		s.Logger.LogScan("checkin", code, string(admission.ReasonAlreadyUsed))
		return false, fresh, admission.ReasonAlreadyUsed, nil
	}

	s.Logger.LogScan("checkin", code, string(admission.ReasonOK))
	s.publishScan(models.NewScanEvent(models.ScanReservationCheckedIn, event.ID, fresh.ID, code, scannedBy, string(admission.ReasonOK)))
	return true, fresh, admission.ReasonOK, nil
}

func (s *ReservationService) ListByEvent(ctx context.Context, eventID int64) ([]models.Reservation, error) {
	if _, err := s.Events.GetEventByID(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, admission.Deny(admission.ReasonEventNotFound)
		}
		return nil, err
	}
	return s.DB.ListByEvent(ctx, eventID)
}

// CheckinURL is the scan target embedded in the QR.
func (s *ReservationService) CheckinURL(code string) string {
	return fmt.Sprintf("%s/checkin/%s", strings.TrimRight(s.Cfg.PublicBaseURL, "/"), code)
}

// QRPNGForReservation renders the check-in URL of an existing reservation.
func (s *ReservationService) QRPNGForReservation(ctx context.Context, id int64) ([]byte, error) {
	reservation, err := s.DB.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.QR.PNG(s.CheckinURL(reservation.ReservationCode))
}

func (s *ReservationService) publishScan(ev models.ScanEvent) {
	if s.Kafka == nil {
		return
	}
	if err := s.Kafka.PublishScan(ev); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", ev.Type, ev.Code, err))
	}
}
