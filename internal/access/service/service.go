package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	accessdb "ms-admission/internal/access/db"
	"ms-admission/internal/admission"
	"ms-admission/internal/config"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/qr"
	"ms-admission/internal/utils"
)

type AccessDBLayer interface {
	GetByCode(ctx context.Context, code string) (*models.AccessCode, error)
	GetByID(ctx context.Context, eventID, accessID int64) (*models.AccessCode, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, accessCode *models.AccessCode) error
	ListByEvent(ctx context.Context, eventID int64) ([]models.AccessCode, error)
	SetEnabled(ctx context.Context, eventID, accessID int64, enabled bool) (bool, error)
	IncrementScan(ctx context.Context, code string, now time.Time) (*models.AccessCode, error)
}

type EventDBLayer interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
}

type ScanPublisher interface {
	PublishScan(ev models.ScanEvent) error
}

type AccessService struct {
	DB     AccessDBLayer
	Events EventDBLayer
	Gate   admission.Gate
	Cfg    config.AdmissionConfig
	Kafka  ScanPublisher
	QR     *qr.Generator
	Logger *logger.Logger

	Now func() time.Time
}

func NewAccessService(db AccessDBLayer, events EventDBLayer, cfg config.AdmissionConfig, kafka ScanPublisher, log *logger.Logger) *AccessService {
	return &AccessService{
		DB:     db,
		Events: events,
		Gate:   admission.Gate{Grace: cfg.Grace},
		Cfg:    cfg,
		Kafka:  kafka,
		QR:     qr.NewGenerator(),
		Logger: log,
		Now:    time.Now,
	}
}

// Create issues a reusable access code for an event.
func (s *AccessService) Create(ctx context.Context, eventID int64, label string, createdBy *int64) (*models.AccessCode, error) {
	if _, err := s.Events.GetEventByID(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, admission.Deny(admission.ReasonEventNotFound)
		}
		return nil, err
	}

	for i := 0; i < s.Cfg.AccessCodeAttempts; i++ {
		code, err := utils.NewURLSafeCode(s.Cfg.AccessCodeBytes)
		if err != nil {
			return nil, err
		}
		exists, err := s.DB.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		accessCode := &models.AccessCode{
			EventID:         eventID,
			AccessCode:      code,
			Label:           strings.TrimSpace(label),
			IsEnabled:       true,
			ScanCount:       0,
			CreatedByUserID: createdBy,
			CreatedAt:       s.Now().UTC(),
		}
		if err := s.DB.Create(ctx, accessCode); err != nil {
			return nil, fmt.Errorf("failed to create access code: %w", err)
		}

		s.Logger.Info("ACCESS", fmt.Sprintf("Created access code %d for event %d", accessCode.ID, eventID))
		return accessCode, nil
	}

	return nil, admission.Deny(admission.ReasonCannotGenerateUniqueCode)
}

// CheckAccess authorizes a reusable code and counts the scan. Always
// grants when the code exists, is enabled and the event is active.
func (s *AccessService) CheckAccess(ctx context.Context, code string) (bool, *models.Event, *models.AccessCode, admission.Reason, error) {
	accessCode, err := s.DB.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil, nil, admission.ReasonNotFound, nil
		}
		return false, nil, nil, "", err
	}

	event, err := s.Events.GetEventByID(ctx, accessCode.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil, nil, admission.ReasonEventNotFound, nil
		}
		return false, nil, nil, "", err
	}

	if !accessCode.IsEnabled {
		s.Logger.LogScan("access", code, string(admission.ReasonCodeDisabled))
		return false, event, accessCode, admission.ReasonCodeDisabled, nil
	}

	now := s.Now().UTC()
	if allowed, reason := s.Gate.AccessAllowed(event, now); !allowed {
		s.Logger.LogScan("access", code, string(reason))
		return false, event, accessCode, reason, nil
	}

	updated, err := s.DB.IncrementScan(ctx, code, now)
	if err != nil {
		if errors.Is(err, accessdb.ErrCodeDisabled) {
			return false, event, accessCode, admission.ReasonCodeDisabled, nil
		}
		return false, event, accessCode, "", err
	}

	s.Logger.LogScan("access", code, string(admission.ReasonAccessGranted))
	s.publishScan(models.NewScanEvent(models.ScanAccessGranted, event.ID, updated.ID, code, nil, string(admission.ReasonAccessGranted)))
	return true, event, updated, admission.ReasonAccessGranted, nil
}

func (s *AccessService) ListByEvent(ctx context.Context, eventID int64) ([]models.AccessCode, error) {
	if _, err := s.Events.GetEventByID(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, admission.Deny(admission.ReasonEventNotFound)
		}
		return nil, err
	}
	return s.DB.ListByEvent(ctx, eventID)
}

func (s *AccessService) Get(ctx context.Context, eventID, accessID int64) (*models.AccessCode, error) {
	return s.DB.GetByID(ctx, eventID, accessID)
}

func (s *AccessService) SetEnabled(ctx context.Context, eventID, accessID int64, enabled bool) (*models.AccessCode, error) {
	updated, err := s.DB.SetEnabled(ctx, eventID, accessID, enabled)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, sql.ErrNoRows
	}
	return s.DB.GetByID(ctx, eventID, accessID)
}

// AccessURL is the page security staff lands on when scanning the code.
func (s *AccessService) AccessURL(code string) string {
	return fmt.Sprintf("%s/security/access/%s", strings.TrimRight(s.Cfg.PublicBaseURL, "/"), code)
}

func (s *AccessService) QRPNGForAccess(ctx context.Context, eventID, accessID int64) ([]byte, error) {
	accessCode, err := s.DB.GetByID(ctx, eventID, accessID)
	if err != nil {
		return nil, err
	}
	return s.QR.PNG(s.AccessURL(accessCode.AccessCode))
}

func (s *AccessService) publishScan(ev models.ScanEvent) {
	if s.Kafka == nil {
		return
	}
	if err := s.Kafka.PublishScan(ev); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", ev.Type, ev.Code, err))
	}
}
