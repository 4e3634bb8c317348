package events

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
	"ms-admission/internal/utils"
)

var ErrEndBeforeStart = errors.New("end_at must be after start_at")

type EventDBLayer interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	GetEventByPublicCode(ctx context.Context, publicCode string) (*models.Event, error)
	PublicCodeExists(ctx context.Context, publicCode string) (bool, error)
	CreateEvent(ctx context.Context, event *models.Event) error
	UpdateEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id int64) (bool, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
}

type EventService struct {
	DB     EventDBLayer
	Cfg    config.AdmissionConfig
	Logger *logger.Logger
}

func NewEventService(db EventDBLayer, cfg config.AdmissionConfig, log *logger.Logger) *EventService {
	return &EventService{DB: db, Cfg: cfg, Logger: log}
}

type CreateEventInput struct {
	Name        string
	Description string
	StartAt     time.Time
	EndAt       time.Time
	Status      string
}

type UpdateEventInput struct {
	Name        *string
	Description *string
	StartAt     *time.Time
	EndAt       *time.Time
	Status      *string
}

func (s *EventService) Create(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	if !in.EndAt.After(in.StartAt) {
		return nil, ErrEndBeforeStart
	}

	status := models.EventDraft
	if in.Status != "" {
		parsed, ok := models.ParseEventStatus(in.Status)
		if !ok {
			return nil, fmt.Errorf("unknown event status %q", in.Status)
		}
		status = parsed
	}

	code, err := s.uniquePublicCode(ctx)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		StartAt:     in.StartAt,
		EndAt:       in.EndAt,
		Status:      status,
		PublicCode:  code,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.Logger.Info("EVENTS", fmt.Sprintf("Created event %d (%s)", event.ID, event.Name))
	return event, nil
}

// uniquePublicCode tries bounded random draws against the store. Running
// out of attempts means the code space is close to saturated, which is a
// capacity problem, not a bug.
func (s *EventService) uniquePublicCode(ctx context.Context) (string, error) {
	for i := 0; i < s.Cfg.PublicCodeAttempts; i++ {
		code, err := utils.NewHexCode(s.Cfg.PublicCodeBytes)
		if err != nil {
			return "", err
		}
		exists, err := s.DB.PublicCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", admission.Deny(admission.ReasonPublicCodeGenFailed)
}

func (s *EventService) Get(ctx context.Context, id int64) (*models.Event, error) {
	return s.DB.GetEventByID(ctx, id)
}

func (s *EventService) GetByPublicCode(ctx context.Context, publicCode string) (*models.Event, error) {
	return s.DB.GetEventByPublicCode(ctx, publicCode)
}

func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	return s.DB.ListEvents(ctx)
}

func (s *EventService) Update(ctx context.Context, id int64, in UpdateEventInput) (*models.Event, error) {
	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		event.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		event.Description = *in.Description
	}
	if in.StartAt != nil {
		event.StartAt = *in.StartAt
	}
	if in.EndAt != nil {
		event.EndAt = *in.EndAt
	}
	if in.Status != nil {
		parsed, ok := models.ParseEventStatus(*in.Status)
		if !ok {
			return nil, fmt.Errorf("unknown event status %q", *in.Status)
		}
		event.Status = parsed
	}

	// Re-validate dates in case only one side changed.
	if !event.EndAt.After(event.StartAt) {
		return nil, ErrEndBeforeStart
	}

	if err := s.DB.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return event, nil
}

func (s *EventService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.DB.DeleteEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if !deleted {
		return sql.ErrNoRows
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("Deleted event %d", id))
	return nil
}

// PublicURL is the page a visitor lands on when scanning the event QR.
func (s *EventService) PublicURL(event *models.Event) string {
	return fmt.Sprintf("%s/evento/%s", strings.TrimRight(s.Cfg.PublicBaseURL, "/"), event.PublicCode)
}
