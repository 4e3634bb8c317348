package events_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"ms-admission/internal/admission"
	"ms-admission/internal/config"
	events "ms-admission/internal/events/service"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
)

// MockEventDB is a mock implementation of the EventDBLayer interface
type MockEventDB struct {
	events        map[int64]*models.Event
	nextID        int64
	collisions    int
	shouldFailOn  string
	errorToReturn error
}

func NewMockEventDB() *MockEventDB {
	return &MockEventDB{
		events: make(map[int64]*models.Event),
		nextID: 1,
	}
}

func (m *MockEventDB) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	if m.shouldFailOn == "GetEventByID" {
		return nil, m.errorToReturn
	}
	event, exists := m.events[id]
	if !exists {
		return nil, sql.ErrNoRows
	}
	return event, nil
}

func (m *MockEventDB) GetEventByPublicCode(ctx context.Context, publicCode string) (*models.Event, error) {
	for _, event := range m.events {
		if event.PublicCode == publicCode {
			return event, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MockEventDB) PublicCodeExists(ctx context.Context, publicCode string) (bool, error) {
	if m.shouldFailOn == "PublicCodeExists" {
		return false, m.errorToReturn
	}
	// Simulate a saturated code space by reporting collisions.
	if m.collisions > 0 {
		m.collisions--
		return true, nil
	}
	for _, event := range m.events {
		if event.PublicCode == publicCode {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockEventDB) CreateEvent(ctx context.Context, event *models.Event) error {
	if m.shouldFailOn == "CreateEvent" {
		return m.errorToReturn
	}
	event.ID = m.nextID
	m.nextID++
	m.events[event.ID] = event
	return nil
}

func (m *MockEventDB) UpdateEvent(ctx context.Context, event *models.Event) error {
	if m.shouldFailOn == "UpdateEvent" {
		return m.errorToReturn
	}
	if _, exists := m.events[event.ID]; !exists {
		return sql.ErrNoRows
	}
	m.events[event.ID] = event
	return nil
}

func (m *MockEventDB) DeleteEvent(ctx context.Context, id int64) (bool, error) {
	if m.shouldFailOn == "DeleteEvent" {
		return false, m.errorToReturn
	}
	if _, exists := m.events[id]; !exists {
		return false, nil
	}
	delete(m.events, id)
	return true, nil
}

func (m *MockEventDB) ListEvents(ctx context.Context) ([]models.Event, error) {
	out := make([]models.Event, 0, len(m.events))
	for _, event := range m.events {
		out = append(out, *event)
	}
	return out, nil
}

func testConfig() config.AdmissionConfig {
	return config.AdmissionConfig{
		PublicBaseURL:           "http://localhost:8080",
		ReservationCodeBytes:    16,
		AccessCodeBytes:         10,
		PublicCodeBytes:         16,
		ReservationCodeAttempts: 8,
		AccessCodeAttempts:      5,
		PublicCodeAttempts:      10,
	}
}

func setupService() (*events.EventService, *MockEventDB) {
	mockDB := NewMockEventDB()
	service := events.NewEventService(mockDB, testConfig(), &logger.Logger{})
	return service, mockDB
}

func TestCreateEvent(t *testing.T) {
	service, _ := setupService()

	start := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)
	event, err := service.Create(context.Background(), events.CreateEventInput{
		Name:    "Opening Night",
		StartAt: start,
		EndAt:   start.Add(5 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Status defaults to draft when omitted.
	if event.Status != models.EventDraft {
		t.Errorf("Expected status draft, got %s", event.Status)
	}

	// 16 random bytes of public code, hex encoded.
	if len(event.PublicCode) != 32 {
		t.Errorf("Expected 32 character public code, got %d", len(event.PublicCode))
	}
}

func TestCreateEventRejectsBadDates(t *testing.T) {
	service, _ := setupService()

	start := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)
	_, err := service.Create(context.Background(), events.CreateEventInput{
		Name:    "Backwards",
		StartAt: start,
		EndAt:   start.Add(-time.Hour),
	})
	if !errors.Is(err, events.ErrEndBeforeStart) {
		t.Errorf("Expected ErrEndBeforeStart, got %v", err)
	}

	// end_at equal to start_at is rejected too.
	_, err = service.Create(context.Background(), events.CreateEventInput{
		Name:    "Zero length",
		StartAt: start,
		EndAt:   start,
	})
	if !errors.Is(err, events.ErrEndBeforeStart) {
		t.Errorf("Expected ErrEndBeforeStart for zero-length event, got %v", err)
	}
}

func TestCreateEventRejectsUnknownStatus(t *testing.T) {
	service, _ := setupService()

	start := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)
	_, err := service.Create(context.Background(), events.CreateEventInput{
		Name:    "Bad status",
		StartAt: start,
		EndAt:   start.Add(time.Hour),
		Status:  "published",
	})
	if err == nil {
		t.Error("Expected error for unknown status, got nil")
	}
}

func TestCreateEventRetriesOnCollision(t *testing.T) {
	service, mockDB := setupService()

	// The first three draws collide; the fourth succeeds.
	mockDB.collisions = 3

	start := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)
	event, err := service.Create(context.Background(), events.CreateEventInput{
		Name:    "Retry",
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Expected collision retries to succeed, got %v", err)
	}
	if event.PublicCode == "" {
		t.Error("Expected a public code after retries")
	}
}

func TestCreateEventCodeSpaceExhausted(t *testing.T) {
	service, mockDB := setupService()

	// Every draw collides; the bounded loop must give up.
	mockDB.collisions = 100

	start := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)
	_, err := service.Create(context.Background(), events.CreateEventInput{
		Name:    "Saturated",
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	})

	reason, ok := admission.DenialReason(err)
	if !ok {
		t.Fatalf("Expected a denial, got %v", err)
	}
	if reason != admission.ReasonPublicCodeGenFailed {
		t.Errorf("Expected PUBLIC_CODE_GENERATION_FAILED, got %s", reason)
	}
}

func TestUpdateEvent(t *testing.T) {
	service, _ := setupService()

	start := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)
	event, err := service.Create(context.Background(), events.CreateEventInput{
		Name:    "Opening Night",
		StartAt: start,
		EndAt:   start.Add(5 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	status := "active"
	updated, err := service.Update(context.Background(), event.ID, events.UpdateEventInput{
		Status: &status,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if updated.Status != models.EventActive {
		t.Errorf("Expected status active, got %s", updated.Status)
	}
	// Untouched fields survive a partial update.
	if updated.Name != "Opening Night" {
		t.Errorf("Expected name to be unchanged, got %s", updated.Name)
	}
}

func TestUpdateEventRevalidatesDates(t *testing.T) {
	service, _ := setupService()

	start := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)
	event, err := service.Create(context.Background(), events.CreateEventInput{
		Name:    "Opening Night",
		StartAt: start,
		EndAt:   start.Add(5 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	// Moving start past the existing end must be rejected.
	badStart := start.Add(10 * time.Hour)
	_, err = service.Update(context.Background(), event.ID, events.UpdateEventInput{
		StartAt: &badStart,
	})
	if !errors.Is(err, events.ErrEndBeforeStart) {
		t.Errorf("Expected ErrEndBeforeStart, got %v", err)
	}
}

func TestDeleteEvent(t *testing.T) {
	service, mockDB := setupService()

	start := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)
	event, err := service.Create(context.Background(), events.CreateEventInput{
		Name:    "Doomed",
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	if err := service.Delete(context.Background(), event.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, exists := mockDB.events[event.ID]; exists {
		t.Error("Expected event to be deleted, but it still exists")
	}

	// Deleting again reports not found.
	err = service.Delete(context.Background(), event.ID)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	service, _ := setupService()

	event := &models.Event{PublicCode: "abc123"}
	url := service.PublicURL(event)
	if url != "http://localhost:8080/evento/abc123" {
		t.Errorf("Unexpected public URL: %s", url)
	}
}
