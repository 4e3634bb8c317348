package access_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	accessdb "ms-admission/internal/access/db"
	access "ms-admission/internal/access/service"
	"ms-admission/internal/admission"
	"ms-admission/internal/config"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
)

// MockAccessDB is a mock implementation of the AccessDBLayer interface
type MockAccessDB struct {
	codes         map[string]*models.AccessCode
	nextID        int64
	collisions    int
	shouldFailOn  string
	errorToReturn error
}

func NewMockAccessDB() *MockAccessDB {
	return &MockAccessDB{
		codes:  make(map[string]*models.AccessCode),
		nextID: 1,
	}
}

func (m *MockAccessDB) GetByCode(ctx context.Context, code string) (*models.AccessCode, error) {
	if m.shouldFailOn == "GetByCode" {
		return nil, m.errorToReturn
	}
	accessCode, exists := m.codes[code]
	if !exists {
		return nil, sql.ErrNoRows
	}
	copied := *accessCode
	return &copied, nil
}

func (m *MockAccessDB) GetByID(ctx context.Context, eventID, accessID int64) (*models.AccessCode, error) {
	for _, accessCode := range m.codes {
		if accessCode.ID == accessID && accessCode.EventID == eventID {
			copied := *accessCode
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MockAccessDB) CodeExists(ctx context.Context, code string) (bool, error) {
	if m.collisions > 0 {
		m.collisions--
		return true, nil
	}
	_, exists := m.codes[code]
	return exists, nil
}

func (m *MockAccessDB) Create(ctx context.Context, accessCode *models.AccessCode) error {
	if m.shouldFailOn == "Create" {
		return m.errorToReturn
	}
	accessCode.ID = m.nextID
	m.nextID++
	copied := *accessCode
	m.codes[accessCode.AccessCode] = &copied
	return nil
}

func (m *MockAccessDB) ListByEvent(ctx context.Context, eventID int64) ([]models.AccessCode, error) {
	var out []models.AccessCode
	for _, accessCode := range m.codes {
		if accessCode.EventID == eventID {
			out = append(out, *accessCode)
		}
	}
	return out, nil
}

func (m *MockAccessDB) SetEnabled(ctx context.Context, eventID, accessID int64, enabled bool) (bool, error) {
	for _, accessCode := range m.codes {
		if accessCode.ID == accessID && accessCode.EventID == eventID {
			accessCode.IsEnabled = enabled
			return true, nil
		}
	}
	return false, nil
}

func (m *MockAccessDB) IncrementScan(ctx context.Context, code string, now time.Time) (*models.AccessCode, error) {
	if m.shouldFailOn == "IncrementScan" {
		return nil, m.errorToReturn
	}
	accessCode, exists := m.codes[code]
	if !exists {
		return nil, sql.ErrNoRows
	}
	if !accessCode.IsEnabled {
		return nil, accessdb.ErrCodeDisabled
	}
	accessCode.ScanCount++
	accessCode.LastScanAt = &now
	copied := *accessCode
	return &copied, nil
}

// MockEventDB is a mock implementation of the EventDBLayer interface
type MockEventDB struct {
	events map[int64]*models.Event
}

func NewMockEventDB() *MockEventDB {
	return &MockEventDB{events: make(map[int64]*models.Event)}
}

func (m *MockEventDB) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	event, exists := m.events[id]
	if !exists {
		return nil, sql.ErrNoRows
	}
	return event, nil
}

// MockScanPublisher records published scan events
type MockScanPublisher struct {
	published []models.ScanEvent
}

func (m *MockScanPublisher) PublishScan(ev models.ScanEvent) error {
	m.published = append(m.published, ev)
	return nil
}

func testConfig() config.AdmissionConfig {
	return config.AdmissionConfig{
		PublicBaseURL:      "http://localhost:8080",
		AccessCodeBytes:    10,
		AccessCodeAttempts: 5,
	}
}

type fixture struct {
	service   *access.AccessService
	db        *MockAccessDB
	events    *MockEventDB
	publisher *MockScanPublisher
	now       time.Time
}

func setup() *fixture {
	mockDB := NewMockAccessDB()
	mockEvents := NewMockEventDB()
	publisher := &MockScanPublisher{}

	service := access.NewAccessService(mockDB, mockEvents, testConfig(), publisher, &logger.Logger{})

	now := time.Date(2026, 6, 1, 22, 0, 0, 0, time.UTC)
	service.Now = func() time.Time { return now }

	mockEvents.events[1] = &models.Event{
		ID:         1,
		Name:       "Opening Night",
		StartAt:    now.Add(-time.Hour),
		EndAt:      now.Add(3 * time.Hour),
		Status:     models.EventActive,
		PublicCode: "public-1",
	}

	return &fixture{
		service:   service,
		db:        mockDB,
		events:    mockEvents,
		publisher: publisher,
		now:       now,
	}
}

func TestCreateAccessCode(t *testing.T) {
	f := setup()

	createdBy := int64(3)
	accessCode, err := f.service.Create(context.Background(), 1, "  Door A  ", &createdBy)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if accessCode.Label != "Door A" {
		t.Errorf("Expected trimmed label 'Door A', got %q", accessCode.Label)
	}
	if !accessCode.IsEnabled {
		t.Error("Expected new code to be enabled")
	}
	if accessCode.AccessCode == "" {
		t.Error("Expected a generated code")
	}
}

func TestCreateAccessCodeUnknownEvent(t *testing.T) {
	f := setup()

	_, err := f.service.Create(context.Background(), 99, "Door A", nil)

	reason, ok := admission.DenialReason(err)
	if !ok {
		t.Fatalf("Expected a denial, got %v", err)
	}
	if reason != admission.ReasonEventNotFound {
		t.Errorf("Expected EVENT_NOT_FOUND, got %s", reason)
	}
}

func TestCreateAccessCodeSpaceExhausted(t *testing.T) {
	f := setup()
	f.db.collisions = 100

	_, err := f.service.Create(context.Background(), 1, "Door A", nil)

	reason, ok := admission.DenialReason(err)
	if !ok {
		t.Fatalf("Expected a denial, got %v", err)
	}
	if reason != admission.ReasonCannotGenerateUniqueCode {
		t.Errorf("Expected CANNOT_GENERATE_UNIQUE_CODE, got %s", reason)
	}
}

func TestCheckAccess(t *testing.T) {
	f := setup()

	accessCode, err := f.service.Create(context.Background(), 1, "Door A", nil)
	if err != nil {
		t.Fatalf("Failed to create access code: %v", err)
	}

	granted, event, updated, reason, err := f.service.CheckAccess(context.Background(), accessCode.AccessCode)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !granted {
		t.Fatalf("Expected access to be granted, got %s", reason)
	}
	if reason != admission.ReasonAccessGranted {
		t.Errorf("Expected ACCESS_GRANTED, got %s", reason)
	}
	if event.ID != 1 {
		t.Errorf("Expected event 1, got %d", event.ID)
	}
	if updated.ScanCount != 1 {
		t.Errorf("Expected scan count 1, got %d", updated.ScanCount)
	}

	// Reusable: a second scan is granted too and keeps counting.
	granted, _, updated, _, err = f.service.CheckAccess(context.Background(), accessCode.AccessCode)
	if err != nil || !granted {
		t.Fatalf("Expected second scan to be granted, got granted=%v err=%v", granted, err)
	}
	if updated.ScanCount != 2 {
		t.Errorf("Expected scan count 2, got %d", updated.ScanCount)
	}

	if len(f.publisher.published) != 2 {
		t.Fatalf("Expected two scan events, got %d", len(f.publisher.published))
	}
	if f.publisher.published[0].Type != models.ScanAccessGranted {
		t.Errorf("Expected access.granted event, got %s", f.publisher.published[0].Type)
	}
}

func TestCheckAccessUnknownCode(t *testing.T) {
	f := setup()

	granted, _, _, reason, err := f.service.CheckAccess(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if granted {
		t.Error("Expected unknown code to be denied")
	}
	if reason != admission.ReasonNotFound {
		t.Errorf("Expected NOT_FOUND, got %s", reason)
	}
}

func TestCheckAccessDisabledCode(t *testing.T) {
	f := setup()

	accessCode, err := f.service.Create(context.Background(), 1, "Door A", nil)
	if err != nil {
		t.Fatalf("Failed to create access code: %v", err)
	}
	if _, err := f.service.SetEnabled(context.Background(), 1, accessCode.ID, false); err != nil {
		t.Fatalf("Failed to disable code: %v", err)
	}

	granted, _, returned, reason, err := f.service.CheckAccess(context.Background(), accessCode.AccessCode)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if granted {
		t.Error("Expected disabled code to be denied")
	}
	if reason != admission.ReasonCodeDisabled {
		t.Errorf("Expected CODE_DISABLED, got %s", reason)
	}
	// The refused scan is not counted.
	if returned.ScanCount != 0 {
		t.Errorf("Expected scan count 0, got %d", returned.ScanCount)
	}
}

func TestCheckAccessInactiveEvent(t *testing.T) {
	f := setup()

	accessCode, err := f.service.Create(context.Background(), 1, "Door A", nil)
	if err != nil {
		t.Fatalf("Failed to create access code: %v", err)
	}

	// Access codes require a strictly active event; a draft event inside
	// its window is not enough.
	for _, status := range []models.EventStatus{models.EventDraft, models.EventEnded, models.EventCancelled} {
		f.events.events[1].Status = status

		granted, _, _, reason, err := f.service.CheckAccess(context.Background(), accessCode.AccessCode)
		if err != nil {
			t.Fatalf("Expected no error for %s event, got %v", status, err)
		}
		if granted {
			t.Errorf("Expected access to be denied for %s event", status)
		}
		if reason != admission.ReasonEventNotActive {
			t.Errorf("Expected EVENT_NOT_ACTIVE for %s event, got %s", status, reason)
		}
	}

	// None of the denials counted as a scan.
	if f.db.codes[accessCode.AccessCode].ScanCount != 0 {
		t.Errorf("Expected scan count 0 after denials, got %d", f.db.codes[accessCode.AccessCode].ScanCount)
	}
}

func TestCheckAccessDisabledRaceDuringIncrement(t *testing.T) {
	f := setup()

	accessCode, err := f.service.Create(context.Background(), 1, "Door A", nil)
	if err != nil {
		t.Fatalf("Failed to create access code: %v", err)
	}

	// The flag flips between the service's check and the locked increment.
	f.db.shouldFailOn = "IncrementScan"
	f.db.errorToReturn = accessdb.ErrCodeDisabled

	granted, _, _, reason, err := f.service.CheckAccess(context.Background(), accessCode.AccessCode)
	if err != nil {
		t.Fatalf("Expected the race to map to a denial, got %v", err)
	}
	if granted {
		t.Error("Expected access to be denied")
	}
	if reason != admission.ReasonCodeDisabled {
		t.Errorf("Expected CODE_DISABLED, got %s", reason)
	}
}

func TestSetEnabledUnknownCode(t *testing.T) {
	f := setup()

	_, err := f.service.SetEnabled(context.Background(), 1, 99, false)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestAccessURL(t *testing.T) {
	f := setup()

	url := f.service.AccessURL("abc123")
	if url != "http://localhost:8080/security/access/abc123" {
		t.Errorf("Unexpected access URL: %s", url)
	}
}
