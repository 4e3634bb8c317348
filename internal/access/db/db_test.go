package db_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-admission/internal/access/db"
	"ms-admission/internal/models"
)

func setupTestDB(t *testing.T) *db.DB {
	// Create a new SQLite in-memory database
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	// One connection so concurrent transactions serialize instead of
	// failing with SQLITE_BUSY.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	if err := bunDB.ResetModel(context.Background(), (*models.AccessCode)(nil)); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	t.Cleanup(func() { bunDB.Close() })
	return &db.DB{Bun: bunDB}
}

func sampleAccessCode(code string) *models.AccessCode {
	return &models.AccessCode{
		EventID:    1,
		AccessCode: code,
		Label:      "Door A",
		IsEnabled:  true,
		CreatedAt:  time.Now().UTC().Round(time.Second),
	}
}

func TestCreateAndGetAccessCode(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	accessCode := sampleAccessCode("staff-1")
	if err := store.Create(ctx, accessCode); err != nil {
		t.Fatalf("Failed to create access code: %v", err)
	}

	retrieved, err := store.GetByCode(ctx, "staff-1")
	if err != nil {
		t.Fatalf("Failed to retrieve access code: %v", err)
	}
	if retrieved.Label != "Door A" {
		t.Errorf("Expected label 'Door A', got %s", retrieved.Label)
	}
	if !retrieved.IsEnabled {
		t.Error("Expected code to be enabled")
	}
	if retrieved.ScanCount != 0 {
		t.Errorf("Expected scan count 0, got %d", retrieved.ScanCount)
	}

	_, err = store.GetByCode(ctx, "nonexistent")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestIncrementScan(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.Create(ctx, sampleAccessCode("staff-1")); err != nil {
		t.Fatalf("Failed to create access code: %v", err)
	}

	now := time.Now().UTC().Round(time.Second)
	updated, err := store.IncrementScan(ctx, "staff-1", now)
	if err != nil {
		t.Fatalf("Failed to increment scan: %v", err)
	}
	if updated.ScanCount != 1 {
		t.Errorf("Expected scan count 1, got %d", updated.ScanCount)
	}
	if updated.LastScanAt == nil || !updated.LastScanAt.Equal(now) {
		t.Errorf("Expected last_scan_at %v, got %v", now, updated.LastScanAt)
	}

	// Unlike reservations the code stays redeemable.
	updated, err = store.IncrementScan(ctx, "staff-1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to increment scan again: %v", err)
	}
	if updated.ScanCount != 2 {
		t.Errorf("Expected scan count 2, got %d", updated.ScanCount)
	}
}

func TestIncrementScanDisabledCode(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	accessCode := sampleAccessCode("staff-1")
	accessCode.IsEnabled = false
	if err := store.Create(ctx, accessCode); err != nil {
		t.Fatalf("Failed to create access code: %v", err)
	}

	_, err := store.IncrementScan(ctx, "staff-1", time.Now().UTC())
	if !errors.Is(err, db.ErrCodeDisabled) {
		t.Errorf("Expected ErrCodeDisabled, got %v", err)
	}

	// The refused scan left no trace on the counter.
	retrieved, err := store.GetByCode(ctx, "staff-1")
	if err != nil {
		t.Fatalf("Failed to retrieve access code: %v", err)
	}
	if retrieved.ScanCount != 0 {
		t.Errorf("Expected scan count 0, got %d", retrieved.ScanCount)
	}
}

func TestIncrementScanConcurrent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.Create(ctx, sampleAccessCode("staff-1")); err != nil {
		t.Fatalf("Failed to create access code: %v", err)
	}

	// Every concurrent scan must count; none may be lost.
	const scans = 16
	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrementScan(ctx, "staff-1", time.Now().UTC()); err != nil {
				t.Errorf("Scan failed: %v", err)
			}
		}()
	}
	wg.Wait()

	retrieved, err := store.GetByCode(ctx, "staff-1")
	if err != nil {
		t.Fatalf("Failed to retrieve access code: %v", err)
	}
	if retrieved.ScanCount != scans {
		t.Errorf("Expected scan count %d, got %d", scans, retrieved.ScanCount)
	}
}

func TestSetEnabled(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	accessCode := sampleAccessCode("staff-1")
	if err := store.Create(ctx, accessCode); err != nil {
		t.Fatalf("Failed to create access code: %v", err)
	}

	// Build some history first.
	if _, err := store.IncrementScan(ctx, "staff-1", time.Now().UTC()); err != nil {
		t.Fatalf("Failed to increment scan: %v", err)
	}

	updated, err := store.SetEnabled(ctx, 1, accessCode.ID, false)
	if err != nil {
		t.Fatalf("Failed to disable code: %v", err)
	}
	if !updated {
		t.Fatal("Expected a row to be updated")
	}

	retrieved, err := store.GetByCode(ctx, "staff-1")
	if err != nil {
		t.Fatalf("Failed to retrieve access code: %v", err)
	}
	if retrieved.IsEnabled {
		t.Error("Expected code to be disabled")
	}
	// Disabling preserves the scan history.
	if retrieved.ScanCount != 1 {
		t.Errorf("Expected scan count 1, got %d", retrieved.ScanCount)
	}

	// Wrong event scoping matches nothing.
	updated, err = store.SetEnabled(ctx, 99, accessCode.ID, true)
	if err != nil {
		t.Fatalf("Failed on scoped update: %v", err)
	}
	if updated {
		t.Error("Expected no row to match a foreign event id")
	}
}

func TestListByEvent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for i, code := range []string{"staff-1", "staff-2", "other-1"} {
		accessCode := sampleAccessCode(code)
		if i == 2 {
			accessCode.EventID = 2
		}
		if err := store.Create(ctx, accessCode); err != nil {
			t.Fatalf("Failed to create access code: %v", err)
		}
	}

	codes, err := store.ListByEvent(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list access codes: %v", err)
	}
	if len(codes) != 2 {
		t.Errorf("Expected 2 access codes for event 1, got %d", len(codes))
	}
}
