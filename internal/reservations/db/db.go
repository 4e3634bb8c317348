package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-admission/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetByCode(ctx context.Context, code string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservation).
		Where("reservation_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (d *DB) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	var reservation models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservation).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (d *DB) CodeExists(ctx context.Context, code string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("reservation_code = ?", code).
		Exists(ctx)
}

func (d *DB) Create(ctx context.Context, reservation *models.Reservation) error {
	_, err := d.Bun.NewInsert().Model(reservation).Exec(ctx)
	return err
}

func (d *DB) ListByEvent(ctx context.Context, eventID int64) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := d.Bun.NewSelect().
		Model(&reservations).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// UpdateEmailAudit persists the delivery outcome after the invitation email
// was attempted. Nothing else on the row is touched.
func (d *DB) UpdateEmailAudit(ctx context.Context, reservation *models.Reservation) error {
	_, err := d.Bun.NewUpdate().
		Model(reservation).
		Column("email_sent_at", "email_send_status", "email_error").
		Where("id = ?", reservation.ID).
		Exec(ctx)
	return err
}

// CheckinConditional performs the single-use transition as one conditional
// UPDATE. The WHERE clause re-checks the precondition at write time, so for
// any number of concurrent calls on the same code the storage engine lets
// exactly one affect a row. Returns whether this call won.
func (d *DB) CheckinConditional(ctx context.Context, code string, scannedBy *int64, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("status = ?", models.ReservationCheckedIn).
		Set("used_at = ?", now).
		Set("scanned_by_user_id = ?", scannedBy).
		Set("scan_count = scan_count + 1").
		Set("last_scan_at = ?", now).
		Where("reservation_code = ?", code).
		Where("status = ?", models.ReservationCreated).
		Where("used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
