package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-admission/internal/models"
)

// ErrCodeDisabled is returned when the enabled flag flipped between the
// service's gate check and the locked increment.
var ErrCodeDisabled = errors.New("access code disabled")

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetByCode(ctx context.Context, code string) (*models.AccessCode, error) {
	var accessCode models.AccessCode
	err := d.Bun.NewSelect().
		Model(&accessCode).
		Where("access_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &accessCode, nil
}

func (d *DB) GetByID(ctx context.Context, eventID, accessID int64) (*models.AccessCode, error) {
	var accessCode models.AccessCode
	err := d.Bun.NewSelect().
		Model(&accessCode).
		Where("id = ?", accessID).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &accessCode, nil
}

func (d *DB) CodeExists(ctx context.Context, code string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.AccessCode)(nil)).
		Where("access_code = ?", code).
		Exists(ctx)
}

func (d *DB) Create(ctx context.Context, accessCode *models.AccessCode) error {
	_, err := d.Bun.NewInsert().Model(accessCode).Exec(ctx)
	return err
}

func (d *DB) ListByEvent(ctx context.Context, eventID int64) ([]models.AccessCode, error) {
	var codes []models.AccessCode
	err := d.Bun.NewSelect().
		Model(&codes).
		Where("event_id = ?", eventID).
		Order("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// SetEnabled toggles the kill switch without touching scan history.
func (d *DB) SetEnabled(ctx context.Context, eventID, accessID int64, enabled bool) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.AccessCode)(nil)).
		Set("is_enabled = ?", enabled).
		Where("id = ?", accessID).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IncrementScan bumps the counter under a row lock so concurrent scans all
// count. Unlike reservations there is no first winner here, every
// authorized scan is legitimate; the lock only protects the
// read-modify-write. The enabled flag is re-verified while the lock is
// held. SELECT ... FOR UPDATE exists on Postgres only; the sqlite test
// dialect serializes writers on its own.
func (d *DB) IncrementScan(ctx context.Context, code string, now time.Time) (*models.AccessCode, error) {
	var accessCode models.AccessCode

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&accessCode).
			Where("access_code = ?", code)
		if tx.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}

		if !accessCode.IsEnabled {
			return ErrCodeDisabled
		}

		accessCode.ScanCount++
		accessCode.LastScanAt = &now

		_, err := tx.NewUpdate().
			Model(&accessCode).
			Column("scan_count", "last_scan_at").
			Where("id = ?", accessCode.ID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &accessCode, nil
}
