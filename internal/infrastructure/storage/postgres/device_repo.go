package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"varejo/internal/core/apperror"
	"varejo/internal/domain/auth"
)

// Compile-time check.
var _ auth.Repository = (*DeviceRepo)(nil)

// DeviceRepo stores enrolled sync devices.
type DeviceRepo struct {
	txm *TxManager
}

// NewDeviceRepo creates the device repository.
func NewDeviceRepo(txm *TxManager) *DeviceRepo {
	return &DeviceRepo{txm: txm}
}

// CreateDevice inserts a new device. Re-registering an existing id is a
// conflict; rotation goes through a fresh enrollment.
func (r *DeviceRepo) CreateDevice(ctx context.Context, d *auth.Device) error {
	query, args, err := sq.Insert("sys_devices").
		Columns("device_id", "name", "secret_hash", "created_at").
		Values(d.DeviceID, d.Name, d.SecretHash, d.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build device insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("device", "device_id", d.DeviceID)
		}
		return apperror.NewDatabase(fmt.Errorf("insert device: %w", err))
	}
	return nil
}

// GetDevice loads a device by id.
func (r *DeviceRepo) GetDevice(ctx context.Context, deviceID string) (*auth.Device, error) {
	query, args, err := sq.Select("device_id", "name", "secret_hash", "created_at", "last_seen_at").
		From("sys_devices").
		Where(sq.Eq{"device_id": deviceID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build device query: %w", err)
	}

	var device auth.Device
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &device, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("device", deviceID)
		}
		return nil, apperror.NewDatabase(fmt.Errorf("load device: %w", err))
	}
	return &device, nil
}

// TouchDevice records when the device last authenticated.
func (r *DeviceRepo) TouchDevice(ctx context.Context, deviceID string, at time.Time) error {
	query, args, err := sq.Update("sys_devices").
		Set("last_seen_at", at).
		Where(sq.Eq{"device_id": deviceID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build device touch: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("touch device: %w", err))
	}
	return nil
}
