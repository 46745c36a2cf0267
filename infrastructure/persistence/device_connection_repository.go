package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
)

type DeviceConnectionRepository struct{ db *sql.DB }

func NewDeviceConnectionRepository(db *sql.DB) repository.IDeviceConnection {
	return &DeviceConnectionRepository{db: db}
}

func (r *DeviceConnectionRepository) UpsertConnection(ctx context.Context, c *model.DeviceConnection) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	q := `INSERT INTO device_connections (user_id, platform, provider_user_id, is_active, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			provider_user_id=EXCLUDED.provider_user_id,
			is_active=EXCLUDED.is_active,
			updated_at=EXCLUDED.updated_at
		  RETURNING id`
	if err := r.db.QueryRowContext(ctx, q, c.UserID, c.Platform, c.ProviderUserID, c.IsActive, c.CreatedAt, c.UpdatedAt).Scan(&c.ID); err != nil {
		return apperror.Persistence("connections.Upsert", err)
	}
	return nil
}

const connectionColumns = `id, user_id, platform, provider_user_id, is_active, created_at, updated_at`

func scanConnection(row *sql.Row, op string) (*model.DeviceConnection, error) {
	c := &model.DeviceConnection{}
	if err := row.Scan(&c.ID, &c.UserID, &c.Platform, &c.ProviderUserID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(op, "no device connection")
		}
		return nil, apperror.Persistence(op, err)
	}
	return c, nil
}

func (r *DeviceConnectionRepository) GetConnection(ctx context.Context, userID, platform string) (*model.DeviceConnection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM device_connections WHERE user_id=$1 AND platform=$2`, userID, platform)
	return scanConnection(row, "connections.Get")
}

func (r *DeviceConnectionRepository) ResolveUserByProviderID(ctx context.Context, platform, providerUserID string) (*model.DeviceConnection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM device_connections
		WHERE platform=$1 AND provider_user_id=$2 AND is_active ORDER BY updated_at DESC LIMIT 1`, platform, providerUserID)
	return scanConnection(row, "connections.Resolve")
}

func (r *DeviceConnectionRepository) Deactivate(ctx context.Context, userID, platform string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE device_connections SET is_active=FALSE, updated_at=$3 WHERE user_id=$1 AND platform=$2`,
		userID, platform, time.Now().UTC()); err != nil {
		return apperror.Persistence("connections.Deactivate", err)
	}
	return nil
}
