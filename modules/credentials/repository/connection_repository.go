package repository

import (
	"context"
	"database/sql"
	"time"

	"clinic-sync/core/database"
	"clinic-sync/core/logger"
	"clinic-sync/modules/credentials/entity"
)

// ConnectionRepository persists the single installation-wide connection row.
type ConnectionRepository interface {
	Get(ctx context.Context) (*entity.GoogleConnection, error)
	Save(ctx context.Context, conn *entity.GoogleConnection) error
	// UpdateAccessToken replaces the access token and its expiry after a
	// refresh; the refresh token is long-lived and left untouched.
	UpdateAccessToken(ctx context.Context, accessToken string, expiresAt time.Time) error
	UpdateCalendarSyncEnabled(ctx context.Context, enabled bool) error
	Delete(ctx context.Context) error
}

type connectionRepository struct {
	db database.IDatabase
}

func NewConnectionRepository(db database.IDatabase) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Get(ctx context.Context) (*entity.GoogleConnection, error) {
	var conn entity.GoogleConnection
	query := `
		SELECT id, access_token, refresh_token, token_expires_at, connected_at,
		       connected_by, calendar_sync_enabled, created_at, updated_at
		FROM google_connections
		WHERE singleton = true
	`
	err := r.db.GetContext(ctx, &conn, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ConnectionRepository:Get:Error", "error", err)
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) Save(ctx context.Context, conn *entity.GoogleConnection) error {
	query := `
		INSERT INTO google_connections (singleton, access_token, refresh_token, token_expires_at, connected_at, connected_by, calendar_sync_enabled)
		VALUES (true, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (singleton)
		DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			connected_at = EXCLUDED.connected_at,
			connected_by = EXCLUDED.connected_by,
			calendar_sync_enabled = EXCLUDED.calendar_sync_enabled,
			updated_at = NOW()
	`
	err := r.db.ExecContext(ctx, query,
		conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt,
		conn.ConnectedAt, conn.ConnectedBy, conn.CalendarSyncEnabled,
	)
	if err != nil {
		logger.Error("ConnectionRepository:Save:Error", "error", err)
	}
	return err
}

func (r *connectionRepository) UpdateAccessToken(ctx context.Context, accessToken string, expiresAt time.Time) error {
	query := `
		UPDATE google_connections
		SET access_token = $1, token_expires_at = $2, updated_at = NOW()
		WHERE singleton = true
	`
	err := r.db.ExecContext(ctx, query, accessToken, expiresAt)
	if err != nil {
		logger.Error("ConnectionRepository:UpdateAccessToken:Error", "error", err)
	}
	return err
}

func (r *connectionRepository) UpdateCalendarSyncEnabled(ctx context.Context, enabled bool) error {
	query := `
		UPDATE google_connections
		SET calendar_sync_enabled = $1, updated_at = NOW()
		WHERE singleton = true
	`
	err := r.db.ExecContext(ctx, query, enabled)
	if err != nil {
		logger.Error("ConnectionRepository:UpdateCalendarSyncEnabled:Error", "error", err)
	}
	return err
}

func (r *connectionRepository) Delete(ctx context.Context) error {
	err := r.db.ExecContext(ctx, `DELETE FROM google_connections WHERE singleton = true`)
	if err != nil {
		logger.Error("ConnectionRepository:Delete:Error", "error", err)
	}
	return err
}
