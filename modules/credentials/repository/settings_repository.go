package repository

import (
	"context"
	"database/sql"

	"clinic-sync/core/database"
	"clinic-sync/core/logger"
)

// Setting keys used across modules.
const (
	SettingCipherSecret   = "cipher_secret"
	SettingCalendarCursor = "calendar_inbound_cursor"
)

// SettingsRepository is a small key-value store for installation-scoped
// scalars that do not deserve their own table.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type settingsRepository struct {
	db database.IDatabase
}

func NewSettingsRepository(db database.IDatabase) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM sync_settings WHERE key = $1`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		logger.Error("SettingsRepository:Get:Error", "error", err, "key", key)
		return "", err
	}
	return value, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO sync_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	err := r.db.ExecContext(ctx, query, key, value)
	if err != nil {
		logger.Error("SettingsRepository:Set:Error", "error", err, "key", key)
	}
	return err
}

func (r *settingsRepository) Delete(ctx context.Context, key string) error {
	err := r.db.ExecContext(ctx, `DELETE FROM sync_settings WHERE key = $1`, key)
	if err != nil {
		logger.Error("SettingsRepository:Delete:Error", "error", err, "key", key)
	}
	return err
}
