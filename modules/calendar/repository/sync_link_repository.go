package repository

import (
	"context"
	"database/sql"
	"time"

	"clinic-sync/core/database"
	"clinic-sync/core/logger"
	"clinic-sync/modules/calendar/entity"

	"github.com/google/uuid"
)

// SyncLinkRepository persists appointment-to-event links.
type SyncLinkRepository interface {
	GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*entity.AppointmentSyncLink, error)
	// Save upserts the link and clears any recorded error.
	Save(ctx context.Context, appointmentID uuid.UUID, eventID string, syncedAt time.Time) error
	RecordError(ctx context.Context, appointmentID uuid.UUID, kind, message string, at time.Time) error
	TouchSyncedAt(ctx context.Context, appointmentID uuid.UUID, syncedAt time.Time) error
	Delete(ctx context.Context, appointmentID uuid.UUID) error
}

type syncLinkRepository struct {
	db database.IDatabase
}

func NewSyncLinkRepository(db database.IDatabase) SyncLinkRepository {
	return &syncLinkRepository{db: db}
}

func (r *syncLinkRepository) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*entity.AppointmentSyncLink, error) {
	var link entity.AppointmentSyncLink
	query := `
		SELECT appointment_id, event_id, last_synced_at,
		       COALESCE(last_error_kind, '') AS last_error_kind,
		       COALESCE(last_error_msg, '') AS last_error_msg,
		       last_error_at
		FROM appointment_sync_links
		WHERE appointment_id = $1
	`
	err := r.db.GetContext(ctx, &link, query, appointmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("SyncLinkRepository:GetByAppointmentID:Error", "error", err, "appointment_id", appointmentID)
		return nil, err
	}
	return &link, nil
}

func (r *syncLinkRepository) Save(ctx context.Context, appointmentID uuid.UUID, eventID string, syncedAt time.Time) error {
	query := `
		INSERT INTO appointment_sync_links (appointment_id, event_id, last_synced_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (appointment_id)
		DO UPDATE SET
			event_id = EXCLUDED.event_id,
			last_synced_at = EXCLUDED.last_synced_at,
			last_error_kind = NULL,
			last_error_msg = NULL,
			last_error_at = NULL
	`
	err := r.db.ExecContext(ctx, query, appointmentID, eventID, syncedAt)
	if err != nil {
		logger.Error("SyncLinkRepository:Save:Error", "error", err, "appointment_id", appointmentID)
	}
	return err
}

// RecordError keeps the link but notes the failure, so the admin status view
// can surface stuck appointments.
func (r *syncLinkRepository) RecordError(ctx context.Context, appointmentID uuid.UUID, kind, message string, at time.Time) error {
	query := `
		INSERT INTO appointment_sync_links (appointment_id, event_id, last_error_kind, last_error_msg, last_error_at)
		VALUES ($1, '', $2, $3, $4)
		ON CONFLICT (appointment_id)
		DO UPDATE SET
			last_error_kind = EXCLUDED.last_error_kind,
			last_error_msg = EXCLUDED.last_error_msg,
			last_error_at = EXCLUDED.last_error_at
	`
	err := r.db.ExecContext(ctx, query, appointmentID, kind, message, at)
	if err != nil {
		logger.Error("SyncLinkRepository:RecordError:Error", "error", err, "appointment_id", appointmentID)
	}
	return err
}

func (r *syncLinkRepository) TouchSyncedAt(ctx context.Context, appointmentID uuid.UUID, syncedAt time.Time) error {
	query := `UPDATE appointment_sync_links SET last_synced_at = $2 WHERE appointment_id = $1`
	err := r.db.ExecContext(ctx, query, appointmentID, syncedAt)
	if err != nil {
		logger.Error("SyncLinkRepository:TouchSyncedAt:Error", "error", err, "appointment_id", appointmentID)
	}
	return err
}

func (r *syncLinkRepository) Delete(ctx context.Context, appointmentID uuid.UUID) error {
	err := r.db.ExecContext(ctx, `DELETE FROM appointment_sync_links WHERE appointment_id = $1`, appointmentID)
	if err != nil {
		logger.Error("SyncLinkRepository:Delete:Error", "error", err, "appointment_id", appointmentID)
	}
	return err
}
