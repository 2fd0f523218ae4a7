package repository

import (
	"context"
	"database/sql"

	"clinic-sync/core/database"
	"clinic-sync/core/logger"
	"clinic-sync/modules/appointment/entity"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt *entity.Appointment) (*entity.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	List(ctx context.Context, limit, offset int) ([]entity.Appointment, int, error)
	Update(ctx context.Context, appt *entity.Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdateSchedule writes only the date/time pair. Used for remote-originated
	// changes so other local edits are never clobbered.
	UpdateSchedule(ctx context.Context, id uuid.UUID, date, startTime string) error
	SetRemoteDeleted(ctx context.Context, id uuid.UUID, deleted bool) error
}

type appointmentRepository struct {
	db database.IDatabase
}

func NewAppointmentRepository(db database.IDatabase) AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Create(ctx context.Context, appt *entity.Appointment) (*entity.Appointment, error) {
	query := `
		INSERT INTO appointments (code, visit_date, start_time, duration_minutes, status, client_name, pet_name, service_names, remote_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		appt.Code, appt.Date, appt.StartTime, appt.DurationMinutes,
		appt.Status, appt.ClientName, appt.PetName, appt.ServiceNames,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		logger.Error("AppointmentRepository:Create:Error", "error", err)
		return nil, err
	}
	return appt, nil
}

func (r *appointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	var appt entity.Appointment
	query := `
		SELECT id, code, to_char(visit_date, 'YYYY-MM-DD') AS visit_date,
		       to_char(start_time, 'HH24:MI') AS start_time,
		       duration_minutes, status, client_name, pet_name, service_names,
		       remote_deleted, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &appt, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("AppointmentRepository:GetByID:Error", "error", err, "appointment_id", id)
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) List(ctx context.Context, limit, offset int) ([]entity.Appointment, int, error) {
	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, `SELECT COUNT(*) FROM appointments`); err != nil {
		logger.Error("AppointmentRepository:List:Count:Error", "error", err)
		return nil, 0, err
	}

	query := `
		SELECT id, code, to_char(visit_date, 'YYYY-MM-DD') AS visit_date,
		       to_char(start_time, 'HH24:MI') AS start_time,
		       duration_minutes, status, client_name, pet_name, service_names,
		       remote_deleted, created_at, updated_at
		FROM appointments
		ORDER BY visit_date DESC, start_time DESC
		LIMIT $1 OFFSET $2
	`
	var appts []entity.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, limit, offset); err != nil {
		logger.Error("AppointmentRepository:List:Select:Error", "error", err)
		return nil, 0, err
	}
	return appts, totalItems, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appt *entity.Appointment) error {
	query := `
		UPDATE appointments
		SET visit_date = $1, start_time = $2, duration_minutes = $3, status = $4,
		    client_name = $5, pet_name = $6, service_names = $7, updated_at = NOW()
		WHERE id = $8
	`
	err := r.db.ExecContext(ctx, query,
		appt.Date, appt.StartTime, appt.DurationMinutes, appt.Status,
		appt.ClientName, appt.PetName, appt.ServiceNames, appt.ID,
	)
	if err != nil {
		logger.Error("AppointmentRepository:Update:Error", "error", err, "appointment_id", appt.ID)
	}
	return err
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		logger.Error("AppointmentRepository:Delete:Error", "error", err, "appointment_id", id)
	}
	return err
}

func (r *appointmentRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, date, startTime string) error {
	query := `
		UPDATE appointments
		SET visit_date = $1, start_time = $2, updated_at = NOW()
		WHERE id = $3
	`
	err := r.db.ExecContext(ctx, query, date, startTime, id)
	if err != nil {
		logger.Error("AppointmentRepository:UpdateSchedule:Error", "error", err, "appointment_id", id)
	}
	return err
}

func (r *appointmentRepository) SetRemoteDeleted(ctx context.Context, id uuid.UUID, deleted bool) error {
	query := `UPDATE appointments SET remote_deleted = $1, updated_at = NOW() WHERE id = $2`
	err := r.db.ExecContext(ctx, query, deleted, id)
	if err != nil {
		logger.Error("AppointmentRepository:SetRemoteDeleted:Error", "error", err, "appointment_id", id)
	}
	return err
}
