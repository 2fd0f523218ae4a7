package service

import (
	"context"
	"regexp"

	"clinic-sync/core/errors"
	"clinic-sync/core/logger"
	"clinic-sync/core/utils"
	"clinic-sync/modules/appointment/dto"
	"clinic-sync/modules/appointment/entity"
	"clinic-sync/modules/appointment/repository"

	"github.com/google/uuid"
)

// SyncListener observes appointment writes. Listener failures never surface
// to the caller; a sync problem must not block the local operation.
type SyncListener interface {
	OnAppointmentSaved(ctx context.Context, appt *entity.Appointment)
	OnAppointmentDeleted(ctx context.Context, appt *entity.Appointment)
}

type AppointmentService interface {
	Create(ctx context.Context, req *dto.CreateAppointmentRequest) (*entity.Appointment, *errors.AppError)
	Update(ctx context.Context, id uuid.UUID, req *dto.UpdateAppointmentRequest) (*entity.Appointment, *errors.AppError)
	Delete(ctx context.Context, id uuid.UUID) *errors.AppError
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, *errors.AppError)
	List(ctx context.Context, limit, offset int) ([]entity.Appointment, int, *errors.AppError)

	// RescheduleFromRemote applies a date/time change that originated on the
	// remote calendar. The caller is expected to have set the loop-guard flag
	// first; the write still notifies listeners like any other save.
	RescheduleFromRemote(ctx context.Context, id uuid.UUID, date, startTime string) *errors.AppError
	MarkRemoteDeleted(ctx context.Context, id uuid.UUID) *errors.AppError

	RegisterSyncListener(l SyncListener)
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	listeners []SyncListener
}

func NewAppointmentService(repo repository.AppointmentRepository) AppointmentService {
	return &appointmentService{repo: repo}
}

func (s *appointmentService) RegisterSyncListener(l SyncListener) {
	s.listeners = append(s.listeners, l)
}

var (
	dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeFormat = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

func validateSchedule(date, startTime string) *errors.AppError {
	if !dateFormat.MatchString(date) {
		return errors.NewAppError(errors.ErrValidation, "date must be YYYY-MM-DD", nil)
	}
	if !timeFormat.MatchString(startTime) {
		return errors.NewAppError(errors.ErrValidation, "start_time must be HH:MM", nil)
	}
	return nil
}

func (s *appointmentService) Create(ctx context.Context, req *dto.CreateAppointmentRequest) (*entity.Appointment, *errors.AppError) {
	if appErr := validateSchedule(req.Date, req.StartTime); appErr != nil {
		return nil, appErr
	}

	status := req.Status
	if status == "" {
		status = entity.StatusScheduled
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 30
	}

	appt := &entity.Appointment{
		Code:            utils.GenerateID(),
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: duration,
		Status:          status,
		ClientName:      req.ClientName,
		PetName:         req.PetName,
		ServiceNames:    req.ServiceNames,
	}

	created, err := s.repo.Create(ctx, appt)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to create appointment", err)
	}

	s.notifySaved(ctx, created)
	return created, nil
}

func (s *appointmentService) Update(ctx context.Context, id uuid.UUID, req *dto.UpdateAppointmentRequest) (*entity.Appointment, *errors.AppError) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load appointment", err)
	}
	if appt == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "appointment not found", nil)
	}

	if req.Date != "" {
		appt.Date = req.Date
	}
	if req.StartTime != "" {
		appt.StartTime = req.StartTime
	}
	if appErr := validateSchedule(appt.Date, appt.StartTime); appErr != nil {
		return nil, appErr
	}
	if req.DurationMinutes > 0 {
		appt.DurationMinutes = req.DurationMinutes
	}
	if req.Status != "" {
		appt.Status = req.Status
	}
	if req.ClientName != "" {
		appt.ClientName = req.ClientName
	}
	if req.PetName != "" {
		appt.PetName = req.PetName
	}
	if req.ServiceNames != nil {
		appt.ServiceNames = req.ServiceNames
	}

	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to update appointment", err)
	}

	s.notifySaved(ctx, appt)
	return appt, nil
}

func (s *appointmentService) Delete(ctx context.Context, id uuid.UUID) *errors.AppError {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to load appointment", err)
	}
	if appt == nil {
		return errors.NewAppError(errors.ErrNotFound, "appointment not found", nil)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to delete appointment", err)
	}

	for _, l := range s.listeners {
		l.OnAppointmentDeleted(ctx, appt)
	}
	return nil
}

func (s *appointmentService) GetByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, *errors.AppError) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load appointment", err)
	}
	if appt == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "appointment not found", nil)
	}
	return appt, nil
}

func (s *appointmentService) List(ctx context.Context, limit, offset int) ([]entity.Appointment, int, *errors.AppError) {
	appts, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, errors.NewAppError(errors.ErrInternalServer, "failed to list appointments", err)
	}
	return appts, total, nil
}

func (s *appointmentService) RescheduleFromRemote(ctx context.Context, id uuid.UUID, date, startTime string) *errors.AppError {
	if appErr := validateSchedule(date, startTime); appErr != nil {
		return appErr
	}

	if err := s.repo.UpdateSchedule(ctx, id, date, startTime); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to reschedule appointment", err)
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil || appt == nil {
		logger.Error("AppointmentService:RescheduleFromRemote:Reload:Error", "error", err, "appointment_id", id)
		return nil
	}

	s.notifySaved(ctx, appt)
	return nil
}

func (s *appointmentService) MarkRemoteDeleted(ctx context.Context, id uuid.UUID) *errors.AppError {
	if err := s.repo.SetRemoteDeleted(ctx, id, true); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to flag appointment", err)
	}
	return nil
}

func (s *appointmentService) notifySaved(ctx context.Context, appt *entity.Appointment) {
	for _, l := range s.listeners {
		l.OnAppointmentSaved(ctx, appt)
	}
}
