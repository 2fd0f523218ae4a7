package controller

import (
	"net/http"
	"strconv"

	"clinic-sync/core/controller"
	"clinic-sync/core/errors"
	"clinic-sync/modules/appointment/dto"
	"clinic-sync/modules/appointment/entity"
	"clinic-sync/modules/appointment/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AppointmentController struct {
	base    controller.BaseController
	service service.AppointmentService
}

func NewAppointmentController(svc service.AppointmentService) *AppointmentController {
	return &AppointmentController{
		base:    controller.NewBaseController(),
		service: svc,
	}
}

// Create books a visit.
// POST /api/v1/private/appointments
func (c *AppointmentController) Create(ctx echo.Context) error {
	var req dto.CreateAppointmentRequest
	if err := ctx.Bind(&req); err != nil {
		return c.base.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	appt, appErr := c.service.Create(ctx.Request().Context(), &req)
	if appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusCreated, toResponse(appt))
}

// Update edits a visit.
// PUT /api/v1/private/appointments/:id
func (c *AppointmentController) Update(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.base.BadRequest(errors.ErrInvalidInput, "invalid appointment id")
	}

	var req dto.UpdateAppointmentRequest
	if err := ctx.Bind(&req); err != nil {
		return c.base.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	appt, appErr := c.service.Update(ctx.Request().Context(), id, &req)
	if appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, toResponse(appt))
}

// Delete removes a visit permanently.
// DELETE /api/v1/private/appointments/:id
func (c *AppointmentController) Delete(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.base.BadRequest(errors.ErrInvalidInput, "invalid appointment id")
	}

	if appErr := c.service.Delete(ctx.Request().Context(), id); appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "appointment deleted"})
}

// Get returns one visit.
// GET /api/v1/private/appointments/:id
func (c *AppointmentController) Get(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.base.BadRequest(errors.ErrInvalidInput, "invalid appointment id")
	}

	appt, appErr := c.service.GetByID(ctx.Request().Context(), id)
	if appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, toResponse(appt))
}

// List returns visits, newest first.
// GET /api/v1/private/appointments?limit=&offset=
func (c *AppointmentController) List(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(ctx.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	appts, total, appErr := c.service.List(ctx.Request().Context(), limit, offset)
	if appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}

	resp := dto.AppointmentListResponse{TotalItems: total}
	for i := range appts {
		resp.Appointments = append(resp.Appointments, *toResponse(&appts[i]))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func toResponse(appt *entity.Appointment) *dto.AppointmentResponse {
	return &dto.AppointmentResponse{
		ID:              appt.ID.String(),
		Code:            appt.Code,
		Date:            appt.Date,
		StartTime:       appt.StartTime,
		DurationMinutes: appt.DurationMinutes,
		Status:          appt.Status,
		ClientName:      appt.ClientName,
		PetName:         appt.PetName,
		ServiceNames:    appt.ServiceNames,
		RemoteDeleted:   appt.RemoteDeleted,
		CreatedAt:       appt.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       appt.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
