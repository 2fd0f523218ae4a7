package controller

import (
	"net/http"

	"clinic-sync/core/controller"
	"clinic-sync/core/errors"
	"clinic-sync/modules/calendar/service"

	"github.com/labstack/echo/v4"
)

type CalendarController struct {
	base    controller.BaseController
	inbound service.InboundSyncService
}

func NewCalendarController(inbound service.InboundSyncService) *CalendarController {
	return &CalendarController{
		base:    controller.NewBaseController(),
		inbound: inbound,
	}
}

// Webhook receives Google push notifications. The body is empty; everything
// of interest rides in headers. Google retries on non-2xx, so anything past
// token validation acknowledges with 200.
// POST /api/v1/public/google-calendar/webhook
func (c *CalendarController) Webhook(ctx echo.Context) error {
	token := ctx.Request().Header.Get("X-Goog-Channel-Token")
	resourceState := ctx.Request().Header.Get("X-Goog-Resource-State")

	if appErr := c.inbound.HandleWebhookPing(ctx.Request().Context(), token, resourceState); appErr != nil {
		if errors.IsCode(appErr, errors.ErrUnauthorized) {
			return ctx.NoContent(http.StatusUnauthorized)
		}
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.NoContent(http.StatusOK)
}

// SyncStatus reports the sync machinery's state for the admin screen.
// GET /api/v1/private/google-calendar/sync-status
func (c *CalendarController) SyncStatus(ctx echo.Context) error {
	status, appErr := c.inbound.SyncStatus(ctx.Request().Context())
	if appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, status)
}
