package router

import (
	"clinic-sync/core/middleware"
	"clinic-sync/modules/calendar/controller"

	"github.com/labstack/echo/v4"
)

type CalendarRouter struct {
	controller *controller.CalendarController
}

func NewCalendarRouter(controller *controller.CalendarController) *CalendarRouter {
	return &CalendarRouter{controller: controller}
}

func (r *CalendarRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	// Google delivers push notifications here; the channel token is the
	// only authentication.
	v1.POST("/public/google-calendar/webhook", r.controller.Webhook)

	private := v1.Group("/private/google-calendar")
	private.Use(mw.AuthMiddleware())
	private.GET("/sync-status", r.controller.SyncStatus)
}
