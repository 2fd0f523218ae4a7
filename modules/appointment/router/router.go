package router

import (
	"clinic-sync/core/middleware"
	"clinic-sync/modules/appointment/controller"

	"github.com/labstack/echo/v4"
)

type AppointmentRouter struct {
	controller *controller.AppointmentController
}

func NewAppointmentRouter(controller *controller.AppointmentController) *AppointmentRouter {
	return &AppointmentRouter{controller: controller}
}

func (r *AppointmentRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	appointments := v1.Group("/private/appointments")
	appointments.Use(mw.AuthMiddleware())

	appointments.POST("", r.controller.Create)
	appointments.GET("", r.controller.List)
	appointments.GET("/:id", r.controller.Get)
	appointments.PUT("/:id", r.controller.Update)
	appointments.DELETE("/:id", r.controller.Delete)
}
