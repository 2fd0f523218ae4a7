package router

import (
	"clinic-sync/core/middleware"
	"clinic-sync/modules/credentials/controller"

	"github.com/labstack/echo/v4"
)

type CredentialsRouter struct {
	controller *controller.CredentialsController
}

func NewCredentialsRouter(controller *controller.CredentialsController) *CredentialsRouter {
	return &CredentialsRouter{controller: controller}
}

func (r *CredentialsRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	// Google redirects the staff browser here; no bearer token is present.
	v1.GET("/public/credentials/google/callback", r.controller.Callback)

	google := v1.Group("/private/credentials/google")
	google.Use(mw.AuthMiddleware())

	google.GET("/connect-url", r.controller.ConnectURL)
	google.GET("/status", r.controller.Status)
	google.PUT("/toggles", r.controller.UpdateToggles)
	google.DELETE("/connection", r.controller.Disconnect)
}
