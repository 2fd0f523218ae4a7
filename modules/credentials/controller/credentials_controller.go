package controller

import (
	"net/http"

	"clinic-sync/core/controller"
	"clinic-sync/core/errors"
	"clinic-sync/core/middleware"
	"clinic-sync/modules/credentials/dto"
	"clinic-sync/modules/credentials/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CredentialsController struct {
	base  controller.BaseController
	vault service.VaultService
}

func NewCredentialsController(vault service.VaultService) *CredentialsController {
	return &CredentialsController{
		base:  controller.NewBaseController(),
		vault: vault,
	}
}

// ConnectURL hands the browser the Google consent URL.
// GET /api/v1/private/credentials/google/connect-url
func (c *CredentialsController) ConnectURL(ctx echo.Context) error {
	actorID, _ := ctx.Get(middleware.ContextKeyActorID).(uuid.UUID)

	authURL, appErr := c.vault.BuildAuthorizationURL(ctx.Request().Context(), actorID)
	if appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, dto.AuthorizationURLResponse{
		URL:        authURL,
		Configured: authURL != "",
	})
}

// Callback receives the Google redirect. This route is public; the one-time
// state token is what authenticates the request.
// GET /api/v1/public/credentials/google/callback
func (c *CredentialsController) Callback(ctx echo.Context) error {
	if errParam := ctx.QueryParam("error"); errParam != "" {
		return ctx.HTML(http.StatusOK, consentPage("Connection cancelled",
			"Google reported: "+errParam+". You can close this tab."))
	}

	code := ctx.QueryParam("code")
	state := ctx.QueryParam("state")
	if code == "" || state == "" {
		return c.base.BadRequest(errors.ErrInvalidInput, "missing code or state parameter")
	}

	if appErr := c.vault.ExchangeCode(ctx.Request().Context(), code, state); appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.HTML(http.StatusOK, consentPage("Google Calendar connected",
		"The clinic calendar will now sync. You can close this tab."))
}

// Status reports whether a connection exists and how it is configured.
// GET /api/v1/private/credentials/google/status
func (c *CredentialsController) Status(ctx echo.Context) error {
	status, appErr := c.vault.Status(ctx.Request().Context())
	if appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, status)
}

// UpdateToggles flips the sync feature switches.
// PUT /api/v1/private/credentials/google/toggles
func (c *CredentialsController) UpdateToggles(ctx echo.Context) error {
	var req dto.UpdateTogglesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.base.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}
	if req.CalendarSyncEnabled == nil {
		return c.base.BadRequest(errors.ErrInvalidRequestData, "calendar_sync_enabled is required")
	}

	if appErr := c.vault.SetCalendarSyncEnabled(ctx.Request().Context(), *req.CalendarSyncEnabled); appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "toggles updated"})
}

// Disconnect tears down the connection and erases stored credentials.
// DELETE /api/v1/private/credentials/google/connection
func (c *CredentialsController) Disconnect(ctx echo.Context) error {
	if appErr := c.vault.Disconnect(ctx.Request().Context()); appErr != nil {
		return c.base.ErrorResponse(ctx, appErr)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "disconnected"})
}

func consentPage(title, body string) string {
	return "<!DOCTYPE html><html><head><title>" + title + "</title></head>" +
		"<body style=\"font-family:sans-serif;margin:3em\"><h2>" + title + "</h2>" +
		"<p>" + body + "</p></body></html>"
}
