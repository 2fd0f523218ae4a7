package middleware

import (
	"net/http"
	"strings"

	"clinic-sync/core/errors"
	"clinic-sync/core/utils"

	"github.com/labstack/echo/v4"
)

const ContextKeyActorID = "actor_id"

type Middleware struct{}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

// AuthMiddleware guards staff routes with a bearer token and stores the
// actor id on the request context.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return c.JSON(http.StatusUnauthorized,
					errors.NewAppError(errors.ErrMissingAuthorizationHeader, "missing authorization header", nil))
			}

			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == header {
				return c.JSON(http.StatusUnauthorized,
					errors.NewAppError(errors.ErrInvalidTokenFormat, "authorization header must use the Bearer scheme", nil))
			}

			tokenData, err := utils.ValidateAndParseToken(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errors.AsAppError(err))
			}

			c.Set(ContextKeyActorID, tokenData.ActorID)
			return next(c)
		}
	}
}
