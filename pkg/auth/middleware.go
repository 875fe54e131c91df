package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	apierr "github.com/spinvfx/spinfab/pkg/api/errors"
	"github.com/spinvfx/spinfab/pkg/domain"
)

const operatorKey = "operator"

// Middleware authenticates every request via its Authorization header
// and stashes the resulting user on the echo context.
func Middleware(manager *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				token = ""
			}

			user, err := manager.FromToken(token)
			if err != nil {
				return apierr.NewErrorMessage(401, "Unauthorized", apierr.WithError(err))
			}
			c.Set(operatorKey, user)
			return next(c)
		}
	}
}

// Operator reads the authenticated user off the echo context.
func Operator(c echo.Context) domain.User {
	user, _ := c.Get(operatorKey).(domain.User)
	return user
}

// WithOperator stashes a user, for handler tests.
func WithOperator(c echo.Context, user domain.User) {
	c.Set(operatorKey, user)
}
