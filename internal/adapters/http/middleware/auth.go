package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/example/devtrack-api/internal/tokenverify"
	res "github.com/example/devtrack-api/pkg/http"
)

type AuthMiddleware struct {
	verifier tokenverify.Verifier
}

func NewAuthMiddleware(verifier tokenverify.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Handler requires a valid bearer access token and stashes the caller's
// identity into the echo context.
func (m *AuthMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get(echo.HeaderAuthorization)
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", "missing token", requestIDFromCtx(c), nil)
		}
		result, err := m.verifier.Verify(parts[1])
		if err != nil {
			return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", "invalid token", requestIDFromCtx(c), nil)
		}
		c.Set("user_id", result.UserID)
		c.Set("email", result.Email)
		c.Set("username", result.Username)
		return next(c)
	}
}

func requestIDFromCtx(c echo.Context) string {
	if reqID := c.Response().Header().Get(echo.HeaderXRequestID); reqID != "" {
		return reqID
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
