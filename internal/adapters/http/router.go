package httpadapter

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/example/devtrack-api/config"
	"github.com/example/devtrack-api/internal/adapters/http/handlers"
)

type Router struct {
	cfg      *config.Config
	handlers *handlers.AuthHandler
	authMW   echo.MiddlewareFunc
}

func NewRouter(cfg *config.Config, h *handlers.AuthHandler, authMW echo.MiddlewareFunc) *Router {
	return &Router{cfg: cfg, handlers: h, authMW: authMW}
}

func (r *Router) Setup(e *echo.Echo) {
	base := r.cfg.HTTPBasePath
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	auth := e.Group(base + "/auth")
	auth.POST("/signup", r.handlers.Signup)
	auth.POST("/signin", r.handlers.Login)
	auth.POST("/refresh", r.handlers.Refresh)
	auth.POST("/logout", r.handlers.Logout)

	protected := e.Group(base+"/auth", r.authMW)
	protected.POST("/logout-all", r.handlers.LogoutAll)
	protected.POST("/password", r.handlers.ChangePassword)
	protected.POST("/email/verify", r.handlers.VerifyEmail)
	protected.GET("/sessions", r.handlers.ListSessions)
}
