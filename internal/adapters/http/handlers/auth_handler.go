package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/devtrack-api/internal/usecase"
	res "github.com/example/devtrack-api/pkg/http"
)

type AuthHandler struct {
	service usecase.Service
}

func NewAuthHandler(s usecase.Service) *AuthHandler { return &AuthHandler{service: s} }

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) Signup(c echo.Context) error {
	req := new(signupRequest)
	if err := c.Bind(req); err != nil {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", requestIDFromCtx(c), nil)
	}
	result, err := h.service.Signup(c.Request().Context(), usecase.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return res.DomainErrorJSON(c, err, requestIDFromCtx(c))
	}
	return res.JSON(c, http.StatusCreated, result)
}

func (h *AuthHandler) Login(c echo.Context) error {
	req := new(loginRequest)
	if err := c.Bind(req); err != nil {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", requestIDFromCtx(c), nil)
	}
	result, err := h.service.Login(c.Request().Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return res.DomainErrorJSON(c, err, requestIDFromCtx(c))
	}
	return res.JSON(c, http.StatusOK, result)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	req := new(refreshRequest)
	if err := c.Bind(req); err != nil {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", requestIDFromCtx(c), nil)
	}
	tokens, err := h.service.RefreshTokens(c.Request().Context(), req.RefreshToken, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return res.DomainErrorJSON(c, err, requestIDFromCtx(c))
	}
	return res.JSON(c, http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	req := new(logoutRequest)
	if err := c.Bind(req); err != nil {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", requestIDFromCtx(c), nil)
	}
	if err := h.service.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return res.DomainErrorJSON(c, err, requestIDFromCtx(c))
	}
	return res.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID := c.Get("user_id").(string)
	if err := h.service.LogoutFromAllDevices(c.Request().Context(), userID); err != nil {
		return res.DomainErrorJSON(c, err, requestIDFromCtx(c))
	}
	return res.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	req := new(changePasswordRequest)
	if err := c.Bind(req); err != nil {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", requestIDFromCtx(c), nil)
	}
	userID := c.Get("user_id").(string)
	if err := h.service.ChangePassword(c.Request().Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		return res.DomainErrorJSON(c, err, requestIDFromCtx(c))
	}
	return res.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	userID := c.Get("user_id").(string)
	user, err := h.service.VerifyEmail(c.Request().Context(), userID)
	if err != nil {
		return res.DomainErrorJSON(c, err, requestIDFromCtx(c))
	}
	return res.JSON(c, http.StatusOK, user)
}

func (h *AuthHandler) ListSessions(c echo.Context) error {
	userID := c.Get("user_id").(string)
	currentSession := c.Request().Header.Get("X-Session-Id")
	sessions, err := h.service.ListSessions(c.Request().Context(), userID, currentSession)
	if err != nil {
		return res.DomainErrorJSON(c, err, requestIDFromCtx(c))
	}
	return res.JSON(c, http.StatusOK, sessions)
}

func requestIDFromCtx(c echo.Context) string {
	if reqID := c.Response().Header().Get(echo.HeaderXRequestID); reqID != "" {
		return reqID
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
