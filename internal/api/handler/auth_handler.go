package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/orgdesk/admin-api/internal/api/metrics"
	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// loginRequest accepts the credentials either at the top level or wrapped in
// the {data: {...}} envelope the admin client sends.
type loginRequest struct {
	credentials
	Data *credentials `json:"data,omitempty"`
}

func (r *loginRequest) creds() *credentials {
	if r.Data != nil {
		return r.Data
	}
	return &r.credentials
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Login authenticates a user and returns an access and a refresh token.
//
// @Summary      User login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  ports.TokenPair
// @Failure      400
// @Failure      401
// @Failure      429   {object}  map[string]string
// @Router       /user/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	return h.login(c, "user", h.authService.Login)
}

// AdminLogin is Login restricted to principals holding an admin grant.
//
// @Summary      Admin login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  ports.TokenPair
// @Failure      400
// @Failure      401
// @Failure      429   {object}  map[string]string
// @Router       /admin/login [post]
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	return h.login(c, "admin", h.authService.LoginAdmin)
}

type loginFunc func(ctx context.Context, username, password string) (*ports.TokenPair, error)

func (h *AuthHandler) login(c echo.Context, kind string, fn loginFunc) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "invalid payload"}
	}
	cred := req.creds()
	if err := c.Validate(cred); err != nil {
		return err
	}

	pair, err := fn(c.Request().Context(), cred.Username, cred.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues(kind, "failure").Inc()
		}
		return err
	}

	metrics.LoginsTotal.WithLabelValues(kind, "success").Inc()
	return c.JSON(http.StatusOK, pair)
}

// Refresh exchanges a refresh token for a new access token.
//
// @Summary      Refresh the access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  ports.TokenPair
// @Failure      400
// @Failure      401
// @Failure      403   {object}  map[string]string
// @Router       /user/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "invalid payload"}
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	pair, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}
