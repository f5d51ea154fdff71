package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/orgdesk/admin-api/internal/api/middleware"
	"github.com/orgdesk/admin-api/internal/core/domain"
)

// operatorID returns the principal id injected by the Auth middleware and
// fails fast when the handler is mounted without it.
func operatorID(c echo.Context) (string, error) {
	id := middleware.Identity(c)
	if id == nil || id.ID == "" {
		return "", domain.ErrUnauthorized
	}
	return id.ID, nil
}
