package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/orgdesk/admin-api/internal/core/domain"
)

// messageResponse is the body sent with token failures.
type messageResponse struct {
	Message string `json:"message"`
}

// serverErrorResponse is the body sent with every 500.
type serverErrorResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes.
//   - Sends token failures with a {"message"} body and every other 4xx bare.
//   - Logs unexpected errors and answers {"status":"server error","msg"}.
//     msg carries the error text only when exposeErrors is set.
func NewHTTPErrorHandler(log zerolog.Logger, exposeErrors bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c, exposeErrors)

		if c.Request().Method == http.MethodHead || body == nil {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context, exposeErrors bool) (int, any) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, serverErrorResponse{Status: "server error", Msg: fmt.Sprintf("%v", he.Message)}
		}
		return he.Code, messageResponse{Message: fmt.Sprintf("%v", he.Message)}
	}

	switch {
	case errors.Is(err, domain.ErrMissingToken):
		return http.StatusUnauthorized, messageResponse{Message: "No token provided."}
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusForbidden, messageResponse{Message: "Failed to authenticate token."}
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrReadFailed),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrUnknownEntity):
		if errors.Is(err, domain.ErrReadFailed) {
			log.Warn().Err(err).Str("path", c.Path()).Msg("read failed")
		}
		return http.StatusBadRequest, nil
	}

	// Unexpected error: log the real cause.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	msg := "internal server error"
	if exposeErrors {
		msg = err.Error()
	}
	return http.StatusInternalServerError, serverErrorResponse{Status: "server error", Msg: msg}
}
