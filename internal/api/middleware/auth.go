package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/orgdesk/admin-api/internal/api/metrics"
	"github.com/orgdesk/admin-api/internal/core/domain"
)

// IdentityKey is the echo context key holding the decoded token.
const IdentityKey = "decodedToken"

// TokenVerifier decodes an access token into the identity it asserts.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.Identity, error)
}

// PrincipalChecker resolves the acting principal and its admin grant.
type PrincipalChecker interface {
	ActivePrincipal(ctx context.Context, id string) (*domain.Principal, error)
	AdminGrant(ctx context.Context, principalID string) (*domain.RoleGrant, error)
}

// Auth validates the bearer token and injects the decoded identity into the
// context. A missing token yields domain.ErrMissingToken; a token that fails
// verification yields domain.ErrInvalidToken.
func Auth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				metrics.AuthRejectionsTotal.WithLabelValues("missing_token").Inc()
				return domain.ErrMissingToken
			}

			id, err := v.VerifyToken(token)
			if err != nil {
				metrics.AuthRejectionsTotal.WithLabelValues("invalid_token").Inc()
				return domain.ErrInvalidToken
			}

			c.Set(IdentityKey, id)
			return next(c)
		}
	}
}

// RequirePrincipal admits the request only while the token's principal
// exists with status ok or unverified.
func RequirePrincipal(pc PrincipalChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := identityOf(c)
			if err != nil {
				return err
			}
			if _, err := pc.ActivePrincipal(c.Request().Context(), id.ID); err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					metrics.AuthRejectionsTotal.WithLabelValues("inactive_principal").Inc()
				}
				return err
			}
			return next(c)
		}
	}
}

// RequireAdmin admits the request only when the principal holds an ok admin
// grant. Mount it after RequirePrincipal.
func RequireAdmin(pc PrincipalChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := identityOf(c)
			if err != nil {
				return err
			}
			if _, err := pc.AdminGrant(c.Request().Context(), id.ID); err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					metrics.AuthRejectionsTotal.WithLabelValues("no_admin_grant").Inc()
				}
				return err
			}
			return next(c)
		}
	}
}

// Identity returns the identity injected by Auth, or nil.
func Identity(c echo.Context) *domain.Identity {
	id, _ := c.Get(IdentityKey).(*domain.Identity)
	return id
}

func identityOf(c echo.Context) (*domain.Identity, error) {
	id := Identity(c)
	if id == nil || id.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	return id, nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
