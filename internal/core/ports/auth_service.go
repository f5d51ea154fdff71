package ports

import (
	"context"

	"github.com/orgdesk/admin-api/internal/core/domain"
)

// TokenPair is returned by the login and refresh endpoints.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	LoginAdmin(ctx context.Context, username, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	// VerifyToken validates an access token and returns the identity it carries.
	VerifyToken(token string) (*domain.Identity, error)
	// ActivePrincipal returns domain.ErrUnauthorized unless the principal
	// exists with status ok or unverified.
	ActivePrincipal(ctx context.Context, id string) (*domain.Principal, error)
	// AdminGrant returns domain.ErrUnauthorized unless an ok admin grant exists.
	AdminGrant(ctx context.Context, principalID string) (*domain.RoleGrant, error)
}
