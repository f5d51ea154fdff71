package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// TokenClaims is the JWT payload: a principal snapshot plus the token kind.
type TokenClaims struct {
	Username string        `json:"username"`
	Status   domain.Status `json:"status"`
	Kind     TokenKind     `json:"kind"`
	jwt.RegisteredClaims
}

// AuthService implements login, token issuance and the principal checks used
// by the request pipeline.
type AuthService struct {
	store    ports.RecordReader
	hasher   ports.PasswordHasher
	secret   []byte
	tokenTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time

	// decoy is compared against when the username is unknown so both
	// rejection paths pay for one hash comparison.
	decoyOnce sync.Once
	decoy     string
}

func NewAuthService(
	store ports.RecordReader,
	hasher ports.PasswordHasher,
	secret string,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AuthService{
		store:    store,
		hasher:   hasher,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		log:      log,
		now:      time.Now,
	}
}

// Login authenticates by username and password. Unknown usernames and wrong
// passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.TokenPair, error) {
	p, err := s.authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.issue(p)
}

// LoginAdmin is Login restricted to principals holding an ok admin grant.
func (s *AuthService) LoginAdmin(ctx context.Context, username, password string) (*ports.TokenPair, error) {
	p, err := s.authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if _, err := s.AdminGrant(ctx, p.ID); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.log.Info().Str("username", username).Msg("admin login rejected: no grant")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	return s.issue(p)
}

// Refresh exchanges a refresh token for a new access token. The principal is
// re-checked so suspended accounts cannot refresh.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	claims, err := s.parse(refreshToken)
	if err != nil || claims.Kind != TokenRefresh {
		return nil, domain.ErrInvalidToken
	}

	p, err := s.ActivePrincipal(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	access, err := s.sign(p, TokenAccess)
	if err != nil {
		return nil, err
	}
	return &ports.TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}

// VerifyToken validates signature, expiry and kind of an access token.
func (s *AuthService) VerifyToken(token string) (*domain.Identity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	if claims.Kind != TokenAccess || claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}

	return &domain.Identity{
		ID:       claims.Subject,
		Username: claims.Username,
		Status:   claims.Status,
	}, nil
}

func (s *AuthService) ActivePrincipal(ctx context.Context, id string) (*domain.Principal, error) {
	rec, err := s.store.FindByID(ctx, domain.Users, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}

	p := domain.PrincipalFromRecord(rec)
	if !p.Active() {
		return nil, domain.ErrUnauthorized
	}
	return p, nil
}

func (s *AuthService) AdminGrant(ctx context.Context, principalID string) (*domain.RoleGrant, error) {
	rec, err := s.store.FindOne(ctx, domain.Admins, "userId", principalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("load admin grant: %w", err)
	}

	g := domain.RoleGrantFromRecord(rec)
	if !g.Granted() {
		return nil, domain.ErrUnauthorized
	}
	return g, nil
}

func (s *AuthService) authenticate(ctx context.Context, username, password string) (*domain.Principal, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	rec, err := s.store.FindOne(ctx, domain.Users, "username", username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.compareDecoy(password)
			s.log.Info().Str("username", username).Msg("login rejected")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}

	p := domain.PrincipalFromRecord(rec)
	ok, err := s.hasher.Compare(password, p.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok || !p.Active() {
		s.log.Info().Str("username", username).Msg("login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	s.log.Info().Str("username", username).Msg("login succeeded")
	return p, nil
}

func (s *AuthService) compareDecoy(password string) {
	s.decoyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.log.Error().Err(err).Msg("decoy hash")
			return
		}
		s.decoy = h
	})
	if s.decoy != "" {
		_, _ = s.hasher.Compare(password, s.decoy)
	}
}

func (s *AuthService) issue(p *domain.Principal) (*ports.TokenPair, error) {
	access, err := s.sign(p, TokenAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(p, TokenRefresh)
	if err != nil {
		return nil, err
	}
	return &ports.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) sign(p *domain.Principal, kind TokenKind) (string, error) {
	now := s.now()
	claims := TokenClaims{
		Username: p.Username,
		Status:   p.Status,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  p.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if kind == TokenAccess {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.tokenTTL))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (s *AuthService) parse(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

var _ ports.AuthService = (*AuthService)(nil)
