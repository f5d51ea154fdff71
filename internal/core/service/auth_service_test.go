package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/infrastructure/security"
)

const testSecret = "test-secret"

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type authFixture struct {
	g       *faultyGateway
	svc     *AuthService
	aliceID string
}

// newAuthFixture seeds alice (password "secret", status given) with an
// optional admin grant.
func newAuthFixture(t *testing.T, status domain.Status, grant domain.Status) *authFixture {
	t.Helper()

	hasher := security.NewBcryptHasher()
	hash, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	g := newFaulty()
	aliceID := uuid.NewString()
	seedRecord(g, domain.Users, domain.Record{"id": aliceID, "username": "alice", "password": hash, "status": string(status)})
	if grant != "" {
		seedRecord(g, domain.Admins, domain.Record{"id": uuid.NewString(), "userId": aliceID, "role": "superadmin", "status": string(grant)})
	}

	return &authFixture{
		g:       g,
		svc:     NewAuthService(g, hasher, testSecret, time.Hour, zerolog.Nop()),
		aliceID: aliceID,
	}
}

func decode(t *testing.T, token string) *TokenClaims {
	t.Helper()
	claims := &TokenClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return claims
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestAuthService_Login_IssuesAccessAndRefresh(t *testing.T) {
	f := newAuthFixture(t, domain.StatusOK, "")

	pair, err := f.svc.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	access := decode(t, pair.AccessToken)
	if access.Subject != f.aliceID || access.Kind != TokenAccess || access.Username != "alice" {
		t.Errorf("unexpected access claims: %+v", access)
	}
	if access.ExpiresAt == nil {
		t.Fatal("access token must expire")
	}
	if ttl := access.ExpiresAt.Sub(access.IssuedAt.Time); ttl != time.Hour {
		t.Errorf("expected 1h lifetime, got %s", ttl)
	}

	refresh := decode(t, pair.RefreshToken)
	if refresh.Subject != f.aliceID || refresh.Kind != TokenRefresh {
		t.Errorf("unexpected refresh claims: %+v", refresh)
	}
	if refresh.ExpiresAt != nil {
		t.Errorf("refresh token must not expire, got %v", refresh.ExpiresAt)
	}
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t, domain.StatusOK, "")

	_, wrongPassword := f.svc.Login(context.Background(), "alice", "nope")
	_, unknownUser := f.svc.Login(context.Background(), "mallory", "secret")

	if !errors.Is(wrongPassword, domain.ErrInvalidCredentials) || !errors.Is(unknownUser, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", wrongPassword, unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Errorf("error messages must not differ: %q vs %q", wrongPassword, unknownUser)
	}
}

func TestAuthService_Login_UnknownUserStillCompares(t *testing.T) {
	g := newFaulty()
	seedRecord(g, domain.Users, domain.Record{"id": uuid.NewString(), "username": "alice", "password": "hashed:secret", "status": "ok"})
	hasher := &countingHasher{}
	svc := NewAuthService(g, hasher, testSecret, time.Hour, zerolog.Nop())

	for _, name := range []string{"mallory", "trudy"} {
		if _, err := svc.Login(context.Background(), name, "secret"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
	if hasher.compares != 2 {
		t.Errorf("expected one comparison per unknown-user attempt, got %d", hasher.compares)
	}
	if hasher.hashes != 1 {
		t.Errorf("decoy hash must be computed once, got %d", hasher.hashes)
	}

	if _, err := svc.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("known user login: %v", err)
	}
	if hasher.compares != 3 {
		t.Errorf("expected 3 comparisons in total, got %d", hasher.compares)
	}
}

func TestAuthService_Login_SuspendedPrincipal(t *testing.T) {
	f := newAuthFixture(t, domain.StatusSuspended, "")

	if _, err := f.svc.Login(context.Background(), "alice", "secret"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_StorageError(t *testing.T) {
	f := newAuthFixture(t, domain.StatusOK, "")
	f.g.findErr = errors.New("db down")

	_, err := f.svc.Login(context.Background(), "alice", "secret")
	if err == nil || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected a storage error, got %v", err)
	}
}

func TestAuthService_LoginAdmin(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		f := newAuthFixture(t, domain.StatusOK, domain.StatusOK)
		if _, err := f.svc.LoginAdmin(context.Background(), "alice", "secret"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("revoked grant", func(t *testing.T) {
		f := newAuthFixture(t, domain.StatusOK, domain.StatusRevoked)
		if _, err := f.svc.LoginAdmin(context.Background(), "alice", "secret"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("no grant", func(t *testing.T) {
		f := newAuthFixture(t, domain.StatusOK, "")
		if _, err := f.svc.LoginAdmin(context.Background(), "alice", "secret"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

// ---------------------------------------------------------------------------
// Token verification
// ---------------------------------------------------------------------------

func TestAuthService_VerifyToken(t *testing.T) {
	f := newAuthFixture(t, domain.StatusOK, "")
	pair, err := f.svc.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id, err := f.svc.VerifyToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.ID != f.aliceID || id.Username != "alice" || id.Status != domain.StatusOK {
		t.Errorf("unexpected identity: %+v", id)
	}

	if _, err := f.svc.VerifyToken(pair.RefreshToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("refresh token must not pass as access token, got %v", err)
	}
	if _, err := f.svc.VerifyToken("garbage"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for garbage, got %v", err)
	}

	other := NewAuthService(f.g, plainHasher{}, "other-secret", time.Hour, zerolog.Nop())
	if _, err := other.VerifyToken(pair.AccessToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestAuthService_VerifyToken_Expired(t *testing.T) {
	f := newAuthFixture(t, domain.StatusOK, "")
	f.svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := f.svc.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	f.svc.now = time.Now
	if _, err := f.svc.VerifyToken(pair.AccessToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	f := newAuthFixture(t, domain.StatusOK, "")
	pair, _ := f.svc.Login(context.Background(), "alice", "secret")

	refreshed, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.VerifyToken(refreshed.AccessToken); err != nil {
		t.Errorf("refreshed access token invalid: %v", err)
	}

	if _, err := f.svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("access token must not refresh, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Principal checks
// ---------------------------------------------------------------------------

func TestAuthService_ActivePrincipal(t *testing.T) {
	cases := []struct {
		status domain.Status
		ok     bool
	}{
		{domain.StatusOK, true},
		{domain.StatusUnverified, true},
		{domain.StatusSuspended, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newAuthFixture(t, tc.status, "")
			_, err := f.svc.ActivePrincipal(context.Background(), f.aliceID)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}

	f := newAuthFixture(t, domain.StatusOK, "")
	if _, err := f.svc.ActivePrincipal(context.Background(), uuid.NewString()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("missing principal: expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_AdminGrant(t *testing.T) {
	f := newAuthFixture(t, domain.StatusOK, domain.StatusOK)
	g, err := f.svc.AdminGrant(context.Background(), f.aliceID)
	if err != nil || g.UserID != f.aliceID {
		t.Fatalf("expected grant for alice, got %+v (err=%v)", g, err)
	}

	f = newAuthFixture(t, domain.StatusOK, domain.StatusRevoked)
	if _, err := f.svc.AdminGrant(context.Background(), f.aliceID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("revoked grant: expected ErrUnauthorized, got %v", err)
	}

	f.g.findErr = errors.New("db down")
	if _, err := f.svc.AdminGrant(context.Background(), f.aliceID); err == nil || errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("storage error must not look like a missing grant, got %v", err)
	}
}
