package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/orgdesk/admin-api/internal/api/middleware"
	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stub services
// ---------------------------------------------------------------------------

type stubEntityService struct {
	createFn func(ctx context.Context, e *domain.Entity, in ports.CreateInput) (string, error)
	updateFn func(ctx context.Context, e *domain.Entity, in ports.UpdateInput) error
	getFn    func(ctx context.Context, e *domain.Entity, in ports.ListInput) ([]domain.Record, error)
	searchFn func(ctx context.Context, e *domain.Entity, in ports.ListInput) ([]domain.Record, error)
	selectFn func(ctx context.Context, e *domain.Entity, id string) (*ports.RecordDetail, error)
}

func (s *stubEntityService) Create(ctx context.Context, e *domain.Entity, in ports.CreateInput) (string, error) {
	return s.createFn(ctx, e, in)
}

func (s *stubEntityService) Update(ctx context.Context, e *domain.Entity, in ports.UpdateInput) error {
	return s.updateFn(ctx, e, in)
}

func (s *stubEntityService) Get(ctx context.Context, e *domain.Entity, in ports.ListInput) ([]domain.Record, error) {
	return s.getFn(ctx, e, in)
}

func (s *stubEntityService) Search(ctx context.Context, e *domain.Entity, in ports.ListInput) ([]domain.Record, error) {
	return s.searchFn(ctx, e, in)
}

func (s *stubEntityService) Select(ctx context.Context, e *domain.Entity, id string) (*ports.RecordDetail, error) {
	return s.selectFn(ctx, e, id)
}

type stubAuthService struct {
	ports.AuthService
	loginFn      func(ctx context.Context, username, password string) (*ports.TokenPair, error)
	loginAdminFn func(ctx context.Context, username, password string) (*ports.TokenPair, error)
	refreshFn    func(ctx context.Context, token string) (*ports.TokenPair, error)
}

func (s *stubAuthService) Login(ctx context.Context, u, p string) (*ports.TokenPair, error) {
	return s.loginFn(ctx, u, p)
}

func (s *stubAuthService) LoginAdmin(ctx context.Context, u, p string) (*ports.TokenPair, error) {
	return s.loginAdminFn(ctx, u, p)
}

func (s *stubAuthService) Refresh(ctx context.Context, token string) (*ports.TokenPair, error) {
	return s.refreshFn(ctx, token)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const operator = "0f8fad5b-d9cb-469f-a165-70867728950e"

// newContext builds an echo context for method/target with an optional JSON
// body. When authed is set, the operator identity is injected the way the
// Auth middleware does it.
func newContext(method, target, body string, authed bool) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if authed {
		c.Set(middleware.IdentityKey, &domain.Identity{ID: operator, Username: "root", Status: domain.StatusOK})
	}
	return c, rec
}
