package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestLiveness(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	cases := []struct {
		name     string
		ping     pingFunc
		wantCode int
		want     string
	}{
		{"store up", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"store down", func(context.Context) error { return errors.New("no route") }, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)

			h := NewHealthDependenciesHandler("mongodb", tc.ping, nil)
			if err := h.Readiness(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}

			var body readinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tc.want {
				t.Errorf("expected status %q, got %q", tc.want, body.Status)
			}
			if _, ok := body.Dependencies["redis"]; ok {
				t.Errorf("redis must not be reported when not configured")
			}
			if _, ok := body.Dependencies["mongodb"]; !ok {
				t.Errorf("store must be reported")
			}
		})
	}
}
