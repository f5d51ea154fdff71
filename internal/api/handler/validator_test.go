package handler

import (
	"errors"
	"testing"

	"github.com/orgdesk/admin-api/internal/core/domain"
)

func TestValidator_ReportsJSONFieldNames(t *testing.T) {
	err := NewValidator().Validate(&refreshRequest{})

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *domain.ValidationError, got %T", err)
	}
	if ve.Field != "refreshToken" {
		t.Errorf("expected field refreshToken, got %q", ve.Field)
	}
	if ve.Reason != "refreshToken is required" {
		t.Errorf("unexpected reason %q", ve.Reason)
	}
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Error("validation errors must match ErrInvalidInput")
	}
}

func TestValidator_Valid(t *testing.T) {
	if err := NewValidator().Validate(&credentials{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
