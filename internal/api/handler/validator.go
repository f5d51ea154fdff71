package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/orgdesk/admin-api/internal/core/domain"
)

// requestValidator wraps go-playground/validator so Echo can call c.Validate(req).
// Failures come back as *domain.ValidationError naming the JSON field.
type requestValidator struct {
	v *validator.Validate
}

// NewValidator returns a validator ready to be assigned to echo.Echo.Validator.
func NewValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

// Validate satisfies the echo.Validator interface.
func (rv *requestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}

	reasons := make([]string, 0, len(ve))
	for _, fe := range ve {
		reasons = append(reasons, fieldError(fe))
	}
	return &domain.ValidationError{Field: ve[0].Field(), Reason: strings.Join(reasons, "; ")}
}

func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a uuid"
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
