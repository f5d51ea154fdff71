package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

// BootstrapInput describes the first administrator of an empty install.
type BootstrapInput struct {
	Username  string
	Password  string
	Firstname string
	Lastname  string
	Role      string
}

// BootstrapResult reports what Bootstrap wrote.
type BootstrapResult struct {
	UserID  string
	Created bool
}

// Bootstrap creates an active user with profile and admin grant. The user is
// recorded as the operator of its own audit entries. Rerunning it with the
// same username only creates whichever of the profile or grant is missing; an
// existing grant is left untouched even when revoked.
func Bootstrap(ctx context.Context, store ports.RecordReader, entities ports.EntityService, in BootstrapInput) (BootstrapResult, error) {
	if in.Role == "" {
		in.Role = "superadmin"
	}

	var res BootstrapResult
	existing, err := store.FindOne(ctx, domain.Users, "username", in.Username)
	switch {
	case err == nil:
		res.UserID = existing.ID()
	case errors.Is(err, domain.ErrNotFound):
		res.UserID = uuid.NewString()
		_, err = entities.Create(ctx, domain.Users, ports.CreateInput{
			ID:         res.UserID,
			OperatorID: res.UserID,
			Data: map[string]any{
				"username":         in.Username,
				"password":         in.Password,
				domain.FieldStatus: string(domain.StatusOK),
			},
		})
		if err != nil {
			return BootstrapResult{}, fmt.Errorf("create user: %w", err)
		}
		res.Created = true
	default:
		return BootstrapResult{}, fmt.Errorf("lookup %q: %w", in.Username, err)
	}

	steps := []struct {
		entity *domain.Entity
		data   map[string]any
	}{
		{domain.UserInformations, map[string]any{"userId": res.UserID, "firstname": in.Firstname, "lastname": in.Lastname}},
		{domain.Admins, map[string]any{"userId": res.UserID, "role": in.Role}},
	}
	for _, s := range steps {
		_, err := store.FindOne(ctx, s.entity, "userId", res.UserID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return res, fmt.Errorf("lookup %s: %w", s.entity.Name, err)
		}
		if _, err := entities.Create(ctx, s.entity, ports.CreateInput{Data: s.data, OperatorID: res.UserID}); err != nil {
			return res, fmt.Errorf("create %s: %w", s.entity.Name, err)
		}
		res.Created = true
	}

	return res, nil
}
