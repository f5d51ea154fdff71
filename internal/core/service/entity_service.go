package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

type entityService struct {
	store  ports.Gateway
	audit  *AuditLogger
	hasher ports.PasswordHasher
	idem   ports.IdempotencyStore
	rules  domain.RuleChecker
	log    zerolog.Logger
	newID  func() string
}

// NewEntityService returns an EntityService implementation. idem may be nil,
// in which case Idempotency-Key headers are ignored.
func NewEntityService(
	store ports.Gateway,
	audit *AuditLogger,
	hasher ports.PasswordHasher,
	idem ports.IdempotencyStore,
	rules domain.RuleChecker,
	log zerolog.Logger,
) ports.EntityService {
	return &entityService{
		store:  store,
		audit:  audit,
		hasher: hasher,
		idem:   idem,
		rules:  rules,
		log:    log,
		newID:  uuid.NewString,
	}
}

// Create validates and inserts a record, appending a create log entry in the
// same transaction.
func (s *entityService) Create(ctx context.Context, e *domain.Entity, in ports.CreateInput) (string, error) {
	rec, err := e.NormalizeCreate(in.Data, s.rules)
	if err != nil {
		return "", err
	}

	// 1. Idempotent replay (lookup failures are non-fatal).
	scope := e.Name + ":" + in.OperatorID
	if in.IdempotencyKey != "" && s.idem != nil {
		id, found, err := s.idem.Lookup(ctx, scope, in.IdempotencyKey)
		if err != nil {
			s.log.Warn().Err(err).Str("entity", e.Name).Msg("idempotency lookup failed, creating anyway")
		} else if found {
			s.log.Info().Str("entity", e.Name).Str("id", id).Msg("idempotent replay")
			return id, nil
		}
	}

	if err := s.hashSecrets(e, rec); err != nil {
		return "", err
	}

	id := in.ID
	if id == "" {
		id = s.newID()
	} else if !validID(id) {
		return "", &domain.ValidationError{Field: domain.FieldID, Reason: "must be a uuid"}
	}
	rec[domain.FieldID] = id

	// 2. Mutation + audit entry commit together.
	err = s.store.Transact(ctx, func(ctx context.Context, tx ports.RecordWriter) error {
		if err := tx.Insert(ctx, e, rec); err != nil {
			return fmt.Errorf("insert %s: %w", e.Name, err)
		}
		_, err := s.audit.Append(ctx, tx, e, domain.LogCreate, id, in.OperatorID, e.Public(rec))
		return err
	})
	if err != nil {
		return "", err
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.Remember(ctx, scope, in.IdempotencyKey, id); err != nil {
			s.log.Warn().Err(err).Str("entity", e.Name).Msg("failed to store idempotency key")
		}
	}

	s.log.Info().
		Str("entity", e.Name).
		Str("id", id).
		Str("operator_id", in.OperatorID).
		Msg("record created")

	return id, nil
}

// Update applies a partial patch. Concurrent updates are last-writer-wins.
func (s *entityService) Update(ctx context.Context, e *domain.Entity, in ports.UpdateInput) error {
	if !validID(in.ID) {
		return domain.ErrNotFound
	}

	patch, err := e.NormalizePatch(in.Data, s.rules)
	if err != nil {
		return err
	}
	if err := s.hashSecrets(e, patch); err != nil {
		return err
	}

	content := e.Public(patch)
	content[domain.FieldID] = in.ID

	err = s.store.Transact(ctx, func(ctx context.Context, tx ports.RecordWriter) error {
		if err := tx.Update(ctx, e, in.ID, patch); err != nil {
			return fmt.Errorf("update %s: %w", e.Name, err)
		}
		_, err := s.audit.Append(ctx, tx, e, domain.LogUpdate, in.ID, in.OperatorID, content)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("entity", e.Name).
		Str("id", in.ID).
		Str("operator_id", in.OperatorID).
		Msg("record updated")

	return nil
}

// Get lists records whose status is visible in the default listing or in the
// requested view.
func (s *entityService) Get(ctx context.Context, e *domain.Entity, in ports.ListInput) ([]domain.Record, error) {
	statuses := e.Visible
	if in.View != "" {
		v, err := view(e, in.View, false)
		if err != nil {
			return nil, err
		}
		statuses = v.Statuses
	}
	return s.find(ctx, e, domain.Query{Statuses: statuses})
}

// Search lists records matching the key or any date range.
func (s *entityService) Search(ctx context.Context, e *domain.Entity, in ports.ListInput) ([]domain.Record, error) {
	statuses := e.SearchStatuses
	if in.View != "" {
		v, err := view(e, in.View, true)
		if err != nil {
			return nil, err
		}
		statuses = v.Statuses
	}

	q := domain.Query{Statuses: statuses, Key: in.Key, KeyFields: e.SearchKeys}
	for field, r := range in.Ranges {
		if !e.HasDateRange(field) {
			continue
		}
		if q.Ranges == nil {
			q.Ranges = make(map[string]domain.DateRange)
		}
		q.Ranges[field] = r
	}
	return s.find(ctx, e, q)
}

// Select fetches one record regardless of status, with its audit trail.
func (s *entityService) Select(ctx context.Context, e *domain.Entity, id string) (*ports.RecordDetail, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}

	rec, err := s.store.FindByID(ctx, e, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: select %s: %w", domain.ErrReadFailed, e.Name, err)
	}

	logs, err := s.store.History(ctx, e, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s history: %w", domain.ErrReadFailed, e.Name, err)
	}

	return &ports.RecordDetail{Record: e.Public(rec), Logs: logs}, nil
}

func (s *entityService) find(ctx context.Context, e *domain.Entity, q domain.Query) ([]domain.Record, error) {
	recs, err := s.store.Find(ctx, e, q)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", domain.ErrReadFailed, e.Name, err)
	}

	out := make([]domain.Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, e.Public(r))
	}
	return out, nil
}

func (s *entityService) hashSecrets(e *domain.Entity, rec domain.Record) error {
	for _, f := range e.Fields {
		if !f.Secret {
			continue
		}
		plain, ok := rec[f.Name].(string)
		if !ok {
			continue
		}
		hashed, err := s.hasher.Hash(plain)
		if err != nil {
			return err
		}
		rec[f.Name] = hashed
	}
	return nil
}

func view(e *domain.Entity, name string, search bool) (domain.View, error) {
	for _, v := range e.Views {
		if v.Name == name && v.Search == search {
			return v, nil
		}
	}
	return domain.View{}, fmt.Errorf("%s view %q: %w", e.Name, name, domain.ErrUnknownEntity)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
