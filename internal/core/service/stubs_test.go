package service

import (
	"context"
	"errors"
	"strings"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
	"github.com/orgdesk/admin-api/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// plainHasher avoids bcrypt cost in tests that do not exercise hashing.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Compare(p, h string) (bool, error) {
	if !strings.HasPrefix(h, "hashed:") {
		return false, errors.New("malformed hash")
	}
	return h == "hashed:"+p, nil
}

// countingHasher records how many comparisons were made.
type countingHasher struct {
	plainHasher
	hashes   int
	compares int
}

func (h *countingHasher) Hash(p string) (string, error) {
	h.hashes++
	return h.plainHasher.Hash(p)
}

func (h *countingHasher) Compare(p, hashed string) (bool, error) {
	h.compares++
	return h.plainHasher.Compare(p, hashed)
}

// faultyGateway wraps the in-memory gateway and injects storage failures.
type faultyGateway struct {
	*memory.Gateway
	findErr   error
	insertErr error
	appendErr error
	writes    int
}

func (g *faultyGateway) Find(ctx context.Context, e *domain.Entity, q domain.Query) ([]domain.Record, error) {
	if g.findErr != nil {
		return nil, g.findErr
	}
	return g.Gateway.Find(ctx, e, q)
}

func (g *faultyGateway) FindByID(ctx context.Context, e *domain.Entity, id string) (domain.Record, error) {
	if g.findErr != nil {
		return nil, g.findErr
	}
	return g.Gateway.FindByID(ctx, e, id)
}

func (g *faultyGateway) FindOne(ctx context.Context, e *domain.Entity, field string, value any) (domain.Record, error) {
	if g.findErr != nil {
		return nil, g.findErr
	}
	return g.Gateway.FindOne(ctx, e, field, value)
}

func (g *faultyGateway) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.RecordWriter) error) error {
	return g.Gateway.Transact(ctx, func(ctx context.Context, tx ports.RecordWriter) error {
		return fn(ctx, &faultyTx{RecordWriter: tx, g: g})
	})
}

type faultyTx struct {
	ports.RecordWriter
	g *faultyGateway
}

func (t *faultyTx) Insert(ctx context.Context, e *domain.Entity, rec domain.Record) error {
	if t.g.insertErr != nil {
		return t.g.insertErr
	}
	t.g.writes++
	return t.RecordWriter.Insert(ctx, e, rec)
}

func (t *faultyTx) Update(ctx context.Context, e *domain.Entity, id string, patch domain.Record) error {
	t.g.writes++
	return t.RecordWriter.Update(ctx, e, id, patch)
}

func (t *faultyTx) AppendLog(ctx context.Context, e *domain.Entity, entry domain.LogEntry) error {
	if t.g.appendErr != nil {
		return t.g.appendErr
	}
	return t.RecordWriter.AppendLog(ctx, e, entry)
}

type stubIdempotency struct {
	keys      map[string]string
	lookupErr error
}

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{keys: make(map[string]string)}
}

func (s *stubIdempotency) Lookup(_ context.Context, scope, key string) (string, bool, error) {
	if s.lookupErr != nil {
		return "", false, s.lookupErr
	}
	id, ok := s.keys[scope+"|"+key]
	return id, ok, nil
}

func (s *stubIdempotency) Remember(_ context.Context, scope, key, id string) error {
	s.keys[scope+"|"+key] = id
	return nil
}

// seedRecord inserts rec through a transaction, bypassing the audit logger.
func seedRecord(g ports.Gateway, e *domain.Entity, rec domain.Record) {
	_ = g.Transact(context.Background(), func(ctx context.Context, tx ports.RecordWriter) error {
		return tx.Insert(ctx, e, rec)
	})
}
