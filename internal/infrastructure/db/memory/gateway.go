// Package memory is an in-process persistence gateway used for local
// development (STORE_DRIVER=memory) and by package tests. Data does not
// survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

// Gateway implements ports.Gateway over maps guarded by a mutex.
type Gateway struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.Record
	order   map[string][]string
	logs    map[string][]domain.LogEntry
}

func NewGateway() *Gateway {
	return &Gateway{
		records: make(map[string]map[string]domain.Record),
		order:   make(map[string][]string),
		logs:    make(map[string][]domain.LogEntry),
	}
}

func (g *Gateway) FindByID(_ context.Context, e *domain.Entity, id string) (domain.Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, ok := g.records[e.Table][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(rec), nil
}

func (g *Gateway) FindOne(_ context.Context, e *domain.Entity, field string, value any) (domain.Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, id := range g.order[e.Table] {
		rec := g.records[e.Table][id]
		if rec[field] == value {
			return clone(rec), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (g *Gateway) Find(_ context.Context, e *domain.Entity, q domain.Query) ([]domain.Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := []domain.Record{}
	for _, id := range g.order[e.Table] {
		rec := g.records[e.Table][id]
		if Match(rec, q) {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

func (g *Gateway) History(_ context.Context, e *domain.Entity, subjectID string) ([]domain.LogEntry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := []domain.LogEntry{}
	for _, entry := range g.logs[e.LogTable()] {
		if entry.SubjectID == subjectID {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Datetime.Equal(out[j].Datetime) {
			return out[i].Datetime.Before(out[j].Datetime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Transact buffers writes and applies them under the write lock only when fn
// succeeds.
func (g *Gateway) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.RecordWriter) error) error {
	tx := &memTx{g: g}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, op := range tx.ops {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) Ping(context.Context) error { return nil }

// LogCount returns the number of audit entries stored for e.
func (g *Gateway) LogCount(e *domain.Entity) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.logs[e.LogTable()])
}

// Logs returns a copy of every audit entry stored for e.
func (g *Gateway) Logs(e *domain.Entity) []domain.LogEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]domain.LogEntry(nil), g.logs[e.LogTable()]...)
}

type memTx struct {
	g   *Gateway
	ops []func() error
}

func (t *memTx) Insert(_ context.Context, e *domain.Entity, rec domain.Record) error {
	rec = clone(rec)
	t.ops = append(t.ops, func() error {
		id := rec.ID()
		table := t.g.records[e.Table]
		if table == nil {
			table = make(map[string]domain.Record)
			t.g.records[e.Table] = table
		}
		if _, exists := table[id]; exists {
			return domain.ErrDuplicate
		}
		if uniqueTaken(e, table, id, rec) {
			return domain.ErrDuplicate
		}
		table[id] = rec
		t.g.order[e.Table] = append(t.g.order[e.Table], id)
		return nil
	})
	return nil
}

func (t *memTx) Update(_ context.Context, e *domain.Entity, id string, patch domain.Record) error {
	t.g.mu.RLock()
	_, ok := t.g.records[e.Table][id]
	t.g.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}

	patch = clone(patch)
	t.ops = append(t.ops, func() error {
		rec, ok := t.g.records[e.Table][id]
		if !ok {
			return domain.ErrNotFound
		}
		if uniqueTaken(e, t.g.records[e.Table], id, patch) {
			return domain.ErrDuplicate
		}
		for k, v := range patch {
			rec[k] = v
		}
		return nil
	})
	return nil
}

func (t *memTx) AppendLog(_ context.Context, e *domain.Entity, entry domain.LogEntry) error {
	t.ops = append(t.ops, func() error {
		t.g.logs[e.LogTable()] = append(t.g.logs[e.LogTable()], entry)
		return nil
	})
	return nil
}

// uniqueTaken reports whether another record of table already holds one of
// the unique values set in rec.
func uniqueTaken(e *domain.Entity, table map[string]domain.Record, id string, rec domain.Record) bool {
	for _, f := range e.Fields {
		v, ok := rec[f.Name]
		if !f.Unique || !ok || v == nil {
			continue
		}
		for otherID, other := range table {
			if otherID != id && other[f.Name] == v {
				return true
			}
		}
	}
	return false
}

// Match reports whether rec satisfies q.
func Match(rec domain.Record, q domain.Query) bool {
	if !q.Statuses.Contains(rec.Status()) {
		return false
	}
	if !q.HasPredicate() {
		return true
	}

	if q.Key != "" {
		for _, f := range q.KeyFields {
			if s, ok := rec[f].(string); ok && s == q.Key {
				return true
			}
		}
	}
	for field, r := range q.Ranges {
		t, ok := rec[field].(time.Time)
		if !ok {
			continue
		}
		if (r.Start.IsZero() || !t.Before(r.Start)) && (r.End.IsZero() || !t.After(r.End)) {
			return true
		}
	}
	return false
}

func clone(rec domain.Record) domain.Record {
	out := make(domain.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
