package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

// executor is satisfied by both the pool and a pgx.Tx.
type executor interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Gateway implements ports.Gateway on Postgres. Every entity table stores
// its id and status as columns and the remaining fields in a jsonb document.
type Gateway struct {
	db PgxPoolIface
	qb sq.StatementBuilderType
}

func NewGateway(db PgxPoolIface) *Gateway {
	return &Gateway{db: db, qb: NewQueryBuilder()}
}

func (g *Gateway) FindByID(ctx context.Context, e *domain.Entity, id string) (domain.Record, error) {
	return g.FindOne(ctx, e, domain.FieldID, id)
}

func (g *Gateway) FindOne(ctx context.Context, e *domain.Entity, field string, value any) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query, args, err := g.qb.
		Select("id", "status", "data").
		From(e.Table).
		Where(fieldEq(field, value)).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	recs, err := scanRecords(ctx, g.db, e, query, args)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", e.Name, err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotFound
	}
	return recs[0], nil
}

func (g *Gateway) Find(ctx context.Context, e *domain.Entity, q domain.Query) ([]domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query, args, err := g.qb.
		Select("id", "status", "data").
		From(e.Table).
		Where(buildPredicate(q)).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, err
	}

	recs, err := scanRecords(ctx, g.db, e, query, args)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", e.Name, err)
	}
	return recs, nil
}

func (g *Gateway) History(ctx context.Context, e *domain.Entity, subjectID string) ([]domain.LogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query, args, err := g.qb.
		Select("id", "datetime", "type", "subject_id", "operator_id", "content").
		From(e.LogTable()).
		Where(sq.Eq{"subject_id": subjectID}).
		OrderBy("datetime", "id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := g.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s logs: %w", e.Name, err)
	}
	defer rows.Close()

	out := []domain.LogEntry{}
	for rows.Next() {
		var (
			entry   domain.LogEntry
			typ     string
			content []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Datetime, &typ, &entry.SubjectID, &entry.OperatorID, &content); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := json.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("decode %s log: %w", e.Name, err)
		}
		entry.Type = domain.LogType(typ)
		entry.Datetime = entry.Datetime.UTC()
		entry.Content = e.Hydrate(doc)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Transact runs fn in a database transaction, committing only on success.
func (g *Gateway) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.RecordWriter) error) error {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(ctx, &writer{db: tx, qb: g.qb}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.Ping(ctx)
}

type writer struct {
	db executor
	qb sq.StatementBuilderType
}

func (w *writer) Insert(ctx context.Context, e *domain.Entity, rec domain.Record) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	data, err := json.Marshal(document(rec))
	if err != nil {
		return err
	}

	query, args, err := w.qb.
		Insert(e.Table).
		Columns("id", "status", "data").
		Values(rec.ID(), string(rec.Status()), data).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := w.db.Exec(ctx, query, args...); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (w *writer) Update(ctx context.Context, e *domain.Entity, id string, patch domain.Record) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	data, err := json.Marshal(document(patch))
	if err != nil {
		return err
	}

	ub := w.qb.Update(e.Table).
		Set("data", sq.Expr("data || ?::jsonb", data)).
		Set("updated_at", sq.Expr("now()"))
	if status := patch.Status(); status != "" {
		ub = ub.Set("status", string(status))
	}

	query, args, err := ub.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	tag, err := w.db.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (w *writer) AppendLog(ctx context.Context, e *domain.Entity, entry domain.LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	content, err := json.Marshal(entry.Content)
	if err != nil {
		return err
	}

	query, args, err := w.qb.
		Insert(e.LogTable()).
		Columns("id", "datetime", "type", "subject_id", "operator_id", "content").
		Values(entry.ID, entry.Datetime, string(entry.Type), entry.SubjectID, entry.OperatorID, content).
		ToSql()
	if err != nil {
		return err
	}

	_, err = w.db.Exec(ctx, query, args...)
	return err
}

// buildPredicate translates a domain query: status in the listed set AND
// (key equality on any key field OR timestamp within any range).
func buildPredicate(q domain.Query) sq.Sqlizer {
	where := sq.And{sq.Eq{"status": q.Statuses.Strings()}}
	if !q.HasPredicate() {
		return where
	}

	or := sq.Or{}
	if q.Key != "" {
		for _, f := range q.KeyFields {
			or = append(or, fieldEq(f, q.Key))
		}
	}

	fields := make([]string, 0, len(q.Ranges))
	for f := range q.Ranges {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		or = append(or, rangePredicate(f, q.Ranges[f]))
	}

	return append(where, or)
}

func rangePredicate(field string, r domain.DateRange) sq.Sqlizer {
	cond := sq.And{}
	if !r.Start.IsZero() {
		cond = append(cond, sq.Expr("(data->>?)::timestamptz >= ?", field, r.Start))
	}
	if !r.End.IsZero() {
		cond = append(cond, sq.Expr("(data->>?)::timestamptz <= ?", field, r.End))
	}
	if len(cond) == 0 {
		cond = append(cond, sq.Expr("data->>? IS NOT NULL", field))
	}
	return cond
}

func fieldEq(field string, value any) sq.Sqlizer {
	switch field {
	case domain.FieldID, domain.FieldStatus:
		return sq.Eq{field: value}
	}
	return sq.Expr("data->>? = ?", field, fmt.Sprint(value))
}

func scanRecords(ctx context.Context, db executor, e *domain.Entity, query string, args []any) ([]domain.Record, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		var (
			id, status string
			data       []byte
		)
		if err := rows.Scan(&id, &status, &data); err != nil {
			return nil, err
		}

		doc := map[string]any{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", e.Name, id, err)
		}
		doc[domain.FieldID] = id
		doc[domain.FieldStatus] = status
		out = append(out, e.Hydrate(doc))
	}
	return out, rows.Err()
}

// document returns the jsonb part of a record: everything but id and status.
func document(rec domain.Record) map[string]any {
	doc := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == domain.FieldID || k == domain.FieldStatus {
			continue
		}
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		doc[k] = v
	}
	return doc
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
