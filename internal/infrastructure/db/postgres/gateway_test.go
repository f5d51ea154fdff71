package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
)

const assetID = "5b3c1c3e-6a55-4c1e-9a57-2f2b0b8f0d11"

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Gateway) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewGateway(mock)
}

func TestGateway_FindByID(t *testing.T) {
	t.Run("nominal", func(t *testing.T) {
		mock, g := newMock(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status, data FROM assets WHERE id = $1 LIMIT 1")).
			WithArgs(assetID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "status", "data"}).
				AddRow(assetID, "good", []byte(`{"name":"Drill"}`)),
			)

		rec, err := g.FindByID(context.Background(), domain.Assets, assetID)
		require.NoError(t, err)
		assert.Equal(t, assetID, rec.ID())
		assert.Equal(t, domain.StatusGood, rec.Status())
		assert.Equal(t, "Drill", rec["name"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, g := newMock(t)

		mock.ExpectQuery("SELECT id, status, data FROM assets").
			WithArgs(assetID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "status", "data"}))

		_, err := g.FindByID(context.Background(), domain.Assets, assetID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock, g := newMock(t)

		mock.ExpectQuery("SELECT id, status, data FROM assets").
			WithArgs(assetID).
			WillReturnError(errors.New("connection reset"))

		_, err := g.FindByID(context.Background(), domain.Assets, assetID)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGateway_FindOne_JSONField(t *testing.T) {
	mock, g := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status, data FROM users WHERE data->>$1 = $2 LIMIT 1")).
		WithArgs("username", "alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "data"}).
			AddRow("u1", "ok", []byte(`{"username":"alice","password":"$2a$10$hash"}`)),
		)

	rec, err := g.FindOne(context.Background(), domain.Users, "username", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.String("username"))
	assert.Equal(t, "$2a$10$hash", rec.String("password"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Find(t *testing.T) {
	mock, g := newMock(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := domain.Query{
		Statuses:  domain.StatusSet{domain.StatusGood, domain.StatusBroken},
		KeyFields: []string{"name", "brand"},
		Key:       "Drill",
		Ranges:    map[string]domain.DateRange{"purchasedAt": {Start: start}},
	}

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, status, data FROM assets WHERE (status IN ($1,$2) AND (data->>$3 = $4 OR data->>$5 = $6 OR ((data->>$7)::timestamptz >= $8))) ORDER BY created_at, id",
	)).
		WithArgs("good", "broken", "name", "Drill", "brand", "Drill", "purchasedAt", start).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "data"}).
			AddRow(assetID, "good", []byte(`{"name":"Drill"}`)),
		)

	recs, err := g.Find(context.Background(), domain.Assets, q)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, assetID, recs[0].ID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Find_Empty(t *testing.T) {
	mock, g := newMock(t)

	mock.ExpectQuery("SELECT id, status, data FROM assets").
		WithArgs("good").
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "data"}))

	recs, err := g.Find(context.Background(), domain.Assets, domain.Query{Statuses: domain.StatusSet{domain.StatusGood}})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_History(t *testing.T) {
	mock, g := newMock(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, datetime, type, subject_id, operator_id, content FROM assets_logs WHERE subject_id = $1 ORDER BY datetime, id",
	)).
		WithArgs(assetID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "datetime", "type", "subject_id", "operator_id", "content"}).
			AddRow("l1", at, "create", assetID, "op", []byte(`{"id":"`+assetID+`","name":"Drill"}`)).
			AddRow("l2", at.Add(time.Minute), "update", assetID, "op", []byte(`{"id":"`+assetID+`","status":"retired"}`)),
		)

	logs, err := g.History(context.Background(), domain.Assets, assetID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.LogCreate, logs[0].Type)
	assert.Equal(t, domain.LogUpdate, logs[1].Type)
	assert.Equal(t, "retired", logs[1].Content["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Transact(t *testing.T) {
	entry := domain.LogEntry{
		ID:         "l1",
		Datetime:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Type:       domain.LogCreate,
		SubjectID:  assetID,
		OperatorID: "op",
		Content:    domain.Record{"id": assetID, "name": "Drill"},
	}
	rec := domain.Record{"id": assetID, "status": "good", "name": "Drill"}

	insertAndLog := func(ctx context.Context, tx ports.RecordWriter) error {
		if err := tx.Insert(ctx, domain.Assets, rec); err != nil {
			return err
		}
		return tx.AppendLog(ctx, domain.Assets, entry)
	}

	t.Run("commit", func(t *testing.T) {
		mock, g := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assets (id,status,data) VALUES ($1,$2,$3)")).
			WithArgs(assetID, "good", []byte(`{"name":"Drill"}`)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assets_logs (id,datetime,type,subject_id,operator_id,content) VALUES ($1,$2,$3,$4,$5,$6)")).
			WithArgs("l1", entry.Datetime, "create", assetID, "op", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		require.NoError(t, g.Transact(context.Background(), insertAndLog))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("log failure rolls back", func(t *testing.T) {
		mock, g := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO assets ").
			WithArgs(assetID, "good", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("INSERT INTO assets_logs").
			WithArgs("l1", entry.Datetime, "create", assetID, "op", pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := g.Transact(context.Background(), insertAndLog)
		assert.ErrorContains(t, err, "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate", func(t *testing.T) {
		mock, g := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO assets ").
			WithArgs(assetID, "good", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "assets_pkey"})
		mock.ExpectRollback()

		err := g.Transact(context.Background(), insertAndLog)
		assert.ErrorIs(t, err, domain.ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWriter_Update(t *testing.T) {
	t.Run("with status", func(t *testing.T) {
		mock, g := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE assets SET data = data || $1::jsonb, updated_at = now(), status = $2 WHERE id = $3")).
			WithArgs([]byte(`{}`), "retired", assetID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := g.Transact(context.Background(), func(ctx context.Context, tx ports.RecordWriter) error {
			return tx.Update(ctx, domain.Assets, assetID, domain.Record{"status": "retired"})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock, g := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE assets SET").
			WithArgs([]byte(`{"name":"Saw"}`), assetID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err := g.Transact(context.Background(), func(ctx context.Context, tx ports.RecordWriter) error {
			return tx.Update(ctx, domain.Assets, assetID, domain.Record{"name": "Saw"})
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMigrations_CoverCatalog(t *testing.T) {
	raw, err := embedMigrations.ReadFile("migrations/00001_init.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "-- +goose Up")
	assert.Contains(t, sql, "-- +goose Down")
	for _, e := range domain.Catalog {
		assert.True(t, strings.Contains(sql, "CREATE TABLE "+e.Table+" ("), "missing table %s", e.Table)
		assert.True(t, strings.Contains(sql, "CREATE TABLE "+e.LogTable()+" ("), "missing table %s", e.LogTable())
		for _, f := range e.Fields {
			if f.Unique {
				assert.True(t, strings.Contains(sql, "ON "+e.Table+" ((data->>'"+f.Name+"'))"), "missing unique index %s.%s", e.Table, f.Name)
			}
		}
	}
}
