package ports

import (
	"context"

	"github.com/orgdesk/admin-api/internal/core/domain"
)

// RecordReader reads entity records and their audit history.
type RecordReader interface {
	// FindByID returns domain.ErrNotFound when no record has the id.
	FindByID(ctx context.Context, e *domain.Entity, id string) (domain.Record, error)
	// FindOne returns the first record whose field equals value, or domain.ErrNotFound.
	FindOne(ctx context.Context, e *domain.Entity, field string, value any) (domain.Record, error)
	// Find returns every record matching q. No rows is an empty slice, not an error.
	Find(ctx context.Context, e *domain.Entity, q domain.Query) ([]domain.Record, error)
	// History returns the audit entries of one subject, oldest first.
	History(ctx context.Context, e *domain.Entity, subjectID string) ([]domain.LogEntry, error)
}

// LogWriter appends audit entries. Entries are never updated or deleted.
type LogWriter interface {
	AppendLog(ctx context.Context, e *domain.Entity, entry domain.LogEntry) error
}

// RecordWriter mutates entity records inside a transaction.
type RecordWriter interface {
	LogWriter
	Insert(ctx context.Context, e *domain.Entity, rec domain.Record) error
	// Update merges patch into the stored record. It returns domain.ErrNotFound
	// when no record has the id.
	Update(ctx context.Context, e *domain.Entity, id string, patch domain.Record) error
}

// Gateway is the persistence gateway shared by every request.
type Gateway interface {
	RecordReader
	// Transact runs fn in a single storage transaction. Writes made through
	// tx are committed only when fn returns nil.
	Transact(ctx context.Context, fn func(ctx context.Context, tx RecordWriter) error) error
	Ping(ctx context.Context) error
}
