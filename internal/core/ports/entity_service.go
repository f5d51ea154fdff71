package ports

import (
	"context"

	"github.com/orgdesk/admin-api/internal/core/domain"
)

// CreateInput is the DTO passed from the transport layer to EntityService.Create.
type CreateInput struct {
	Data           map[string]any
	OperatorID     string
	IdempotencyKey string // optional
	// ID presets the record id. Only trusted callers (the seed command) set it.
	ID string
}

// UpdateInput carries a partial patch for one record.
type UpdateInput struct {
	ID         string
	Data       map[string]any
	OperatorID string
}

// ListInput narrows the get and search endpoints.
type ListInput struct {
	// View selects one of the entity's extra views; empty means the default listing.
	View   string
	Key    string
	Ranges map[string]domain.DateRange
}

// RecordDetail is a record together with its audit trail.
type RecordDetail struct {
	Record domain.Record
	Logs   []domain.LogEntry
}

// EntityService defines the generic CRUD use cases shared by every entity.
type EntityService interface {
	Create(ctx context.Context, e *domain.Entity, in CreateInput) (string, error)
	Update(ctx context.Context, e *domain.Entity, in UpdateInput) error
	Get(ctx context.Context, e *domain.Entity, in ListInput) ([]domain.Record, error)
	Search(ctx context.Context, e *domain.Entity, in ListInput) ([]domain.Record, error)
	Select(ctx context.Context, e *domain.Entity, id string) (*RecordDetail, error)
}
