package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/orgdesk/admin-api/internal/core/domain"
	"github.com/orgdesk/admin-api/internal/core/ports"
	"github.com/orgdesk/admin-api/internal/pkg/ids"
)

// AuditLogger appends immutable audit entries for entity mutations.
type AuditLogger struct {
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

func NewAuditLogger(log zerolog.Logger) *AuditLogger {
	return &AuditLogger{
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: ids.NewLogID,
	}
}

// Append writes one entry through w and returns its id. When w is a
// transaction, the entry commits or rolls back with the mutation it records.
func (a *AuditLogger) Append(
	ctx context.Context,
	w ports.LogWriter,
	e *domain.Entity,
	typ domain.LogType,
	subjectID, operatorID string,
	content domain.Record,
) (string, error) {
	entry := domain.LogEntry{
		ID:         a.newID(),
		Datetime:   a.now(),
		Type:       typ,
		SubjectID:  subjectID,
		OperatorID: operatorID,
		Content:    content,
	}

	if err := w.AppendLog(ctx, e, entry); err != nil {
		return "", fmt.Errorf("append %s log: %w", e.Name, err)
	}

	a.log.Debug().
		Str("entity", e.Name).
		Str("type", string(typ)).
		Str("subject_id", subjectID).
		Str("operator_id", operatorID).
		Str("log_id", entry.ID).
		Msg("audit entry appended")

	return entry.ID, nil
}
