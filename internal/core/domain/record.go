package domain

import "time"

// Record is a stored entity document keyed by field name.
type Record map[string]any

// ID returns the record identifier, or "" when absent.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// Status returns the record's lifecycle status.
func (r Record) Status() Status {
	switch s := r[FieldStatus].(type) {
	case string:
		return Status(s)
	case Status:
		return s
	}
	return ""
}

// String returns a string field, or "" when absent or of another type.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// DateRange bounds a timestamp field. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Query selects records for the list endpoints: status must be in Statuses
// and, when a key or a range is given, at least one of them must match.
type Query struct {
	Statuses StatusSet
	// KeyFields are compared for equality against Key.
	KeyFields []string
	Key       string
	Ranges    map[string]DateRange
}

// HasPredicate reports whether the query narrows results beyond status.
func (q Query) HasPredicate() bool {
	return (q.Key != "" && len(q.KeyFields) > 0) || len(q.Ranges) > 0
}

// LogType is the kind of mutation an audit entry records.
type LogType string

const (
	LogCreate LogType = "create"
	LogUpdate LogType = "update"
)

// LogEntry is an immutable audit record of one mutation.
type LogEntry struct {
	ID         string    `json:"id" bson:"_id"`
	Datetime   time.Time `json:"datetime" bson:"datetime"`
	Type       LogType   `json:"type" bson:"type"`
	SubjectID  string    `json:"subjectId" bson:"subjectId"`
	OperatorID string    `json:"operatorId" bson:"operatorId"`
	Content    Record    `json:"content" bson:"content"`
}
