package domain

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

const (
	FieldID     = "id"
	FieldStatus = "status"
)

// FieldKind is the storage and wire type of an entity field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindInt
	KindBool
	KindTime
	KindRef
)

// Field describes one attribute of an entity record.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Rule is a validator tag applied to the coerced value (e.g. "email", "gte=0").
	Rule string
	// Secret fields are hashed before storage and never leave the API.
	Secret bool
	Unique bool
}

// Op names one of the generic CRUD operations exposed per entity.
type Op string

const (
	OpCreate Op = "create"
	OpGet    Op = "get"
	OpSearch Op = "search"
	OpSelect Op = "select"
	OpUpdate Op = "update"
)

// Gate is the authorization level a route requires after token verification.
type Gate int

const (
	GateAdmin Gate = iota
	GatePrincipal
)

// View is an additional list route with its own visible statuses,
// e.g. GET /event/active.
type View struct {
	Name     string
	Statuses StatusSet
	Search   bool
}

// Entity describes a domain noun: its record shape, lifecycle statuses and
// which fields the search endpoint filters on.
type Entity struct {
	Name  string
	Table string

	Fields        []Field
	Statuses      StatusSet
	DefaultStatus Status
	// Visible statuses are listed by get; SearchStatuses by search.
	Visible        StatusSet
	SearchStatuses StatusSet

	SearchKeys []string
	DateRanges []string
	Views      []View

	// PrincipalOps lists operations that only need an active principal.
	// Every other operation also requires an admin grant.
	PrincipalOps []Op
}

// LogTable is the name of the audit sibling of the entity's table.
func (e *Entity) LogTable() string {
	return e.Table + "_logs"
}

// Gate returns the authorization level required for op.
func (e *Entity) Gate(op Op) Gate {
	for _, o := range e.PrincipalOps {
		if o == op {
			return GatePrincipal
		}
	}
	return GateAdmin
}

// Field looks up a declared field by name.
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasDateRange reports whether name is one of the entity's range-searchable fields.
func (e *Entity) HasDateRange(name string) bool {
	for _, r := range e.DateRanges {
		if r == name {
			return true
		}
	}
	return false
}

// RuleChecker validates a single value against a validator tag.
// *validator.Validate satisfies it.
type RuleChecker interface {
	Var(field any, tag string) error
}

// NormalizeCreate validates a full record for insertion, coercing JSON
// values to field kinds and filling the default status.
func (e *Entity) NormalizeCreate(in map[string]any, rules RuleChecker) (Record, error) {
	return e.normalize(in, rules, false)
}

// NormalizePatch validates a partial record for update. Only the supplied
// fields are checked.
func (e *Entity) NormalizePatch(in map[string]any, rules RuleChecker) (Record, error) {
	return e.normalize(in, rules, true)
}

func (e *Entity) normalize(in map[string]any, rules RuleChecker, partial bool) (Record, error) {
	rec := make(Record, len(in)+1)
	for name, raw := range in {
		if name == FieldStatus {
			s, ok := raw.(string)
			if !ok || !e.Statuses.Contains(Status(s)) {
				return nil, &ValidationError{Field: name, Reason: "unknown status"}
			}
			rec[FieldStatus] = s
			continue
		}

		f, ok := e.Field(name)
		if !ok {
			return nil, &ValidationError{Field: name, Reason: "unknown field"}
		}

		v, err := f.coerce(raw)
		if err != nil {
			return nil, &ValidationError{Field: name, Reason: err.Error()}
		}
		if v == nil {
			if f.Required {
				return nil, &ValidationError{Field: name, Reason: "is required"}
			}
			rec[name] = nil
			continue
		}
		if f.Rule != "" && rules != nil {
			if err := rules.Var(v, f.Rule); err != nil {
				return nil, &ValidationError{Field: name, Reason: "failed " + f.Rule}
			}
		}
		rec[name] = v
	}

	if partial {
		return rec, nil
	}

	for _, f := range e.Fields {
		if _, ok := rec[f.Name]; f.Required && !ok {
			return nil, &ValidationError{Field: f.Name, Reason: "is required"}
		}
	}
	if _, ok := rec[FieldStatus]; !ok {
		rec[FieldStatus] = string(e.DefaultStatus)
	}
	return rec, nil
}

func (f Field) coerce(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch f.Kind {
	case KindString, KindRef:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.New("must be a string")
		}
		return s, nil

	case KindNumber:
		n, ok := toFloat(raw)
		if !ok {
			return nil, errors.New("must be a number")
		}
		return n, nil

	case KindInt:
		n, ok := toFloat(raw)
		if !ok || n != math.Trunc(n) {
			return nil, errors.New("must be an integer")
		}
		return int64(n), nil

	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, errors.New("must be a boolean")
		}
		return b, nil

	case KindTime:
		switch t := raw.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, errors.New("must be an RFC 3339 timestamp")
			}
			return parsed.UTC(), nil
		}
		return nil, errors.New("must be an RFC 3339 timestamp")
	}

	return nil, errors.New("unsupported field kind")
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Hydrate converts a stored document back to canonical field types. Stores
// that round-trip through JSON hand back timestamps as strings and integers
// as floats; BSON hands back int32 for small integers.
func (e *Entity) Hydrate(raw map[string]any) Record {
	rec := Record(raw)
	for _, f := range e.Fields {
		v, ok := rec[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Kind {
		case KindTime:
			switch t := v.(type) {
			case string:
				if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
					rec[f.Name] = parsed.UTC()
				}
			case time.Time:
				rec[f.Name] = t.UTC()
			}
		case KindInt:
			if n, ok := toFloat(v); ok {
				rec[f.Name] = int64(n)
			}
		case KindNumber:
			if n, ok := toFloat(v); ok {
				rec[f.Name] = n
			}
		}
	}
	return rec
}

// Public returns a copy of rec without secret fields.
func (e *Entity) Public(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if f, ok := e.Field(k); ok && f.Secret {
			continue
		}
		out[k] = v
	}
	return out
}
