package handler

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orgdesk/admin-api/internal/core/domain"
)

// envelope is the common request body of the entity routes:
//
//	{"data": {...}, "id": "...", "key": "...", "<dateField>": {"start": "...", "end": "..."}}
//
// A client-supplied decodedToken is dropped; the identity always comes from
// the verified bearer token.
type envelope struct {
	Data   map[string]any
	ID     string
	Key    string
	Ranges map[string]domain.DateRange
}

type rangeBody struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

const decodedTokenKey = "decodedToken"

// bindEnvelope reads the JSON body (if any) and falls back to the id and key
// query parameters so the read routes also work as plain GETs.
func bindEnvelope(c echo.Context, e *domain.Entity) (envelope, error) {
	var env envelope

	raw := map[string]json.RawMessage{}
	if body := c.Request().Body; body != nil {
		if err := json.NewDecoder(body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return env, &domain.ValidationError{Field: "body", Reason: "must be a JSON object"}
		}
	}

	for name, value := range raw {
		switch name {
		case decodedTokenKey:
			continue
		case "data":
			if err := decodeObject(value, &env.Data); err != nil {
				return env, &domain.ValidationError{Field: "data", Reason: "must be an object"}
			}
		case domain.FieldID:
			if err := json.Unmarshal(value, &env.ID); err != nil {
				return env, &domain.ValidationError{Field: "id", Reason: "must be a string"}
			}
		case "key":
			if err := json.Unmarshal(value, &env.Key); err != nil {
				return env, &domain.ValidationError{Field: "key", Reason: "must be a string"}
			}
		default:
			if !e.HasDateRange(name) {
				continue
			}
			r, err := decodeRange(name, value)
			if err != nil {
				return env, err
			}
			if env.Ranges == nil {
				env.Ranges = make(map[string]domain.DateRange)
			}
			env.Ranges[name] = r
		}
	}

	if env.ID == "" {
		env.ID = c.QueryParam(domain.FieldID)
	}
	if env.Key == "" {
		env.Key = c.QueryParam("key")
	}
	return env, nil
}

func decodeObject(raw json.RawMessage, out *map[string]any) error {
	if string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func decodeRange(field string, raw json.RawMessage) (domain.DateRange, error) {
	var body rangeBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return domain.DateRange{}, &domain.ValidationError{Field: field, Reason: "must be {start, end}"}
	}

	start, err := parseBound(body.Start)
	if err != nil {
		return domain.DateRange{}, &domain.ValidationError{Field: field + ".start", Reason: "must be an RFC 3339 time or a date"}
	}
	end, err := parseBound(body.End)
	if err != nil {
		return domain.DateRange{}, &domain.ValidationError{Field: field + ".end", Reason: "must be an RFC 3339 time or a date"}
	}
	return domain.DateRange{Start: start, End: end}, nil
}

// parseBound accepts RFC 3339 timestamps and bare dates. An empty bound is open.
func parseBound(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
