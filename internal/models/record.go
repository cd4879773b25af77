package models

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
)

// Record is one row of an owned table, keyed by column name.
type Record map[string]any

// String returns the column value if it is a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Sanitize turns a decoded client body into a Record the store may write.
// The owner column, id and timestamps are stripped, as are other columns the
// client does not control. Unknown fields and values of the wrong type are
// rejected. With partial set, required columns are not enforced and an empty
// result is an error.
func (r Resource) Sanitize(body map[string]any, partial bool) (Record, error) {
	rec := make(Record, len(body))
	var unknown []string
	for key, raw := range body {
		col, ok := r.Column(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if !col.Writable {
			continue
		}
		v, err := coerce(col, raw)
		if err != nil {
			return nil, err
		}
		rec[key] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, apperr.BadRequest("unknown field(s) for %s: %s", r.Name, strings.Join(unknown, ", "))
	}

	if partial {
		if len(rec) == 0 {
			return nil, apperr.BadRequest("no updatable fields supplied")
		}
		return rec, nil
	}
	for _, col := range r.Columns {
		if !col.Required {
			continue
		}
		v, ok := rec[col.Name]
		if !ok || v == nil {
			return nil, apperr.BadRequest("%s is required", col.Name)
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return nil, apperr.BadRequest("%s is required", col.Name)
		}
	}
	return rec, nil
}

func coerce(col Column, raw any) (any, error) {
	if raw == nil {
		if col.Required {
			return nil, apperr.BadRequest("%s must not be null", col.Name)
		}
		return nil, nil
	}
	switch col.Kind {
	case Text:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case Int:
		switch v := raw.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n, nil
			}
		case float64:
			if v == math.Trunc(v) {
				return int64(v), nil
			}
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		}
	case Float:
		switch v := raw.(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, nil
			}
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		}
	case Bool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case Time:
		switch v := raw.(type) {
		case string:
			if t, err := ParseTime(v); err == nil {
				return t, nil
			}
		case time.Time:
			return v.UTC(), nil
		}
	case JSON:
		return normalizeJSON(raw), nil
	}
	return nil, apperr.BadRequest("%s has an invalid value", col.Name)
}

// ParseTime accepts RFC 3339 timestamps and plain dates.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// normalizeJSON replaces json.Number with float64 so nested values compare
// and encode the same way regardless of how they were decoded.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeJSON(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeJSON(e)
		}
		return out
	default:
		return v
	}
}
