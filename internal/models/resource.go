package models

import (
	"net/url"
	"strings"
)

// ColumnKind is the value type stored in a column.
type ColumnKind int

const (
	Text ColumnKind = iota
	Int
	Float
	Bool
	Time
	JSON
)

// Common column names shared by every owned table.
const (
	IDColumn        = "id"
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"
)

type Column struct {
	Name     string
	Kind     ColumnKind
	Writable bool // client may set it on create and update
	Required bool // must be present and non-empty on create
}

// Resource describes one owned-record table: which column carries the
// owner identifier, which columns a client may write, and how lists are
// filtered and ordered.
type Resource struct {
	Name        string
	Table       string
	OwnerColumn string
	Columns     []Column

	// FilterColumn is matched against the FilterParam query parameter on list.
	FilterColumn string
	FilterParam  string

	OrderBy  string
	OrderAsc bool

	// Points awarded to the owner after a successful create.
	Points int
}

// Column looks up a column by name.
func (r Resource) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns every column in declaration order.
func (r Resource) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// HasUpdatedAt reports whether the table tracks modification time.
func (r Resource) HasUpdatedAt() bool {
	_, ok := r.Column(UpdatedAtColumn)
	return ok
}

// OrderedKeys returns the keys of rec in column declaration order.
// Keys that are not columns are skipped.
func (r Resource) OrderedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for _, c := range r.Columns {
		if _, ok := rec[c.Name]; ok {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// FilterValue extracts the categorical list filter. An empty value or
// "all" means no filter.
func (r Resource) FilterValue(q url.Values) string {
	if r.FilterColumn == "" || r.FilterParam == "" {
		return ""
	}
	v := strings.TrimSpace(q.Get(r.FilterParam))
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}
