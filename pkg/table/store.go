// Package table provides the ownership-scoped table store: per-table
// collections of records that are always filtered to the identity that is
// signed in at call time.
package table

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/txn2/ai-notebook/pkg/failure"
)

// Reserved fields maintained by the store.
const (
	FieldID        = "id"
	FieldUserID    = "user_id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Tables used by the notebook application.
const (
	Notes           = "notes"
	Projects        = "projects"
	ProjectTasks    = "project_tasks"
	TodoLists       = "todo_lists"
	TodoItems       = "todo_items"
	DailyReports    = "daily_reports"
	WeeklyReports   = "weekly_reports"
	ReportTemplates = "report_templates"
)

// TimestampLayout formats created_at and updated_at.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Record is one stored row. Values are JSON-compatible: strings, float64,
// bool, nil, []any and map[string]any.
type Record map[string]any

// ID returns the record id.
func (r Record) ID() string { return r.String(FieldID) }

// String returns field as a string, or "" when absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// IdentitySource reports the identity that is signed in right now.
type IdentitySource interface {
	CurrentUserID() (string, bool)
}

// Store is the table store contract. Every operation requires an active
// session and fails with failure.NotAuthenticated otherwise.
type Store interface {
	// SelectAll returns the caller's records in table.
	SelectAll(ctx context.Context, table string) ([]Record, error)

	// SelectWhere returns the caller's records in table whose field equals value.
	SelectWhere(ctx context.Context, table, field string, value any) ([]Record, error)

	// Insert stores fields as a new record owned by the caller and returns it.
	Insert(ctx context.Context, table string, fields map[string]any) (Record, error)

	// Update merges fields into the caller's record id. A missing or foreign
	// id yields an empty result and no error.
	Update(ctx context.Context, table, id string, fields map[string]any) ([]Record, error)

	// DeleteWhere removes the caller's records in table whose field equals
	// value. Matching nothing is not an error.
	DeleteWhere(ctx context.Context, table, field string, value any) error
}

var validName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Owner returns the acting identity for op.
func Owner(ids IdentitySource, op string) (string, error) {
	if ids != nil {
		if uid, ok := ids.CurrentUserID(); ok {
			return uid, nil
		}
	}
	return "", failure.New(failure.NotAuthenticated, op, "no active session")
}

// ValidateName checks a table or field name.
func ValidateName(op, kind, name string) error {
	if !validName.MatchString(name) {
		return failure.New(failure.InvalidInput, op, fmt.Sprintf("invalid %s name %q", kind, name))
	}
	return nil
}

// IsReserved reports whether field is maintained by the store.
func IsReserved(field string) bool {
	switch field {
	case FieldID, FieldUserID, FieldCreatedAt, FieldUpdatedAt:
		return true
	}
	return false
}

// Normalize converts fields to their JSON-compatible form and drops
// reserved fields.
func Normalize(op string, fields map[string]any) (map[string]any, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, failure.Wrap(failure.InvalidInput, op, err)
	}
	out := make(map[string]any, len(fields))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, failure.Wrap(failure.InvalidInput, op, err)
	}
	if out == nil {
		out = make(map[string]any)
	}
	for field := range out {
		if IsReserved(field) {
			delete(out, field)
		}
	}
	return out, nil
}

// NormalizeValue converts a filter value to its JSON-compatible form so it
// compares equal to stored values.
func NormalizeValue(op string, value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, failure.Wrap(failure.InvalidInput, op, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, failure.Wrap(failure.InvalidInput, op, err)
	}
	return out, nil
}
