package api

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/txn2/ai-notebook/pkg/failure"
	"github.com/txn2/ai-notebook/pkg/table"
)

// nonFilterParams are query parameters that do not filter rows.
var nonFilterParams = map[string]bool{"select": true, "order": true}

// filter is one field=eq.value condition. raw matches stored strings;
// when raw also reads as a JSON number, boolean or null, value holds that
// reading and typed is set so non-string stored values can match too.
type filter struct {
	field string
	raw   string
	value any
	typed bool
}

// matches reports whether stored satisfies f. Strings compare as text, so
// title=eq.2024 finds the string "2024".
func (f filter) matches(stored any) bool {
	if s, ok := stored.(string); ok {
		return s == f.raw
	}
	return f.typed && reflect.DeepEqual(stored, f.value)
}

// parseFilters reads field=eq.value conditions from q in field order.
func parseFilters(op string, q url.Values) ([]filter, error) {
	keys := make([]string, 0, len(q))
	for k := range q {
		if !nonFilterParams[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var filters []filter
	for _, k := range keys {
		for _, raw := range q[k] {
			operator, value, ok := strings.Cut(raw, ".")
			if !ok || operator != "eq" {
				return nil, failure.New(failure.InvalidInput, op, fmt.Sprintf("filter %s: only eq.<value> is supported", k))
			}
			f := filter{field: k, raw: value}
			f.value, f.typed = parseValue(value)
			filters = append(filters, f)
		}
	}
	return filters, nil
}

// parseValue reads raw as a JSON number, boolean or null. ok is false for
// anything else.
func parseValue(raw string) (v any, ok bool) {
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case float64, bool, nil:
		return v, true
	}
	return nil, false
}

// matching returns the caller's rows in tbl satisfying every filter.
func (h *Handler) matching(ctx context.Context, tbl string, filters []filter) ([]table.Record, error) {
	var (
		rows []table.Record
		err  error
	)
	if len(filters) > 0 && !filters[0].typed {
		rows, err = h.deps.Tables.SelectWhere(ctx, tbl, filters[0].field, filters[0].raw)
	} else {
		// A value that reads as more than one type is matched here.
		rows, err = h.deps.Tables.SelectAll(ctx, tbl)
	}
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if matchesAll(row, filters) {
			out = append(out, row)
		}
	}
	return out, nil
}

func matchesAll(row table.Record, filters []filter) bool {
	for _, f := range filters {
		v, ok := row[f.field]
		if !ok || !f.matches(v) {
			return false
		}
	}
	return true
}

// applyOrder sorts rows by an order=field.asc|desc parameter.
func applyOrder(op, order string, rows []table.Record) error {
	if order == "" {
		return nil
	}
	field, dir, _ := strings.Cut(order, ".")
	desc := false
	switch dir {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return failure.New(failure.InvalidInput, op, "order direction must be asc or desc")
	}
	slices.SortStableFunc(rows, func(a, b table.Record) int {
		c := compareValues(a[field], b[field])
		if desc {
			return -c
		}
		return c
	})
	return nil
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// selectRows handles GET /rest/v1/{table}.
//
// @Summary      Select rows
// @Description  Returns the caller's rows. Filters use field=eq.value; order=field.desc sorts.
// @Tags         Tables
// @Produce      json
// @Param        table  path   string  true   "Table name"
// @Param        order  query  string  false  "Sort, e.g. updated_at.desc"
// @Success      200    {array}   object
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Security     BearerAuth
// @Router       /rest/v1/{table} [get]
func (h *Handler) selectRows(w http.ResponseWriter, r *http.Request) {
	const op = "select"
	q := r.URL.Query()
	filters, err := parseFilters(op, q)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	rows, err := h.matching(r.Context(), r.PathValue("table"), filters)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if err := applyOrder(op, q.Get("order"), rows); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// insertRows handles POST /rest/v1/{table}.
//
// @Summary      Insert rows
// @Description  Inserts one object or an array of objects owned by the caller and returns the stored rows.
// @Tags         Tables
// @Accept       json
// @Produce      json
// @Param        table  path      string  true  "Table name"
// @Param        body   body      object  true  "Row or rows"
// @Success      201    {array}   object
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Security     BearerAuth
// @Router       /rest/v1/{table} [post]
func (h *Handler) insertRows(w http.ResponseWriter, r *http.Request) {
	const op = "insert"
	var raw json.RawMessage
	if err := decodeBody(r, op, &raw); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	var batch []map[string]any
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			h.writeFailure(w, r, failure.New(failure.InvalidInput, op, "body must be an object or an array of objects"))
			return
		}
	} else {
		var one map[string]any
		if err := json.Unmarshal(trimmed, &one); err != nil || one == nil {
			h.writeFailure(w, r, failure.New(failure.InvalidInput, op, "body must be an object or an array of objects"))
			return
		}
		batch = append(batch, one)
	}

	tbl := r.PathValue("table")
	created := make([]table.Record, 0, len(batch))
	for _, fields := range batch {
		rec, err := h.deps.Tables.Insert(r.Context(), tbl, fields)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		created = append(created, rec)
	}
	writeJSON(w, http.StatusCreated, created)
}

// updateRows handles PATCH /rest/v1/{table}?id=eq.X.
//
// @Summary      Update a row
// @Description  Merges the body into the caller's row. A missing or foreign id returns an empty array.
// @Tags         Tables
// @Accept       json
// @Produce      json
// @Param        table  path      string  true  "Table name"
// @Param        id     query     string  true  "eq.<row id>"
// @Param        body   body      object  true  "Fields to change"
// @Success      200    {array}   object
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Security     BearerAuth
// @Router       /rest/v1/{table} [patch]
func (h *Handler) updateRows(w http.ResponseWriter, r *http.Request) {
	const op = "update"
	filters, err := parseFilters(op, r.URL.Query())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if len(filters) != 1 || filters[0].field != table.FieldID {
		h.writeFailure(w, r, failure.New(failure.InvalidInput, op, "update requires exactly one id=eq.<id> filter"))
		return
	}
	id := filters[0].raw

	var fields map[string]any
	if err := decodeBody(r, op, &fields); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	rows, err := h.deps.Tables.Update(r.Context(), r.PathValue("table"), id, fields)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// deleteRows handles DELETE /rest/v1/{table}?field=eq.value.
//
// @Summary      Delete rows
// @Description  Removes the caller's rows matching every filter. Matching nothing succeeds.
// @Tags         Tables
// @Param        table  path  string  true  "Table name"
// @Success      204
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Security     BearerAuth
// @Router       /rest/v1/{table} [delete]
func (h *Handler) deleteRows(w http.ResponseWriter, r *http.Request) {
	const op = "delete"
	filters, err := parseFilters(op, r.URL.Query())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if len(filters) == 0 {
		h.writeFailure(w, r, failure.New(failure.InvalidInput, op, "delete requires at least one filter"))
		return
	}

	tbl := r.PathValue("table")
	if len(filters) == 1 && !filters[0].typed {
		err = h.deps.Tables.DeleteWhere(r.Context(), tbl, filters[0].field, filters[0].raw)
	} else {
		err = h.deleteMatching(r.Context(), tbl, filters)
	}
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMatching(ctx context.Context, tbl string, filters []filter) error {
	rows, err := h.matching(ctx, tbl, filters)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := h.deps.Tables.DeleteWhere(ctx, tbl, table.FieldID, row.ID()); err != nil {
			return err
		}
	}
	return nil
}
