package api

import (
	"net/http"
	"strconv"

	"github.com/txn2/ai-notebook/pkg/audit"
	"github.com/txn2/ai-notebook/pkg/auth"
	"github.com/txn2/ai-notebook/pkg/notebook"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// exportSnapshot handles GET /notebook/v1/export.
//
// @Summary      Export notebook data
// @Description  Returns all of the caller's notes, projects, tasks, todo lists and reports.
// @Tags         Notebook
// @Produce      json
// @Success      200  {object}  notebook.Snapshot
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Router       /notebook/v1/export [get]
func (h *Handler) exportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Notebook.Export(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="notebook-export.json"`)
	writeJSON(w, http.StatusOK, snap)
}

// importSnapshot handles POST /notebook/v1/import.
//
// @Summary      Import notebook data
// @Description  Re-creates an exported snapshot under the caller with fresh ids.
// @Tags         Notebook
// @Accept       json
// @Produce      json
// @Param        body  body      notebook.Snapshot  true  "Snapshot"
// @Success      200   {object}  notebook.ImportResult
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Security     BearerAuth
// @Router       /notebook/v1/import [post]
func (h *Handler) importSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap notebook.Snapshot
	if err := decodeBody(r, "import", &snap); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	res, err := h.deps.Notebook.Import(r.Context(), &snap)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// listAuditEvents handles GET /auth/v1/audit.
//
// @Summary      List the caller's auth events
// @Tags         Auth
// @Produce      json
// @Param        type   query     string   false  "Event type"
// @Param        limit  query     integer  false  "Maximum events (default 50)"
// @Success      200    {array}   audit.Event
// @Failure      401    {object}  errorResponse
// @Security     BearerAuth
// @Router       /auth/v1/audit [get]
func (h *Handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Type:   audit.EventType(q.Get("type")),
		UserID: auth.IdentityFromContext(r.Context()).ID,
		Limit:  defaultAuditLimit,
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter.Limit = min(n, maxAuditLimit)
	}

	events, err := h.deps.AuditLog.Query(r.Context(), filter)
	if err != nil {
		h.log.Warn("querying audit events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to query audit events")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
