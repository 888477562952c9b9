package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/txn2/ai-notebook/pkg/failure"
	"github.com/txn2/ai-notebook/pkg/notebook"
)

// Error kinds reported by the gateway itself.
const (
	errorKindNotFound = "not_found"
	errorKindTooLarge = "payload_too_large"
)

// errBodyTooLarge is returned by decodeBody when the body exceeds the cap.
var errBodyTooLarge = errors.New("request body too large")

// errorResponse is the JSON body of every error.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a failure kind to an HTTP status.
func statusFor(kind failure.Kind) int {
	switch kind {
	case failure.InvalidInput:
		return http.StatusBadRequest
	case failure.InvalidCredentials, failure.NotAuthenticated:
		return http.StatusUnauthorized
	case failure.DuplicateIdentity:
		return http.StatusConflict
	case failure.StorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: msg})
}

// writeFailure writes err using its failure kind. Unclassified errors are
// logged and reported without detail.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, notebook.ErrNotFound) {
		writeError(w, http.StatusNotFound, errorKindNotFound, err.Error())
		return
	}
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, errorKindTooLarge, err.Error())
		return
	}
	kind := failure.KindOf(err)
	if kind == "" {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	if kind == failure.StorageUnavailable {
		h.log.Warn("storage unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, statusFor(kind), string(kind), err.Error())
}

// decodeBody decodes the JSON request body into v.
func decodeBody(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return failure.Wrap(failure.InvalidInput, op, errors.New("request body must be valid JSON"))
	}
	return nil
}
