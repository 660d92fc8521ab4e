package httpapi

import (
	"context"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/txledger/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusBadRequest, msg, "bad_request")
}

// writeServiceErr maps service errors onto HTTP statuses. Caller faults are
// expected traffic and are not logged as failures.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	var fe *errs.FieldError
	switch {
	case errors.As(err, &fe):
		writeErr(w, http.StatusBadRequest, fe.Error(), "validation_error")
	case errors.Is(err, errs.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, errs.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, errs.ErrDuplicate):
		writeErr(w, http.StatusConflict, err.Error(), "duplicate")
	case errors.Is(err, context.DeadlineExceeded):
		// chi's Timeout middleware answers 504 once the handler returns.
		s.log.Warn("request timed out", "req_id", chimw.GetReqID(r.Context()), "err", err)
	default:
		s.log.Error("request failed", "req_id", chimw.GetReqID(r.Context()), "method", r.Method, "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error", "internal_error")
	}
}
