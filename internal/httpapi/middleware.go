package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
)

type ctxKey string

const (
	ctxKeyTransaction ctxKey = "validatedTransaction"
	ctxKeyPageQuery   ctxKey = "validatedPageQuery"
)

const (
	defaultPageSize = 20
	maxBodyBytes    = 1 << 20
)

// validateTransactionBody decodes a transaction body and stores the resulting
// ledger.Input in the request context. On PUT the body id defaults to the path id
// and must match it when both are given.
func (s *Server) validateTransactionBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		var req transactionRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			badRequest(w, "invalid JSON: "+err.Error())
			return
		}
		if id := chi.URLParam(r, "id"); id != "" {
			switch req.ID {
			case "":
				req.ID = id
			case id:
			default:
				badRequest(w, "id in body does not match path")
				return
			}
		}
		ctx := context.WithValue(r.Context(), ctxKeyTransaction, req.toInput())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validatePageQuery parses page (0-based, default 0) and size (default 20).
// Range checks belong to the service.
func (s *Server) validatePageQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pq := pageQuery{Page: 0, Size: defaultPageSize}
		if raw := q.Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				badRequest(w, "invalid page")
				return
			}
			pq.Page = n
		}
		if raw := q.Get("size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				badRequest(w, "invalid size")
				return
			}
			pq.Size = n
		}
		ctx := context.WithValue(r.Context(), ctxKeyPageQuery, pq)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireJSON ensures the request has Content-Type application/json (optionally with params).
// Writes 415 if not JSON and returns false; otherwise returns true.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	mime := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	if mime != "application/json" {
		writeErr(w, http.StatusUnsupportedMediaType, "content type must be application/json", "unsupported_media_type")
		return false
	}
	return true
}

// cors allows any origin and answers preflight requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
			h.Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
