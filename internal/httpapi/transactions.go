package httpapi

import (
	"net/http"
	"net/url"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/txledger/internal/ledger"
)

// POST /api/transactions
func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyTransaction).(ledger.Input)
	if !ok {
		badRequest(w, "invalid request")
		return
	}
	p, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/transactions/"+url.PathEscape(p.ID))
	toJSON(w, http.StatusCreated, p)
}

// GET /api/transactions/{id}
func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, p)
}

// GET /api/transactions/user/{userId}
func (s *Server) listUserTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.GetByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, list)
}

// GET /api/transactions?page=&size=
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	q, ok := r.Context().Value(ctxKeyPageQuery).(pageQuery)
	if !ok {
		badRequest(w, "invalid request")
		return
	}
	page, err := s.svc.ListPaged(r.Context(), q.Page, q.Size)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, page)
}

// PUT /api/transactions/{id}
func (s *Server) putTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyTransaction).(ledger.Input)
	if !ok {
		badRequest(w, "invalid request")
		return
	}
	p, err := s.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, p)
}

// DELETE /api/transactions/{id}
func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
