package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/txledger/internal/dictionary"
)

// GET /api/transaction-types
func (s *Server) listTransactionTypes(w http.ResponseWriter, r *http.Request) {
	out := struct {
		Items []dictionary.TypeDef `json:"items"`
	}{Items: dictionary.TransactionTypes()}
	toJSON(w, http.StatusOK, out)
}

// GET /api/transaction-types/{code}
func (s *Server) getTransactionType(w http.ResponseWriter, r *http.Request) {
	def, ok := dictionary.Lookup(chi.URLParam(r, "code"))
	if !ok {
		writeErr(w, http.StatusNotFound, "unknown transaction type", "not_found")
		return
	}
	toJSON(w, http.StatusOK, def)
}
