package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	memcache "github.com/tinoosan/txledger/internal/cache/memory"
	"github.com/tinoosan/txledger/internal/ledger"
	"github.com/tinoosan/txledger/internal/service/transaction"
	"github.com/tinoosan/txledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type txResp struct {
	ID                        string      `json:"id"`
	UserID                    string      `json:"userId"`
	Amount                    json.Number `json:"amount"`
	Type                      string      `json:"type"`
	TypeName                  string      `json:"typeName"`
	TransactionSummary        string      `json:"transactionSummary"`
	CounterpartyName          string      `json:"counterpartyName"`
	CounterpartyAccountNumber string      `json:"counterpartyAccountNumber"`
	Description               string      `json:"description"`
	CreatedAt                 time.Time   `json:"createdAt"`
	UpdatedAt                 time.Time   `json:"updatedAt"`
}

type pageResp struct {
	Content       []txResp `json:"content"`
	PageNumber    int      `json:"pageNumber"`
	PageSize      int      `json:"pageSize"`
	TotalElements int      `json:"totalElements"`
	TotalPages    int      `json:"totalPages"`
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func setup(t *testing.T, opts ...Option) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.New()
	svc := transaction.New(store, transaction.WithLogger(testLogger()), transaction.WithCache(memcache.New()))
	return store, New(svc, testLogger(), opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestTransactions_CRUD(t *testing.T) {
	_, h := setup(t)

	body := map[string]any{
		"id":                 "t1",
		"userId":             "u1",
		"amount":             100.00,
		"type":               "DEPOSIT",
		"transactionSummary": "paycheck",
		"counterpartyName":   "ACME",
	}
	rec := do(t, h, http.MethodPost, "/api/transactions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/api/transactions/t1" {
		t.Fatalf("unexpected Location %q", loc)
	}
	created := decode[txResp](t, rec)
	if created.ID != "t1" || created.TypeName != "Deposit" || created.CounterpartyName != "ACME" {
		t.Fatalf("unexpected response: %+v", created)
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("createdAt != updatedAt on create: %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/transactions/t1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get expected 200, got %d", rec.Code)
	}
	got := decode[txResp](t, rec)
	if got.Amount.String() != "100" {
		t.Fatalf("unexpected amount %s", got.Amount)
	}

	// Quoted amounts keep their scale.
	upd := map[string]any{"userId": "u1", "amount": "50.00", "type": "deposit", "transactionSummary": "corrected"}
	rec = do(t, h, http.MethodPut, "/api/transactions/t1", upd)
	if rec.Code != http.StatusOK {
		t.Fatalf("put expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[txResp](t, rec)
	if updated.Amount.String() != "50.00" || updated.TransactionSummary != "corrected" || updated.CounterpartyName != "" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) || !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("timestamps not maintained: created %+v updated %+v", created, updated)
	}

	rec = do(t, h, http.MethodDelete, "/api/transactions/t1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/transactions/t1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete expected 404, got %d", rec.Code)
	}
	if e := decode[errResp](t, rec); e.Code != "not_found" {
		t.Fatalf("unexpected error body: %+v", e)
	}
	rec = do(t, h, http.MethodDelete, "/api/transactions/t1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", rec.Code)
	}
}

func TestTransactions_ErrorMapping(t *testing.T) {
	store, h := setup(t)
	valid := map[string]any{"id": "dup", "userId": "u1", "amount": 1, "type": "EXPENSE"}
	if rec := do(t, h, http.MethodPost, "/api/transactions", valid); rec.Code != http.StatusCreated {
		t.Fatalf("seed create: %d", rec.Code)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		ctype  string
		status int
		code   string
	}{
		{"duplicate", http.MethodPost, "/api/transactions", valid, "application/json", http.StatusConflict, "duplicate"},
		{"unknown type", http.MethodPost, "/api/transactions", map[string]any{"id": "x", "type": "BRIBE"}, "application/json", http.StatusBadRequest, "validation_error"},
		{"missing id", http.MethodPost, "/api/transactions", map[string]any{"type": "DEPOSIT"}, "application/json", http.StatusBadRequest, "validation_error"},
		{"bad json", http.MethodPost, "/api/transactions", `{"id":`, "application/json", http.StatusBadRequest, "bad_request"},
		{"bad amount", http.MethodPost, "/api/transactions", `{"id":"a","type":"DEPOSIT","amount":"ten"}`, "application/json", http.StatusBadRequest, "bad_request"},
		{"wrong content type", http.MethodPost, "/api/transactions", valid, "text/plain", http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"update missing", http.MethodPut, "/api/transactions/ghost", map[string]any{"type": "DEPOSIT"}, "application/json", http.StatusNotFound, "not_found"},
		{"update id mismatch", http.MethodPut, "/api/transactions/dup", map[string]any{"id": "other", "type": "DEPOSIT"}, "application/json", http.StatusBadRequest, "bad_request"},
		{"zero page size", http.MethodGet, "/api/transactions?size=0", nil, "", http.StatusBadRequest, "validation_error"},
		{"negative page", http.MethodGet, "/api/transactions?page=-1", nil, "", http.StatusBadRequest, "validation_error"},
		{"non-numeric page", http.MethodGet, "/api/transactions?page=first", nil, "", http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rdr io.Reader
			switch b := tc.body.(type) {
			case nil:
			case string:
				rdr = strings.NewReader(b)
			default:
				raw, _ := json.Marshal(b)
				rdr = bytes.NewReader(raw)
			}
			req := httptest.NewRequest(tc.method, tc.path, rdr)
			if tc.ctype != "" {
				req.Header.Set("Content-Type", tc.ctype)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if e := decode[errResp](t, rec); e.Code != tc.code {
				t.Fatalf("expected code %q, got %+v", tc.code, e)
			}
		})
	}
	if store.Len() != 1 {
		t.Fatalf("failed requests must not write; store has %d records", store.Len())
	}
}

func TestTransactions_ListByUserAndPaged(t *testing.T) {
	_, h := setup(t)
	for _, id := range []string{"a", "b", "c"} {
		body := map[string]any{"id": id, "userId": "u1", "amount": "1.5", "type": "PAYMENT"}
		if rec := do(t, h, http.MethodPost, "/api/transactions", body); rec.Code != http.StatusCreated {
			t.Fatalf("create %s: %d", id, rec.Code)
		}
	}
	do(t, h, http.MethodPost, "/api/transactions", map[string]any{"id": "z", "userId": "u2", "type": "REFUND"})

	rec := do(t, h, http.MethodGet, "/api/transactions/user/u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("by user expected 200, got %d", rec.Code)
	}
	list := decode[[]txResp](t, rec)
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	for _, tx := range list {
		if tx.UserID != "u1" {
			t.Fatalf("foreign record in listing: %+v", tx)
		}
	}

	rec = do(t, h, http.MethodGet, "/api/transactions/user/nobody", nil)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/transactions?page=1&size=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("paged expected 200, got %d", rec.Code)
	}
	page := decode[pageResp](t, rec)
	if page.TotalElements != 4 || page.TotalPages != 2 || page.PageNumber != 1 || page.PageSize != 3 || len(page.Content) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}

	rec = do(t, h, http.MethodGet, "/api/transactions", nil)
	page = decode[pageResp](t, rec)
	if page.PageSize != defaultPageSize || len(page.Content) != 4 {
		t.Fatalf("unexpected default page: %+v", page)
	}

	rec = do(t, h, http.MethodGet, "/api/transactions?page=7&size=3", nil)
	if !strings.Contains(rec.Body.String(), `"content":[]`) {
		t.Fatalf("expected empty content array, got %s", rec.Body.String())
	}
}

func TestTransactionTypes(t *testing.T) {
	_, h := setup(t)
	rec := do(t, h, http.MethodGet, "/api/transaction-types", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	out := decode[struct {
		Items []struct {
			Code  string `json:"code"`
			Label string `json:"label"`
		} `json:"items"`
	}](t, rec)
	if len(out.Items) != len(ledger.Types()) || out.Items[0].Code != "DEPOSIT" {
		t.Fatalf("unexpected catalogue: %+v", out)
	}

	rec = do(t, h, http.MethodGet, "/api/transaction-types/withdrawal", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Withdrawal"`) {
		t.Fatalf("lookup failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodGet, "/api/transaction-types/loan", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	_, h := setup(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/transactions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow-origin header")
	}
	rec = do(t, h, http.MethodGet, "/api/transactions", nil)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow-origin on simple request")
	}
}

type readyFunc func(context.Context) error

func (f readyFunc) Ready(ctx context.Context) error { return f(ctx) }

func TestHealthAndReady(t *testing.T) {
	healthy := readyFunc(func(context.Context) error { return nil })
	_, h := setup(t, WithReadyCheckers(healthy))
	if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz expected 200, got %d", rec.Code)
	}

	down := readyFunc(func(context.Context) error { return errors.New("connection refused") })
	_, h = setup(t, WithReadyCheckers(healthy, down))
	if rec := do(t, h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := setup(t)
	do(t, h, http.MethodGet, "/api/transactions/missing", nil)
	rec := do(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `txledger_http_requests_total{method="GET",route="/api/transactions/{id}",status="404"}`) {
		t.Fatalf("request counter missing from metrics output")
	}
}

// failingService makes every operation fail with a backend error.
type failingService struct{ transaction.Service }

var errBackend = errors.New("disk on fire")

func (failingService) GetByID(context.Context, string) (ledger.Projection, error) {
	return ledger.Projection{}, errBackend
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	h := New(failingService{}, testLogger()).Handler()
	rec := do(t, h, http.MethodGet, "/api/transactions/t1", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}

// panicService panics on every read.
type panicService struct{ transaction.Service }

func (panicService) GetByUser(context.Context, string) ([]ledger.Projection, error) {
	panic("boom")
}

func TestRecovererReturns500(t *testing.T) {
	h := New(panicService{}, testLogger()).Handler()
	rec := do(t, h, http.MethodGet, "/api/transactions/user/u1", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
