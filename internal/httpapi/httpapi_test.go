package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lakumart/backoffice/internal/domain"
	"lakumart/backoffice/internal/ledger"
	"lakumart/backoffice/internal/report"
)

type stubRemote struct {
	summary *domain.Summary
	txs     []domain.Transaction
}

func (s *stubRemote) Summary(ctx context.Context, q report.Query) (*domain.Summary, error) {
	return s.summary, nil
}

func (s *stubRemote) Daily(ctx context.Context, q report.Query) ([]domain.DailyPoint, error) {
	return nil, nil
}

func (s *stubRemote) PaymentBreakdown(ctx context.Context, q report.Query) ([]domain.PaymentSlice, error) {
	return nil, nil
}

func (s *stubRemote) Transactions(ctx context.Context, q report.Query, page, limit int) ([]domain.Transaction, domain.Pagination, error) {
	// Mimic the real API: the filter body is authoritative, so apply the
	// cashier restriction the way the server would.
	out := make([]domain.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if q.CashierID != "" && tx.CashierID != q.CashierID {
			continue
		}
		out = append(out, tx)
	}
	return out, domain.Pagination{TotalPages: 1}, nil
}

func (s *stubRemote) ProductTotals(ctx context.Context, q report.Query) ([]domain.ProductTotal, error) {
	return nil, nil
}

func (s *stubRemote) CashierTotals(ctx context.Context, q report.Query) ([]domain.CashierTotal, error) {
	return nil, nil
}

func remoteRow(id, cashierID, cashierName string, ts time.Time, total int64) domain.Transaction {
	return domain.Transaction{
		ID: id, Timestamp: ts,
		CashierID: cashierID, CashierName: cashierName,
		CustomerLabel: domain.WalkInCustomerLabel,
		PaymentMethod: domain.PaymentCash,
		SubtotalCents: total, TotalCents: total,
		Origin: domain.OriginRemote,
	}
}

type testEnv struct {
	api     *API
	handler http.Handler
	auth    *AuthManager
}

func newTestEnv(t *testing.T, remote report.RemoteClient, store ledger.Store) *testEnv {
	t.Helper()
	if store == nil {
		store = ledger.NewMemory()
	}
	svc := report.NewService(remote, store, 0, 10, time.FixedZone("WIB", 7*3600))
	auth := NewAuthManager("test-secret-test-secret-test-secret", time.Hour, []domain.UserAccount{
		{Username: "admin", DisplayName: "Administrator", Password: "admin-secret", Role: "admin", Active: true},
		{Username: "sinta", DisplayName: "Sinta Dewi", Password: "sinta-secret", Role: "cashier", Active: true},
	})
	api := New(svc, auth, "http://127.0.0.1:3000")
	return &testEnv{api: api, handler: api.Handler(), auth: auth}
}

func (e *testEnv) token(t *testing.T, username, password string) string {
	t.Helper()
	resp, err := e.auth.Login(domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return resp.AccessToken
}

func (e *testEnv) postJSON(t *testing.T, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", e.api.generateCSRFToken())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func reportRequest() domain.SalesReportRequest {
	return domain.SalesReportRequest{DateFrom: "2026-03-10", DateTo: "2026-03-10", CashierID: "all"}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)

	body := bytes.NewReader([]byte(`{"username":"sinta","password":"sinta-secret"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.DisplayName != "Sinta Dewi" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)

	var last int
	for i := 0; i < 7; i++ {
		body := bytes.NewReader([]byte(`{"username":"sinta","password":"wrong"}`))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
		req.RemoteAddr = "10.1.2.3:5555"
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", last)
	}
}

func TestSalesReportRequiresAuth(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)

	rec := env.postJSON(t, "/api/v1/reports/sales", "", reportRequest())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = env.postJSON(t, "/api/v1/reports/sales", "not-a-token", reportRequest())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestSalesReportRequiresCSRFToken(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)
	token := env.token(t, "admin", "admin-secret")

	encoded, _ := json.Marshal(reportRequest())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/sales", bytes.NewReader(encoded))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}
}

func TestCSRFTokenEndpointIssuesValidToken(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Token string `json:"csrf_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.api.validateCSRFToken(payload.Token) {
		t.Fatal("issued token should validate")
	}
}

func TestSalesReportHappyPath(t *testing.T) {
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	remote := &stubRemote{
		summary: &domain.Summary{TransactionCount: 1, NetSalesCents: 150000, GrossSalesCents: 150000},
		txs:     []domain.Transaction{remoteRow("trx-1", "sinta", "Sinta Dewi", ts, 150000)},
	}
	store := ledger.NewMemory(ledger.RawRecord{
		Tanggal:          "2026-03-10T11:00:00+07:00",
		MetodePembayaran: "qris",
		Kasir:            "Sinta Dewi",
		Subtotal:         50000,
		Total:            50000,
	})
	env := newTestEnv(t, remote, store)
	token := env.token(t, "admin", "admin-secret")

	rec := env.postJSON(t, "/api/v1/reports/sales", token, reportRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result report.SalesReport
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected both sources merged, got %d rows", len(result.Rows))
	}
	if result.Summary == nil || result.Summary.TransactionCount != 2 {
		t.Fatalf("expected combined summary, got %+v", result.Summary)
	}
}

func TestSalesReportPinsCashierCaller(t *testing.T) {
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	remote := &stubRemote{
		txs: []domain.Transaction{
			remoteRow("trx-1", "sinta", "Sinta Dewi", ts, 100000),
			remoteRow("trx-2", "budi", "Budi Santoso", ts, 200000),
		},
	}
	env := newTestEnv(t, remote, nil)
	token := env.token(t, "sinta", "sinta-secret")

	// The cashier asks for everyone; the server pins the filter regardless.
	rec := env.postJSON(t, "/api/v1/reports/sales", token, reportRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result report.SalesReport
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0].ID != "trx-1" {
		t.Fatalf("cashier must only see own rows, got %+v", result.Rows)
	}
}

func TestSalesReportRejectsBadDates(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)
	token := env.token(t, "admin", "admin-secret")

	req := reportRequest()
	req.DateFrom = "10-03-2026"
	rec := env.postJSON(t, "/api/v1/reports/sales", token, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}

	req = reportRequest()
	req.DateFrom = "2026-03-11"
	req.DateTo = "2026-03-10"
	rec = env.postJSON(t, "/api/v1/reports/sales", token, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}
}

func TestSalesReportRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)
	token := env.token(t, "admin", "admin-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/sales",
		strings.NewReader(`{"date_from":"2026-03-10","date_to":"2026-03-10","bogus":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", env.api.generateCSRFToken())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestSalesReportExportCSV(t *testing.T) {
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	remote := &stubRemote{
		summary: &domain.Summary{TransactionCount: 1, NetSalesCents: 150000},
		txs:     []domain.Transaction{remoteRow("trx-1", "sinta", "Sinta Dewi", ts, 150000)},
	}
	env := newTestEnv(t, remote, nil)
	token := env.token(t, "admin", "admin-secret")

	rec := env.postJSON(t, "/api/v1/reports/sales/export?format=csv", token, reportRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "transaction,trx-1,150000") {
		t.Fatalf("expected transaction row in export:\n%s", rec.Body.String())
	}
}

func TestSalesReportExportHTML(t *testing.T) {
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	remote := &stubRemote{
		txs: []domain.Transaction{remoteRow("trx-1", "sinta", "Sinta <script>", ts, 150000)},
	}
	env := newTestEnv(t, remote, nil)
	token := env.token(t, "admin", "admin-secret")

	rec := env.postJSON(t, "/api/v1/reports/sales/export?format=html", token, reportRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Fatal("cashier name must be escaped in HTML export")
	}
	if !strings.Contains(body, "trx-1") {
		t.Fatalf("expected row in printable report:\n%s", body)
	}
}

func TestSalesReportExportRejectsUnknownFormat(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)
	token := env.token(t, "admin", "admin-secret")

	rec := env.postJSON(t, "/api/v1/reports/sales/export?format=xlsx", token, reportRequest())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, &stubRemote{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reports/sales", nil)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://127.0.0.1:3000" {
		t.Fatalf("expected CORS origin header, got %q", got)
	}

	// Unknown origins get no CORS headers at all.
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/reports/sales", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected CORS header for foreign origin: %q", got)
	}
}
