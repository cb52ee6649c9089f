package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Poorujeet01/BCCL-PROJECT/internal/app"
	"github.com/Poorujeet01/BCCL-PROJECT/internal/domain"
	"github.com/Poorujeet01/BCCL-PROJECT/internal/store"
	wptsmiddleware "github.com/Poorujeet01/BCCL-PROJECT/pkg/middleware"
)

type limiterStub struct {
	count      int
	retryAfter int
}

func (l *limiterStub) ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (int, int, error) {
	l.count++
	return l.count, l.retryAfter, nil
}

func newTestRouter(t *testing.T, limiter app.LoginRateLimiter, opts RouterOptions) http.Handler {
	t.Helper()
	svc := app.NewService(store.NewRepository(), nil, limiter, app.Options{LoginRateLimitPerMinute: 1})
	return NewRouter(NewHandler(svc), opts)
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}

func TestPaymentWorkflowOverHTTP(t *testing.T) {
	h := newTestRouter(t, nil, RouterOptions{})

	rec := doRequest(t, h, http.MethodPost, "/api/admin/payments", `{"workorder":"WO1","contractor":"Acme","amount":1000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Message   string         `json:"message"`
		PaymentID int64          `json:"payment_id"`
		Payment   domain.Payment `json:"payment"`
	}
	decodeBody(t, rec, &created)
	if created.PaymentID != 1 || created.Message != "Payment created successfully for Acme" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/payments/1/allocate", `{"workers":[{"name":"Ravi","phone":"9999","promised_amount":600}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("allocate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var allocated struct {
		Message string         `json:"message"`
		Payment domain.Payment `json:"payment"`
	}
	decodeBody(t, rec, &allocated)
	if allocated.Message != "Payment allocated to 1 workers successfully" || !allocated.Payment.Allocated {
		t.Fatalf("unexpected allocate response: %+v", allocated)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/payments/1/mark-complete", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("mark-complete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, "/api/admin/payments/1/record-payments", `{"worker_payments":[{"worker_phone":"9999","worker_name":"Ravi","promised_amount":600,"actual_paid":600}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("record-payments: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, "/api/worker/login", `{"phone":"9999","name":"ravi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, "/api/worker/verify-payment-with-amount", `{"worker_phone":"9999","workorder":"WO1","actual_received":600,"verified":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-with-amount: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var verified struct {
		Message       string                     `json:"message"`
		PaymentRecord domain.WorkerPaymentRecord `json:"payment_record"`
	}
	decodeBody(t, rec, &verified)
	if verified.Message != "Payment verified! Amount received: ₹600" {
		t.Fatalf("unexpected message %q", verified.Message)
	}
	if verified.PaymentRecord.PaymentStatus != domain.PaymentStatusVerified {
		t.Fatalf("expected verified record, got %q", verified.PaymentRecord.PaymentStatus)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/worker/9999/payments", "")
	var records []domain.WorkerPaymentRecord
	decodeBody(t, rec, &records)
	if len(records) != 1 || records[0].PaymentStatus != domain.PaymentStatusVerified {
		t.Fatalf("expected one verified record, got %+v", records)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/admin/payments", "")
	var payments []domain.Payment
	decodeBody(t, rec, &payments)
	if len(payments) != 1 || payments[0].Workers[0].PaymentStatus != domain.PaymentStatusVerified {
		t.Fatalf("expected embedded worker verified, got %+v", payments)
	}
	if payments[0].Workers[0].ActualReceivedByWorker == nil || !payments[0].Workers[0].ActualReceivedByWorker.Equal(records[0].ActualPaid) {
		t.Fatalf("expected embedded actual received 600, got %v", payments[0].Workers[0].ActualReceivedByWorker)
	}
}

func TestErrorResponses(t *testing.T) {
	h := newTestRouter(t, nil, RouterOptions{})

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		code    int
		message string
	}{
		{name: "unknown endpoint", method: http.MethodGet, target: "/api/nope", code: http.StatusNotFound, message: "Endpoint not found"},
		{name: "unknown root path", method: http.MethodGet, target: "/nope", code: http.StatusNotFound, message: "Endpoint not found"},
		{name: "wrong method", method: http.MethodGet, target: "/api/worker/login", code: http.StatusMethodNotAllowed, message: "Method not allowed"},
		{name: "empty body", method: http.MethodPost, target: "/api/admin/payments", code: http.StatusBadRequest, message: "No data provided"},
		{name: "null body", method: http.MethodPost, target: "/api/worker/login", body: "null", code: http.StatusBadRequest, message: "No data provided"},
		{name: "malformed body", method: http.MethodPost, target: "/api/admin/payments", body: `{"workorder":`, code: http.StatusBadRequest, message: "Invalid request body"},
		{name: "invalid amount", method: http.MethodPost, target: "/api/admin/payments", body: `{"workorder":"WO1","contractor":"Acme","amount":0}`, code: http.StatusBadRequest, message: "Valid amount is required"},
		{name: "quoted amount", method: http.MethodPost, target: "/api/admin/payments", body: `{"workorder":"WO1","contractor":"Acme","amount":"5"}`, code: http.StatusBadRequest, message: "Valid amount is required"},
		{name: "non-integer id", method: http.MethodPost, target: "/api/payments/abc/mark-complete", code: http.StatusNotFound, message: "Endpoint not found"},
		{name: "unknown payment", method: http.MethodPost, target: "/api/payments/7/mark-complete", code: http.StatusNotFound, message: "Payment not found"},
		{name: "missing workers", method: http.MethodPost, target: "/api/payments/7/allocate", body: `{}`, code: http.StatusBadRequest, message: "Workers list is required"},
		{name: "unknown worker login", method: http.MethodPost, target: "/api/worker/login", body: `{"phone":"1","name":"x"}`, code: http.StatusNotFound, message: "Worker not found in any payment allocation"},
		{name: "unknown record", method: http.MethodPost, target: "/api/worker/verify-payment", body: `{"worker_phone":"1","workorder":"WO1","verified":true}`, code: http.StatusNotFound, message: "Payment record not found"},
		{name: "missing verification key", method: http.MethodPost, target: "/api/worker/report-discrepancy", body: `{"worker_phone":"1"}`, code: http.StatusBadRequest, message: "Worker phone and workorder are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.target, tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			if got := errorMessage(t, rec); got != tt.message {
				t.Fatalf("expected error %q, got %q", tt.message, got)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected JSON content type, got %q", ct)
			}
		})
	}
}

func TestVerifyPaymentMessages(t *testing.T) {
	h := newTestRouter(t, nil, RouterOptions{})
	doRequest(t, h, http.MethodPost, "/api/admin/payments", `{"workorder":"WO1","contractor":"Acme","amount":1000.50}`)
	doRequest(t, h, http.MethodPost, "/api/payments/1/allocate", `{"workers":[{"name":"Ravi","phone":"9999"}]}`)

	tests := []struct {
		verified bool
		message  string
		status   string
	}{
		{verified: true, message: "Payment verified", status: domain.PaymentStatusVerified},
		{verified: false, message: "Payment marked as pending", status: domain.PaymentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			body := `{"worker_phone":"9999","workorder":"WO1","verified":false}`
			if tt.verified {
				body = `{"worker_phone":"9999","workorder":"WO1","verified":true}`
			}
			rec := doRequest(t, h, http.MethodPost, "/api/worker/verify-payment", body)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp struct {
				Message       string                     `json:"message"`
				PaymentRecord domain.WorkerPaymentRecord `json:"payment_record"`
			}
			decodeBody(t, rec, &resp)
			if resp.Message != tt.message || resp.PaymentRecord.PaymentStatus != tt.status {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestDiscrepancyAcceptsZeroAmount(t *testing.T) {
	h := newTestRouter(t, nil, RouterOptions{})
	doRequest(t, h, http.MethodPost, "/api/admin/payments", `{"workorder":"WO1","contractor":"Acme","amount":1000}`)
	doRequest(t, h, http.MethodPost, "/api/payments/1/allocate", `{"workers":[{"name":"Ravi","phone":"9999"}]}`)

	rec := doRequest(t, h, http.MethodPost, "/api/worker/verify-payment-with-amount", `{"worker_phone":"9999","workorder":"WO1","actual_received":0,"verified":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero amount, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/worker/report-discrepancy", `{"worker_phone":"9999","workorder":"WO1","actual_received":0,"notes":"not paid"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for discrepancy, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Message       string                     `json:"message"`
		PaymentRecord domain.WorkerPaymentRecord `json:"payment_record"`
	}
	decodeBody(t, rec, &resp)
	if resp.PaymentRecord.PaymentStatus != domain.PaymentStatusDisputed {
		t.Fatalf("expected disputed, got %q", resp.PaymentRecord.PaymentStatus)
	}
	if !strings.HasPrefix(resp.Message, "Payment discrepancy reported successfully") {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestContractorPaymentsIgnoreCase(t *testing.T) {
	h := newTestRouter(t, nil, RouterOptions{})
	doRequest(t, h, http.MethodPost, "/api/admin/payments", `{"workorder":"WO1","contractor":"Acme Ltd","amount":10}`)
	doRequest(t, h, http.MethodPost, "/api/admin/payments", `{"workorder":"WO2","contractor":"Other","amount":10}`)

	rec := doRequest(t, h, http.MethodGet, "/api/payments/contractor/acme%20ltd", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payments []domain.Payment
	decodeBody(t, rec, &payments)
	if len(payments) != 1 || payments[0].Workorder != "WO1" {
		t.Fatalf("expected WO1 only, got %+v", payments)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/payments/contractor/nobody", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter(t, nil, RouterOptions{})
	doRequest(t, h, http.MethodPost, "/api/admin/payments", `{"workorder":"WO1","contractor":"Acme","amount":10}`)

	rec := doRequest(t, h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status domain.HealthStatus
	decodeBody(t, rec, &status)
	if status.Status != "healthy" || status.Service != "BCCL WPTS Backend" {
		t.Fatalf("unexpected health payload: %+v", status)
	}
	if status.PaymentsCount != 1 || status.WorkerPaymentsCount != 0 {
		t.Fatalf("expected counts 1/0, got %d/%d", status.PaymentsCount, status.WorkerPaymentsCount)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	h := newTestRouter(t, &limiterStub{retryAfter: 30}, RouterOptions{})

	rec := doRequest(t, h, http.MethodPost, "/api/worker/login", `{"phone":"9999","name":"Ravi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("first attempt: expected 404, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/worker/login", `{"phone":"9999","name":"Ravi"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt: expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected Retry-After 30, got %q", got)
	}
}

func TestAPIRateLimitMiddlewareIsApplied(t *testing.T) {
	rl := wptsmiddleware.NewPerMinuteRateLimiter(1)
	t.Cleanup(rl.Stop)
	h := newTestRouter(t, nil, RouterOptions{APIRateLimiter: rl})

	var last int
	for i := 0; i < 5; i++ {
		last = doRequest(t, h, http.MethodGet, "/api/health", "").Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the bucket is empty, got %d", last)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := doRequest(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := errorMessage(t, rec); got != "Internal server error" {
		t.Fatalf("expected generic error, got %q", got)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>WPTS</h1>"), 0o644); err != nil {
		t.Fatalf("failed to write index.html: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('ok')"), 0o644); err != nil {
		t.Fatalf("failed to write app.js: %v", err)
	}
	h := newTestRouter(t, nil, RouterOptions{StaticDir: dir})

	rec := doRequest(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "WPTS") {
		t.Fatalf("expected index.html, got %d: %q", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/app.js", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "console.log") {
		t.Fatalf("expected app.js, got %d: %q", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/missing.css", "")
	if rec.Code != http.StatusNotFound || errorMessage(t, rec) != "Endpoint not found" {
		t.Fatalf("expected JSON 404, got %d: %q", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/api/unknown", "")
	if rec.Code != http.StatusNotFound || errorMessage(t, rec) != "Endpoint not found" {
		t.Fatalf("expected api 404, got %d: %q", rec.Code, rec.Body.String())
	}
}
