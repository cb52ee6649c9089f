/**
 * @description
 * HTTP handlers for the worker payment tracking API. Every response body is
 * JSON; failures are reported as {"error": "..."}.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/Poorujeet01/BCCL-PROJECT/internal/app"
	"github.com/Poorujeet01/BCCL-PROJECT/internal/domain"
	"github.com/Poorujeet01/BCCL-PROJECT/internal/store"
	"github.com/go-chi/chi/v5"
)

// PaymentService is the application surface the handlers depend on.
type PaymentService interface {
	CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.Payment, error)
	ListPayments(ctx context.Context) ([]domain.Payment, error)
	ListContractorPayments(ctx context.Context, name string) ([]domain.Payment, error)
	AllocatePayment(ctx context.Context, paymentID int64, req domain.AllocateRequest) (*domain.Payment, error)
	MarkWorkComplete(ctx context.Context, paymentID int64) (*domain.Payment, error)
	RecordActualPayments(ctx context.Context, paymentID int64, req domain.RecordPaymentsRequest) (*domain.Payment, error)
	ListWorkerPayments(ctx context.Context) ([]domain.WorkerPaymentRecord, error)
	ListWorkerPaymentsByPhone(ctx context.Context, phone string) ([]domain.WorkerPaymentRecord, error)
	WorkerLogin(ctx context.Context, req domain.WorkerLoginRequest) (*domain.Worker, error)
	VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (*domain.WorkerPaymentRecord, error)
	VerifyPaymentWithAmount(ctx context.Context, req domain.VerifyPaymentWithAmountRequest) (*domain.WorkerPaymentRecord, error)
	ReportDiscrepancy(ctx context.Context, req domain.ReportDiscrepancyRequest) (*domain.WorkerPaymentRecord, error)
	Health(ctx context.Context) (*domain.HealthStatus, error)
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service PaymentService
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service PaymentService) *Handler {
	return &Handler{service: service}
}

const (
	msgInternalError    = "Internal server error"
	msgNotFound         = "Endpoint not found"
	msgMethodNotAllowed = "Method not allowed"
)

// Body decoding errors. Their text is returned to the client as is.
var (
	errNoData      = errors.New("No data provided")
	errInvalidBody = errors.New("Invalid request body")
)

type paymentResponse struct {
	Message   string          `json:"message"`
	PaymentID int64           `json:"payment_id,omitempty"`
	Payment   *domain.Payment `json:"payment"`
}

type workerRecordResponse struct {
	Message       string                      `json:"message"`
	PaymentRecord *domain.WorkerPaymentRecord `json:"payment_record"`
}

type loginResponse struct {
	Message string         `json:"message"`
	Worker  *domain.Worker `json:"worker"`
}

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePaymentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "create_payment", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, paymentResponse{
		Message:   fmt.Sprintf("Payment created successfully for %s", payment.Contractor),
		PaymentID: payment.ID,
		Payment:   payment,
	})
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_payments", err)
		return
	}
	respondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) handleListContractorPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListContractorPayments(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeServiceError(w, "list_contractor_payments", err)
		return
	}
	respondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) handleAllocatePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentIDParam(w, r)
	if !ok {
		return
	}

	var req domain.AllocateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.service.AllocatePayment(r.Context(), paymentID, req)
	if err != nil {
		h.writeServiceError(w, "allocate_payment", err)
		return
	}

	respondWithJSON(w, http.StatusOK, paymentResponse{
		Message: fmt.Sprintf("Payment allocated to %d workers successfully", len(payment.Workers)),
		Payment: payment,
	})
}

func (h *Handler) handleMarkComplete(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentIDParam(w, r)
	if !ok {
		return
	}

	payment, err := h.service.MarkWorkComplete(r.Context(), paymentID)
	if err != nil {
		h.writeServiceError(w, "mark_complete", err)
		return
	}

	respondWithJSON(w, http.StatusOK, paymentResponse{
		Message: "Work marked as completed. You can now make payments to workers.",
		Payment: payment,
	})
}

func (h *Handler) handleRecordPayments(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentIDParam(w, r)
	if !ok {
		return
	}

	var req domain.RecordPaymentsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.service.RecordActualPayments(r.Context(), paymentID, req)
	if err != nil {
		h.writeServiceError(w, "record_payments", err)
		return
	}

	respondWithJSON(w, http.StatusOK, paymentResponse{
		Message: fmt.Sprintf("Payment records updated for %d workers", len(req.WorkerPayments)),
		Payment: payment,
	})
}

func (h *Handler) handleListWorkerPayments(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListWorkerPayments(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_worker_payments", err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

func (h *Handler) handleWorkerLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.WorkerLoginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	worker, err := h.service.WorkerLogin(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "worker_login", err)
		return
	}

	respondWithJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Worker: worker})
}

func (h *Handler) handleWorkerPayments(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListWorkerPaymentsByPhone(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		h.writeServiceError(w, "worker_payments", err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyPaymentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.service.VerifyPayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "verify_payment", err)
		return
	}

	message := "Payment marked as pending"
	if req.Verified {
		message = "Payment verified"
	}
	respondWithJSON(w, http.StatusOK, workerRecordResponse{Message: message, PaymentRecord: record})
}

func (h *Handler) handleVerifyPaymentWithAmount(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyPaymentWithAmountRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.service.VerifyPaymentWithAmount(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "verify_payment_with_amount", err)
		return
	}

	respondWithJSON(w, http.StatusOK, workerRecordResponse{
		Message:       fmt.Sprintf("Payment verified! Amount received: ₹%s", req.ActualReceived.String()),
		PaymentRecord: record,
	})
}

func (h *Handler) handleReportDiscrepancy(w http.ResponseWriter, r *http.Request) {
	var req domain.ReportDiscrepancyRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.service.ReportDiscrepancy(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "report_discrepancy", err)
		return
	}

	respondWithJSON(w, http.StatusOK, workerRecordResponse{
		Message:       "Payment discrepancy reported successfully. Admin will review this issue.",
		PaymentRecord: record,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Health(r.Context())
	if err != nil {
		h.writeServiceError(w, "health", err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// writeServiceError maps application errors onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	var limited *app.RateLimitedError
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInvalidPayment):
		writeError(w, http.StatusBadRequest, "Invalid payment data")
	case errors.Is(err, store.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, "Payment not found")
	case errors.Is(err, store.ErrWorkerPaymentNotFound):
		writeError(w, http.StatusNotFound, "Payment record not found")
	case errors.Is(err, app.ErrWorkerNotFound):
		writeError(w, http.StatusNotFound, "Worker not found in any payment allocation")
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
		writeError(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

// paymentIDParam parses {id}. Non-integer ids do not name a route, so they
// are answered like an unknown endpoint.
func paymentIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return 0, false
	}
	return id, true
}

// decodeJSONBody decodes the request body into dst. An empty body or a JSON
// null is reported as errNoData.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errInvalidBody
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return errNoData
	}
	if err := json.Unmarshal([]byte(trimmed), dst); err != nil {
		return errInvalidBody
	}
	return nil
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func writeError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
