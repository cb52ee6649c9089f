package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CreatePaymentRequest is the body of POST /api/admin/payments.
type CreatePaymentRequest struct {
	Workorder  string           `json:"workorder"`
	Contractor string           `json:"contractor"`
	Amount     *decimal.Decimal `json:"amount"`
}

// UnmarshalJSON only takes amount from a JSON number. Strings, booleans and
// other types leave Amount nil so the request fails amount validation.
func (r *CreatePaymentRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Workorder  string          `json:"workorder"`
		Contractor string          `json:"contractor"`
		Amount     json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Workorder = raw.Workorder
	r.Contractor = raw.Contractor
	r.Amount = nil

	dec := json.NewDecoder(bytes.NewReader(raw.Amount))
	dec.UseNumber()
	var value interface{}
	if len(raw.Amount) == 0 || dec.Decode(&value) != nil {
		return nil
	}
	if number, ok := value.(json.Number); ok {
		if amount, err := decimal.NewFromString(number.String()); err == nil {
			r.Amount = &amount
		}
	}
	return nil
}

// WorkerInput is one worker in an allocation request.
// PromisedAmount defaults to zero and accepts a JSON number or numeric string.
type WorkerInput struct {
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	PromisedAmount decimal.Decimal `json:"promised_amount"`
}

// AllocateRequest is the body of POST /api/payments/{id}/allocate.
type AllocateRequest struct {
	Workers []WorkerInput `json:"workers"`
}

// WorkerPaymentInput is one entry of a record-payments request.
type WorkerPaymentInput struct {
	WorkerPhone    string          `json:"worker_phone"`
	WorkerName     string          `json:"worker_name"`
	PromisedAmount decimal.Decimal `json:"promised_amount"`
	ActualPaid     decimal.Decimal `json:"actual_paid"`
}

// RecordPaymentsRequest is the body of POST /api/admin/payments/{id}/record-payments.
// A nil WorkerPayments means the field was missing; an empty list is accepted.
type RecordPaymentsRequest struct {
	WorkerPayments []WorkerPaymentInput `json:"worker_payments"`
}

// WorkerLoginRequest is the body of POST /api/worker/login.
type WorkerLoginRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// VerifyPaymentRequest is the body of POST /api/worker/verify-payment.
type VerifyPaymentRequest struct {
	WorkerPhone string `json:"worker_phone"`
	Workorder   string `json:"workorder"`
	Verified    bool   `json:"verified"`
}

// VerifyPaymentWithAmountRequest is the body of POST /api/worker/verify-payment-with-amount.
type VerifyPaymentWithAmountRequest struct {
	WorkerPhone    string          `json:"worker_phone"`
	Workorder      string          `json:"workorder"`
	ActualReceived decimal.Decimal `json:"actual_received"`
	Verified       bool            `json:"verified"`
}

// ReportDiscrepancyRequest is the body of POST /api/worker/report-discrepancy.
type ReportDiscrepancyRequest struct {
	WorkerPhone    string          `json:"worker_phone"`
	Workorder      string          `json:"workorder"`
	ActualReceived decimal.Decimal `json:"actual_received"`
	Notes          string          `json:"notes"`
}

// Worker identifies a logged-in worker.
type Worker struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// HealthStatus is returned by GET /api/health.
type HealthStatus struct {
	Status              string    `json:"status"`
	Service             string    `json:"service"`
	Timestamp           time.Time `json:"timestamp"`
	PaymentsCount       int       `json:"payments_count"`
	WorkerPaymentsCount int       `json:"worker_payments_count"`
}
