package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys for events published on the events exchange.
const (
	EventPaymentCreated        = "payment.created"
	EventPaymentAllocated      = "payment.allocated"
	EventPaymentWorkCompleted  = "payment.work_completed"
	EventPaymentsRecorded      = "payment.payments_recorded"
	EventWorkerPaymentVerified = "worker_payment.verified"
	EventWorkerPaymentDisputed = "worker_payment.disputed"
)

// PaymentEvent is the message body for every payment lifecycle event.
type PaymentEvent struct {
	EventID       string           `json:"event_id"`
	Type          string           `json:"type"`
	PaymentID     int64            `json:"payment_id,omitempty"`
	Workorder     string           `json:"workorder"`
	Contractor    string           `json:"contractor,omitempty"`
	WorkerPhone   string           `json:"worker_phone,omitempty"`
	PaymentStatus string           `json:"payment_status,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	WorkerCount   int              `json:"worker_count,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// MessageID lets publishers reuse EventID as the broker message id.
func (e PaymentEvent) MessageID() string {
	return e.EventID
}
