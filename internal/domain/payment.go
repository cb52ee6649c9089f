/**
 * @description
 * Domain models for administrator payments, their worker allocations and the
 * per-worker payment records that workers verify against.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are encoded as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Work status values shared by Payment and WorkerPaymentRecord.
const (
	WorkStatusAssigned   = "assigned"
	WorkStatusInProgress = "in_progress"
	WorkStatusCompleted  = "completed"
)

// Payment status values for a worker's share of a payment.
const (
	PaymentStatusAllocated = "allocated"
	PaymentStatusPending   = "pending"
	PaymentStatusVerified  = "verified"
	PaymentStatusDisputed  = "disputed"
)

// Payment is an administrator disbursement for one work order and contractor.
type Payment struct {
	ID          int64              `json:"id"`
	Workorder   string             `json:"workorder"`
	Contractor  string             `json:"contractor"`
	Amount      decimal.Decimal    `json:"amount"`
	Allocated   bool               `json:"allocated"`
	Workers     []WorkerAllocation `json:"workers"`
	WorkStatus  string             `json:"work_status,omitempty"` // empty until allocated
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// WorkerAllocation is a worker's share of a payment, embedded in Payment.Workers.
type WorkerAllocation struct {
	Name                   string           `json:"name"`
	Phone                  string           `json:"phone"`
	PromisedAmount         decimal.Decimal  `json:"promised_amount"`
	ActualPaid             decimal.Decimal  `json:"actual_paid"`
	PaymentStatus          string           `json:"payment_status"`
	ActualReceivedByWorker *decimal.Decimal `json:"actual_received_by_worker,omitempty"`
	DiscrepancyNotes       *string          `json:"discrepancy_notes,omitempty"`
	DiscrepancyReportedAt  *time.Time       `json:"discrepancy_reported_at,omitempty"`
}

// WorkerPaymentRecord is the worker-centric view of one (phone, workorder) pair.
// It duplicates the matching WorkerAllocation so a worker's history can be
// listed without walking every payment.
type WorkerPaymentRecord struct {
	WorkerPhone            string           `json:"worker_phone"`
	WorkerName             string           `json:"worker_name"`
	Workorder              string           `json:"workorder"`
	Contractor             string           `json:"contractor"`
	PromisedAmount         decimal.Decimal  `json:"promised_amount"`
	ActualPaid             decimal.Decimal  `json:"actual_paid"`
	ActualReceivedByWorker *decimal.Decimal `json:"actual_received_by_worker,omitempty"`
	PaymentStatus          string           `json:"payment_status"`
	WorkStatus             string           `json:"work_status"`
	DiscrepancyNotes       *string          `json:"discrepancy_notes,omitempty"`
	DiscrepancyReportedAt  *time.Time       `json:"discrepancy_reported_at,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// WorkerByPhone returns the embedded allocation for phone, or nil.
func (p *Payment) WorkerByPhone(phone string) *WorkerAllocation {
	for i := range p.Workers {
		if p.Workers[i].Phone == phone {
			return &p.Workers[i]
		}
	}
	return nil
}

// Clone returns a copy of the payment that shares no memory with p.
func (p Payment) Clone() Payment {
	out := p
	if p.Workers != nil {
		out.Workers = make([]WorkerAllocation, len(p.Workers))
		for i, w := range p.Workers {
			out.Workers[i] = w.Clone()
		}
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Clone returns a copy of the allocation that shares no memory with w.
func (w WorkerAllocation) Clone() WorkerAllocation {
	out := w
	out.ActualReceivedByWorker = cloneDecimal(w.ActualReceivedByWorker)
	out.DiscrepancyNotes = cloneString(w.DiscrepancyNotes)
	out.DiscrepancyReportedAt = cloneTime(w.DiscrepancyReportedAt)
	return out
}

// Clone returns a copy of the record that shares no memory with r.
func (r WorkerPaymentRecord) Clone() WorkerPaymentRecord {
	out := r
	out.ActualReceivedByWorker = cloneDecimal(r.ActualReceivedByWorker)
	out.DiscrepancyNotes = cloneString(r.DiscrepancyNotes)
	out.DiscrepancyReportedAt = cloneTime(r.DiscrepancyReportedAt)
	return out
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
