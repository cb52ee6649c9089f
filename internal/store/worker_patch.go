package store

import (
	"time"

	"github.com/Poorujeet01/BCCL-PROJECT/internal/domain"
	"github.com/shopspring/decimal"
)

// WorkerKey identifies a worker payment record. Name and Contractor are only
// used when the record has to be created.
type WorkerKey struct {
	Phone      string
	Name       string
	Workorder  string
	Contractor string
}

// WorkerPatch is a partial update of a worker's payment state. Nil pointers
// and empty status strings leave the current value untouched.
type WorkerPatch struct {
	PromisedAmount         *decimal.Decimal
	ActualPaid             *decimal.Decimal
	ActualReceivedByWorker *decimal.Decimal
	PaymentStatus          string
	WorkStatus             string // record only, allocations carry no work status
	DiscrepancyNotes       *string
	DiscrepancyReportedAt  *time.Time
}

func (p WorkerPatch) applyToRecord(wp *domain.WorkerPaymentRecord) {
	if p.PromisedAmount != nil {
		wp.PromisedAmount = *p.PromisedAmount
	}
	if p.ActualPaid != nil {
		wp.ActualPaid = *p.ActualPaid
	}
	if p.ActualReceivedByWorker != nil {
		v := *p.ActualReceivedByWorker
		wp.ActualReceivedByWorker = &v
	}
	if p.PaymentStatus != "" {
		wp.PaymentStatus = p.PaymentStatus
	}
	if p.WorkStatus != "" {
		wp.WorkStatus = p.WorkStatus
	}
	if p.DiscrepancyNotes != nil {
		v := *p.DiscrepancyNotes
		wp.DiscrepancyNotes = &v
	}
	if p.DiscrepancyReportedAt != nil {
		v := *p.DiscrepancyReportedAt
		wp.DiscrepancyReportedAt = &v
	}
}

func (p WorkerPatch) applyToAllocation(w *domain.WorkerAllocation) {
	if p.PromisedAmount != nil {
		w.PromisedAmount = *p.PromisedAmount
	}
	if p.ActualPaid != nil {
		w.ActualPaid = *p.ActualPaid
	}
	if p.ActualReceivedByWorker != nil {
		v := *p.ActualReceivedByWorker
		w.ActualReceivedByWorker = &v
	}
	if p.PaymentStatus != "" {
		w.PaymentStatus = p.PaymentStatus
	}
	if p.DiscrepancyNotes != nil {
		v := *p.DiscrepancyNotes
		w.DiscrepancyNotes = &v
	}
	if p.DiscrepancyReportedAt != nil {
		v := *p.DiscrepancyReportedAt
		w.DiscrepancyReportedAt = &v
	}
}
