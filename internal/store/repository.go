/**
 * @description
 * In-memory data access layer for the payment service. Both tables, payments
 * and worker payment records, sit behind a single mutex held for the whole of
 * each Update or View.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Poorujeet01/BCCL-PROJECT/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrWorkerPaymentNotFound = errors.New("payment record not found")
	ErrInvalidPayment        = errors.New("invalid payment")
)

// Repository holds the payment and worker payment tables.
type Repository struct {
	mu             sync.Mutex
	payments       []*domain.Payment
	workerPayments []*domain.WorkerPaymentRecord
	nextID         int64
	now            func() time.Time
}

// NewRepository creates an empty repository. Payment ids start at 1.
func NewRepository() *Repository {
	return &Repository{nextID: 1, now: time.Now}
}

// Update runs fn with exclusive access to both tables. fn must finish its
// validation before it mutates anything through tx.
func (r *Repository) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&Tx{repo: r, now: r.now()})
}

// View runs fn with exclusive access to both tables for reading.
func (r *Repository) View(ctx context.Context, fn func(tx *Tx) error) error {
	return r.Update(ctx, fn)
}

// Tx is the handle passed to Update and View. Pointers it returns are only
// valid until fn returns.
type Tx struct {
	repo *Repository
	now  time.Time
}

// Now is the timestamp stamped on every change made through this Tx.
func (tx *Tx) Now() time.Time {
	return tx.now
}

// CreatePayment appends a new, unallocated payment with the next id.
func (tx *Tx) CreatePayment(workorder, contractor string, amount decimal.Decimal) (*domain.Payment, error) {
	workorder = strings.TrimSpace(workorder)
	contractor = strings.TrimSpace(contractor)
	switch {
	case workorder == "":
		return nil, fmt.Errorf("%w: workorder is empty", ErrInvalidPayment)
	case contractor == "":
		return nil, fmt.Errorf("%w: contractor is empty", ErrInvalidPayment)
	case !amount.IsPositive():
		return nil, fmt.Errorf("%w: amount %s is not positive", ErrInvalidPayment, amount)
	}

	payment := &domain.Payment{
		ID:         tx.repo.nextID,
		Workorder:  workorder,
		Contractor: contractor,
		Amount:     amount,
		Workers:    []domain.WorkerAllocation{},
		CreatedAt:  tx.now,
		UpdatedAt:  tx.now,
	}
	tx.repo.nextID++
	tx.repo.payments = append(tx.repo.payments, payment)
	return payment, nil
}

// Payments returns every payment in insertion order.
func (tx *Tx) Payments() []*domain.Payment {
	return tx.repo.payments
}

// FindPayment returns the payment with the given id.
func (tx *Tx) FindPayment(id int64) (*domain.Payment, error) {
	for _, p := range tx.repo.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, ErrPaymentNotFound
}

// FindPaymentByWorkorder returns the first payment created for workorder, or nil.
func (tx *Tx) FindPaymentByWorkorder(workorder string) *domain.Payment {
	for _, p := range tx.repo.payments {
		if p.Workorder == workorder {
			return p
		}
	}
	return nil
}

// WorkerPayments returns every worker payment record in insertion order.
func (tx *Tx) WorkerPayments() []*domain.WorkerPaymentRecord {
	return tx.repo.workerPayments
}

// FindWorkerPayment returns the record keyed by (phone, workorder), or nil.
func (tx *Tx) FindWorkerPayment(phone, workorder string) *domain.WorkerPaymentRecord {
	for _, wp := range tx.repo.workerPayments {
		if wp.WorkerPhone == phone && wp.Workorder == workorder {
			return wp
		}
	}
	return nil
}

// UpsertWorkerPayment merges patch into the record keyed by (key.Phone,
// key.Workorder), creating it with default values when it does not exist.
// Fields left unset in patch keep their current value.
func (tx *Tx) UpsertWorkerPayment(key WorkerKey, patch WorkerPatch) *domain.WorkerPaymentRecord {
	if wp := tx.FindWorkerPayment(key.Phone, key.Workorder); wp != nil {
		patch.applyToRecord(wp)
		wp.UpdatedAt = tx.now
		return wp
	}

	wp := &domain.WorkerPaymentRecord{
		WorkerPhone:    key.Phone,
		WorkerName:     key.Name,
		Workorder:      key.Workorder,
		Contractor:     key.Contractor,
		PromisedAmount: decimal.Zero,
		ActualPaid:     decimal.Zero,
		PaymentStatus:  domain.PaymentStatusPending,
		WorkStatus:     domain.WorkStatusAssigned,
		CreatedAt:      tx.now,
		UpdatedAt:      tx.now,
	}
	patch.applyToRecord(wp)
	tx.repo.workerPayments = append(tx.repo.workerPayments, wp)
	return wp
}

// SyncWorker applies patch to both copies of a worker's payment state: the
// allocation embedded in payment (when payment is non-nil and lists the
// worker's phone) and the worker payment record. It reports whether the
// embedded allocation was found.
func (tx *Tx) SyncWorker(payment *domain.Payment, key WorkerKey, patch WorkerPatch) (*domain.WorkerPaymentRecord, bool) {
	embedded := false
	if payment != nil {
		if w := payment.WorkerByPhone(key.Phone); w != nil {
			patch.applyToAllocation(w)
			embedded = true
		}
	}
	return tx.UpsertWorkerPayment(key, patch), embedded
}

// Counts returns the number of payments and worker payment records.
func (tx *Tx) Counts() (payments int, workerPayments int) {
	return len(tx.repo.payments), len(tx.repo.workerPayments)
}
