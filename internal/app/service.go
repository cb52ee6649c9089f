/**
 * @description
 * Core business logic for the worker payment tracking service. The Service
 * moves a payment from creation to worker verification and keeps each
 * worker's embedded allocation in step with its worker payment record.
 */
package app

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/Poorujeet01/BCCL-PROJECT/internal/domain"
	"github.com/Poorujeet01/BCCL-PROJECT/internal/store"
	"github.com/shopspring/decimal"
)

const (
	defaultServiceName    = "BCCL WPTS Backend"
	defaultEventsExchange = "wpts.events"
	loginRateLimitScope   = "worker_login"
)

// Repository defines the storage operations the service needs.
type Repository interface {
	Update(ctx context.Context, fn func(tx *store.Tx) error) error
	View(ctx context.Context, fn func(tx *store.Tx) error) error
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// LoginRateLimiter counts login attempts per subject within a window.
type LoginRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	ServiceName             string
	EventsExchange          string
	LoginRateLimitPerMinute int
}

// Service provides the payment workflow.
type Service struct {
	repo      Repository
	publisher EventPublisher
	limiter   LoginRateLimiter
	opts      Options
}

// NewService creates a new payment service. publisher and limiter may be nil.
func NewService(repo Repository, publisher EventPublisher, limiter LoginRateLimiter, opts Options) *Service {
	if strings.TrimSpace(opts.ServiceName) == "" {
		opts.ServiceName = defaultServiceName
	}
	if strings.TrimSpace(opts.EventsExchange) == "" {
		opts.EventsExchange = defaultEventsExchange
	}
	return &Service{repo: repo, publisher: publisher, limiter: limiter, opts: opts}
}

// CreatePayment records a new payment for a work order and contractor.
func (s *Service) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.Payment, error) {
	workorder := strings.TrimSpace(req.Workorder)
	contractor := strings.TrimSpace(req.Contractor)
	if workorder == "" {
		return nil, ErrWorkorderRequired
	}
	if contractor == "" {
		return nil, ErrContractorRequired
	}
	if req.Amount == nil || !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var payment domain.Payment
	err := s.repo.Update(ctx, func(tx *store.Tx) error {
		p, err := tx.CreatePayment(workorder, contractor, *req.Amount)
		if err != nil {
			return err
		}
		payment = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"payment created\" payment_id=%d workorder=%q contractor=%q amount=%s",
		payment.ID, payment.Workorder, payment.Contractor, payment.Amount)
	s.publishEvent(ctx, domain.EventPaymentCreated, domain.PaymentEvent{
		PaymentID:  payment.ID,
		Workorder:  payment.Workorder,
		Contractor: payment.Contractor,
		Amount:     &payment.Amount,
	})
	return &payment, nil
}

// ListPayments returns every payment in creation order.
func (s *Service) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	return s.collectPayments(ctx, func(*domain.Payment) bool { return true })
}

// ListContractorPayments returns the payments whose contractor matches name, ignoring case.
func (s *Service) ListContractorPayments(ctx context.Context, name string) ([]domain.Payment, error) {
	name = strings.TrimSpace(name)
	return s.collectPayments(ctx, func(p *domain.Payment) bool {
		return strings.EqualFold(p.Contractor, name)
	})
}

func (s *Service) collectPayments(ctx context.Context, keep func(*domain.Payment) bool) ([]domain.Payment, error) {
	payments := make([]domain.Payment, 0)
	err := s.repo.View(ctx, func(tx *store.Tx) error {
		for _, p := range tx.Payments() {
			if keep(p) {
				payments = append(payments, p.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// AllocatePayment replaces the payment's worker list and opens a worker
// payment record for every worker.
func (s *Service) AllocatePayment(ctx context.Context, paymentID int64, req domain.AllocateRequest) (*domain.Payment, error) {
	if req.Workers == nil {
		return nil, ErrWorkersRequired
	}
	if len(req.Workers) == 0 {
		return nil, ErrNoWorkers
	}

	var payment domain.Payment
	err := s.repo.Update(ctx, func(tx *store.Tx) error {
		p, err := tx.FindPayment(paymentID)
		if err != nil {
			return err
		}

		workers := make([]domain.WorkerAllocation, 0, len(req.Workers))
		for _, w := range req.Workers {
			name := strings.TrimSpace(w.Name)
			phone := strings.TrimSpace(w.Phone)
			if name == "" {
				return ErrWorkerNameRequired
			}
			if phone == "" {
				return ErrWorkerPhoneRequired
			}
			workers = append(workers, domain.WorkerAllocation{
				Name:           name,
				Phone:          phone,
				PromisedAmount: w.PromisedAmount,
				ActualPaid:     decimal.Zero,
				PaymentStatus:  domain.PaymentStatusAllocated,
			})
		}

		p.Workers = workers
		p.Allocated = true
		p.WorkStatus = domain.WorkStatusAssigned
		p.UpdatedAt = tx.Now()

		// The embedded list is already the request; only the records need merging.
		for _, w := range workers {
			promised := w.PromisedAmount
			tx.UpsertWorkerPayment(workerKey(p, w.Phone, w.Name), store.WorkerPatch{
				PromisedAmount: &promised,
				PaymentStatus:  domain.PaymentStatusAllocated,
				WorkStatus:     domain.WorkStatusAssigned,
			})
		}

		payment = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"payment allocated\" payment_id=%d workers=%d", payment.ID, len(payment.Workers))
	s.publishEvent(ctx, domain.EventPaymentAllocated, domain.PaymentEvent{
		PaymentID:   payment.ID,
		Workorder:   payment.Workorder,
		Contractor:  payment.Contractor,
		WorkerCount: len(payment.Workers),
	})
	return &payment, nil
}

// MarkWorkComplete marks an allocated payment's work as completed, on the
// payment and on every allocated worker's record.
func (s *Service) MarkWorkComplete(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	var payment domain.Payment
	err := s.repo.Update(ctx, func(tx *store.Tx) error {
		p, err := tx.FindPayment(paymentID)
		if err != nil {
			return err
		}
		if !p.Allocated {
			return ErrNotAllocated
		}

		now := tx.Now()
		p.WorkStatus = domain.WorkStatusCompleted
		p.CompletedAt = &now
		p.UpdatedAt = now

		for _, w := range p.Workers {
			tx.SyncWorker(p, workerKey(p, w.Phone, w.Name), store.WorkerPatch{
				WorkStatus: domain.WorkStatusCompleted,
			})
		}

		payment = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"work marked completed\" payment_id=%d", payment.ID)
	s.publishEvent(ctx, domain.EventPaymentWorkCompleted, domain.PaymentEvent{
		PaymentID:   payment.ID,
		Workorder:   payment.Workorder,
		Contractor:  payment.Contractor,
		WorkerCount: len(payment.Workers),
	})
	return &payment, nil
}

// RecordActualPayments stores what the administrator actually paid each
// worker and moves those workers to pending verification. Entries whose
// phone is not allocated on the payment are skipped.
func (s *Service) RecordActualPayments(ctx context.Context, paymentID int64, req domain.RecordPaymentsRequest) (*domain.Payment, error) {
	if req.WorkerPayments == nil {
		return nil, ErrWorkerPaymentsRequired
	}

	var payment domain.Payment
	err := s.repo.Update(ctx, func(tx *store.Tx) error {
		p, err := tx.FindPayment(paymentID)
		if err != nil {
			return err
		}
		if !p.Allocated {
			return ErrNotAllocated
		}
		if p.WorkStatus != domain.WorkStatusCompleted {
			return ErrWorkNotCompleted
		}

		for _, in := range req.WorkerPayments {
			phone := strings.TrimSpace(in.WorkerPhone)
			if p.WorkerByPhone(phone) == nil {
				log.Printf("level=warn component=app msg=\"skipping payment for unallocated worker\" payment_id=%d worker_phone=%q", p.ID, phone)
				continue
			}
			promised := in.PromisedAmount
			paid := in.ActualPaid
			tx.SyncWorker(p, workerKey(p, phone, strings.TrimSpace(in.WorkerName)), store.WorkerPatch{
				PromisedAmount: &promised,
				ActualPaid:     &paid,
				PaymentStatus:  domain.PaymentStatusPending,
			})
		}
		p.UpdatedAt = tx.Now()

		payment = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"actual payments recorded\" payment_id=%d entries=%d", payment.ID, len(req.WorkerPayments))
	s.publishEvent(ctx, domain.EventPaymentsRecorded, domain.PaymentEvent{
		PaymentID:   payment.ID,
		Workorder:   payment.Workorder,
		Contractor:  payment.Contractor,
		WorkerCount: len(req.WorkerPayments),
	})
	return &payment, nil
}

// ListWorkerPayments returns every worker payment record.
func (s *Service) ListWorkerPayments(ctx context.Context) ([]domain.WorkerPaymentRecord, error) {
	return s.collectWorkerPayments(ctx, func(*domain.WorkerPaymentRecord) bool { return true })
}

// ListWorkerPaymentsByPhone returns a worker's records across all work orders.
func (s *Service) ListWorkerPaymentsByPhone(ctx context.Context, phone string) ([]domain.WorkerPaymentRecord, error) {
	phone = strings.TrimSpace(phone)
	return s.collectWorkerPayments(ctx, func(wp *domain.WorkerPaymentRecord) bool {
		return wp.WorkerPhone == phone
	})
}

func (s *Service) collectWorkerPayments(ctx context.Context, keep func(*domain.WorkerPaymentRecord) bool) ([]domain.WorkerPaymentRecord, error) {
	records := make([]domain.WorkerPaymentRecord, 0)
	err := s.repo.View(ctx, func(tx *store.Tx) error {
		for _, wp := range tx.WorkerPayments() {
			if keep(wp) {
				records = append(records, wp.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// WorkerLogin identifies a worker by phone and name. The worker must appear
// on an allocated payment with that exact phone and a case-insensitively
// equal name.
func (s *Service) WorkerLogin(ctx context.Context, req domain.WorkerLoginRequest) (*domain.Worker, error) {
	phone := strings.TrimSpace(req.Phone)
	name := strings.TrimSpace(req.Name)
	if phone == "" || name == "" {
		return nil, ErrLoginFieldsRequired
	}

	if err := s.consumeLoginAttempt(ctx, phone); err != nil {
		return nil, err
	}

	found := false
	err := s.repo.View(ctx, func(tx *store.Tx) error {
		for _, p := range tx.Payments() {
			if !p.Allocated {
				continue
			}
			for _, w := range p.Workers {
				if w.Phone == phone && strings.EqualFold(w.Name, name) {
					found = true
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrWorkerNotFound
	}

	log.Printf("level=info component=app msg=\"worker login\" worker_phone=%q", phone)
	return &domain.Worker{Name: name, Phone: phone}, nil
}

func (s *Service) consumeLoginAttempt(ctx context.Context, phone string) error {
	if s.limiter == nil || s.opts.LoginRateLimitPerMinute <= 0 {
		return nil
	}

	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, loginRateLimitScope, phone, s.opts.LoginRateLimitPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=app msg=\"login rate limiter unavailable\" err=%v", err)
		return nil
	}
	if count > s.opts.LoginRateLimitPerMinute {
		return &RateLimitedError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

// VerifyPayment records the worker's yes/no confirmation of a payment.
func (s *Service) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (*domain.WorkerPaymentRecord, error) {
	phone := strings.TrimSpace(req.WorkerPhone)
	workorder := strings.TrimSpace(req.Workorder)
	if phone == "" || workorder == "" {
		return nil, ErrVerificationKeyRequired
	}

	status := verificationStatus(req.Verified)
	record, err := s.updateWorkerRecord(ctx, phone, workorder, func(time.Time) store.WorkerPatch {
		return store.WorkerPatch{PaymentStatus: status}
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"payment verification updated\" worker_phone=%q workorder=%q status=%s", phone, workorder, status)
	s.publishEvent(ctx, domain.EventWorkerPaymentVerified, workerEvent(record))
	return record, nil
}

// VerifyPaymentWithAmount records the amount the worker says they received
// along with their confirmation. The amount must be positive.
func (s *Service) VerifyPaymentWithAmount(ctx context.Context, req domain.VerifyPaymentWithAmountRequest) (*domain.WorkerPaymentRecord, error) {
	phone := strings.TrimSpace(req.WorkerPhone)
	workorder := strings.TrimSpace(req.Workorder)
	if phone == "" || workorder == "" {
		return nil, ErrVerificationKeyRequired
	}
	if !req.ActualReceived.IsPositive() {
		return nil, ErrActualReceivedRequired
	}

	status := verificationStatus(req.Verified)
	received := req.ActualReceived
	record, err := s.updateWorkerRecord(ctx, phone, workorder, func(time.Time) store.WorkerPatch {
		return store.WorkerPatch{
			ActualReceivedByWorker: &received,
			PaymentStatus:          status,
		}
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"payment verified with amount\" worker_phone=%q workorder=%q amount=%s status=%s", phone, workorder, received, status)
	event := workerEvent(record)
	event.Amount = &received
	s.publishEvent(ctx, domain.EventWorkerPaymentVerified, event)
	return record, nil
}

// ReportDiscrepancy marks the worker's payment as disputed. The received
// amount is stored as given, zero included.
func (s *Service) ReportDiscrepancy(ctx context.Context, req domain.ReportDiscrepancyRequest) (*domain.WorkerPaymentRecord, error) {
	phone := strings.TrimSpace(req.WorkerPhone)
	workorder := strings.TrimSpace(req.Workorder)
	if phone == "" || workorder == "" {
		return nil, ErrVerificationKeyRequired
	}

	received := req.ActualReceived
	notes := strings.TrimSpace(req.Notes)
	record, err := s.updateWorkerRecord(ctx, phone, workorder, func(now time.Time) store.WorkerPatch {
		return store.WorkerPatch{
			ActualReceivedByWorker: &received,
			PaymentStatus:          domain.PaymentStatusDisputed,
			DiscrepancyNotes:       &notes,
			DiscrepancyReportedAt:  &now,
		}
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app msg=\"payment discrepancy reported\" worker_phone=%q workorder=%q", phone, workorder)
	event := workerEvent(record)
	event.Amount = &received
	s.publishEvent(ctx, domain.EventWorkerPaymentDisputed, event)
	return record, nil
}

// updateWorkerRecord applies a patch to an existing worker payment record and
// to the worker's entry on the first payment for the same work order.
func (s *Service) updateWorkerRecord(ctx context.Context, phone, workorder string, patchFor func(now time.Time) store.WorkerPatch) (*domain.WorkerPaymentRecord, error) {
	var record domain.WorkerPaymentRecord
	err := s.repo.Update(ctx, func(tx *store.Tx) error {
		existing := tx.FindWorkerPayment(phone, workorder)
		if existing == nil {
			return store.ErrWorkerPaymentNotFound
		}

		key := store.WorkerKey{
			Phone:      phone,
			Name:       existing.WorkerName,
			Workorder:  workorder,
			Contractor: existing.Contractor,
		}
		wp, _ := tx.SyncWorker(tx.FindPaymentByWorkorder(workorder), key, patchFor(tx.Now()))
		record = wp.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Health reports the service name and table sizes.
func (s *Service) Health(ctx context.Context) (*domain.HealthStatus, error) {
	status := &domain.HealthStatus{
		Status:    "healthy",
		Service:   s.opts.ServiceName,
		Timestamp: time.Now(),
	}
	err := s.repo.View(ctx, func(tx *store.Tx) error {
		status.PaymentsCount, status.WorkerPaymentsCount = tx.Counts()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func workerKey(p *domain.Payment, phone, name string) store.WorkerKey {
	return store.WorkerKey{
		Phone:      phone,
		Name:       name,
		Workorder:  p.Workorder,
		Contractor: p.Contractor,
	}
}

func verificationStatus(verified bool) string {
	if verified {
		return domain.PaymentStatusVerified
	}
	return domain.PaymentStatusPending
}
