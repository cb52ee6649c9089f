package app

import (
	"context"
	"log"
	"time"

	"github.com/Poorujeet01/BCCL-PROJECT/internal/domain"
	"github.com/google/uuid"
)

// publishEvent sends a lifecycle event after the change is stored. Publish
// failures are logged; the request still succeeds.
func (s *Service) publishEvent(ctx context.Context, routingKey string, event domain.PaymentEvent) {
	if s.publisher == nil {
		return
	}

	event.EventID = uuid.NewString()
	event.Type = routingKey
	event.Timestamp = time.Now()

	if err := s.publisher.Publish(ctx, s.opts.EventsExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=app msg=\"failed to publish event\" routing_key=%s workorder=%q err=%v", routingKey, event.Workorder, err)
	}
}

func workerEvent(record *domain.WorkerPaymentRecord) domain.PaymentEvent {
	return domain.PaymentEvent{
		Workorder:     record.Workorder,
		Contractor:    record.Contractor,
		WorkerPhone:   record.WorkerPhone,
		PaymentStatus: record.PaymentStatus,
	}
}
