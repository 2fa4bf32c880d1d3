package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"ad-studio-be/internal/config"
	"ad-studio-be/internal/dto"
	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/pkg/apperr"
	"ad-studio-be/internal/pkg/logger"
	"ad-studio-be/internal/repository/specification"
	"ad-studio-be/internal/repository/unitofwork"
	"ad-studio-be/pkg/gateway"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// EventHandler processes one decoded gateway event inside the dispatcher's
// unit of work and returns the outcome stored on the receipt.
type EventHandler func(ctx context.Context, uow unitofwork.UnitOfWork, msg *dto.DispatchMessage) (string, error)

// IDispatcherService is the inbound webhook pipeline: signature verification,
// per-event receipts, a worker pool draining the in-process queue, bounded
// retries with exponential backoff, and dead-lettering.
type IDispatcherService interface {
	// Ingest verifies and records an inbound event, then enqueues it.
	// Returns apperr.ErrValidation when the signature does not check out.
	Ingest(ctx context.Context, payload []byte, sigHeader string) error

	// Consume starts the worker pool. Workers stop when ctx is canceled.
	Consume(ctx context.Context) error

	// Replay re-enqueues a dead-lettered event by id.
	Replay(ctx context.Context, deadLetterID uuid.UUID, actor string) error

	ListReceipts(ctx context.Context, limit, offset int) ([]*dto.ReceiptResponse, error)
	ListDeadLetters(ctx context.Context, limit, offset int, includeReplayed bool) ([]*dto.DeadLetterResponse, error)
}

type dispatcherService struct {
	cfg        *config.BillingConfig
	pubSub     *gochannel.GoChannel
	topicName  string
	publisher  IPublisherService
	uowFactory unitofwork.RepositoryFactory
	handlers   map[string]EventHandler
	audit      IAuditService
	logger     logger.ILogger

	retryWG sync.WaitGroup
}

func NewDispatcherService(
	cfg *config.BillingConfig,
	pubSub *gochannel.GoChannel,
	topicName string,
	publisher IPublisherService,
	uowFactory unitofwork.RepositoryFactory,
	subscriptions ISubscriptionService,
	audit IAuditService,
	logger logger.ILogger,
) IDispatcherService {
	// The handler map is closed: event types outside it are acknowledged and
	// recorded as ignored, never retried.
	handlers := map[string]EventHandler{
		"checkout.session.completed":    subscriptions.HandleCheckoutCompleted,
		"invoice.paid":                  subscriptions.HandleInvoicePaid,
		"invoice.payment_succeeded":     subscriptions.HandleInvoicePaid,
		"invoice.payment_failed":        subscriptions.HandleInvoicePaymentFailed,
		"customer.subscription.deleted": subscriptions.HandleSubscriptionDeleted,
	}

	return &dispatcherService{
		cfg:        cfg,
		pubSub:     pubSub,
		topicName:  topicName,
		publisher:  publisher,
		uowFactory: uowFactory,
		handlers:   handlers,
		audit:      audit,
		logger:     logger,
	}
}

func payloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *dispatcherService) Ingest(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := gateway.VerifyWebhook(payload, sigHeader, s.cfg.WebhookSecret)
	if err != nil {
		s.logger.Warn("DISPATCHER", "Rejected webhook with bad signature", nil)
		return err
	}
	if event.ID == "" {
		return apperr.Validation("event envelope missing id")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	existing, err := uow.ReceiptRepository().FindOne(ctx, specification.ByEventID{EventID: event.ID})
	if err != nil {
		return err
	}
	if existing != nil && existing.Handled {
		// Duplicate delivery of a finished event: acknowledge, change nothing.
		s.logger.Info("DISPATCHER", "Duplicate delivery of handled event", map[string]interface{}{
			"event_id": event.ID,
			"type":     event.Type,
		})
		return uow.Commit()
	}

	if existing != nil {
		// Redelivery of an unfinished event. The first payload stays
		// authoritative; a hash mismatch means the sender changed the body
		// between deliveries, which is worth an operator's attention.
		if hash := payloadHash(payload); existing.PayloadHash != "" && existing.PayloadHash != hash {
			s.logger.Warn("DISPATCHER", "Redelivered event payload drifted", map[string]interface{}{
				"event_id":   event.ID,
				"type":       event.Type,
				"first_hash": existing.PayloadHash,
				"new_hash":   hash,
			})
		}
	} else {
		receipt := &entity.WebhookEventReceipt{
			Id:          uuid.New(),
			EventID:     event.ID,
			Type:        string(event.Type),
			PayloadHash: payloadHash(payload),
			Status:      entity.ReceiptStatusReceived,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := uow.ReceiptRepository().Create(ctx, receipt); err != nil {
			return err
		}
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	var object json.RawMessage
	if event.Data != nil {
		object = event.Data.Raw
	}
	msg := dto.DispatchMessage{
		EventID:   event.ID,
		EventType: string(event.Type),
		Object:    object,
		Attempt:   0,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, raw)
}

func (s *dispatcherService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	workers := s.cfg.DispatcherWorkers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go func() {
			for msg := range messages {
				s.processMessage(ctx, msg)
			}
		}()
	}
	return nil
}

func (s *dispatcherService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.DispatchMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Error("DISPATCHER", "Failed to unmarshal queue message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // malformed queue payloads can never succeed
		return
	}

	if err := s.handleEvent(ctx, &payload); err != nil {
		s.logger.Error("DISPATCHER", "Event handling failed", map[string]interface{}{
			"event_id": payload.EventID,
			"type":     payload.EventType,
			"attempt":  payload.Attempt,
			"error":    err.Error(),
		})
	}
	// The receipt and dead-letter tables own delivery state; the queue
	// message itself is always acknowledged.
	msg.Ack()
}

func (s *dispatcherService) handleEvent(ctx context.Context, payload *dto.DispatchMessage) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	receipt, err := uow.ReceiptRepository().FindOne(ctx,
		specification.ByEventID{EventID: payload.EventID}, specification.ForUpdate{})
	if err != nil {
		return err
	}
	if receipt == nil {
		// Replay of an event whose receipt was purged; recreate it.
		receipt = &entity.WebhookEventReceipt{
			Id:        uuid.New(),
			EventID:   payload.EventID,
			Type:      payload.EventType,
			Status:    entity.ReceiptStatusReceived,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := uow.ReceiptRepository().Create(ctx, receipt); err != nil {
			return err
		}
	}
	if receipt.Handled {
		return uow.Commit()
	}

	handler, known := s.handlers[payload.EventType]
	if !known {
		s.finishReceipt(receipt, entity.ReceiptStatusIgnored, "ignored_event_type")
		if err := uow.ReceiptRepository().Update(ctx, receipt); err != nil {
			return err
		}
		return uow.Commit()
	}

	receipt.Status = entity.ReceiptStatusProcessing
	receipt.UpdatedAt = time.Now()
	if err := uow.ReceiptRepository().Update(ctx, receipt); err != nil {
		return err
	}

	outcome, err := handler(ctx, uow, payload)
	if err != nil {
		// Roll back the business mutation, then record the failure in a
		// fresh transaction.
		_ = uow.Rollback()
		return s.handleFailure(ctx, payload, err)
	}

	s.finishReceipt(receipt, entity.ReceiptStatusProcessed, outcome)
	if err := uow.ReceiptRepository().Update(ctx, receipt); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *dispatcherService) finishReceipt(receipt *entity.WebhookEventReceipt, status entity.ReceiptStatus, outcome string) {
	now := time.Now()
	receipt.Status = status
	receipt.Handled = true
	receipt.Outcome = outcome
	receipt.ProcessedAt = &now
	receipt.UpdatedAt = now
}

// Only transient upstream failures are retried. Structural failures, a
// missing reference included, need a data fix and an operator replay.
func retryable(err error) bool {
	return errors.Is(err, apperr.ErrTransientExternal)
}

func (s *dispatcherService) handleFailure(ctx context.Context, payload *dto.DispatchMessage, cause error) error {
	if retryable(cause) && payload.Attempt < s.cfg.MaxHandlerAttempts {
		if err := s.markReceiptFailed(ctx, payload.EventID, payload.EventType, cause.Error()); err != nil {
			return err
		}
		s.scheduleRetry(payload)
		return nil
	}
	return s.deadLetter(ctx, payload, cause)
}

func (s *dispatcherService) markReceiptFailed(ctx context.Context, eventID, eventType, reason string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := s.recordReceiptFailure(ctx, uow, eventID, eventType, reason); err != nil {
		return err
	}
	return uow.Commit()
}

// recordReceiptFailure marks the event's receipt failed, creating it when the
// failing attempt was the one that created it (its insert rolled back with
// the business mutation).
func (s *dispatcherService) recordReceiptFailure(ctx context.Context, uow unitofwork.UnitOfWork, eventID, eventType, reason string) error {
	receipt, err := uow.ReceiptRepository().FindOne(ctx,
		specification.ByEventID{EventID: eventID}, specification.ForUpdate{})
	if err != nil {
		return err
	}
	if receipt != nil && receipt.Handled {
		return nil
	}
	now := time.Now()
	if receipt == nil {
		receipt = &entity.WebhookEventReceipt{
			Id:        uuid.New(),
			EventID:   eventID,
			Type:      eventType,
			Status:    entity.ReceiptStatusFailed,
			Outcome:   reason,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return uow.ReceiptRepository().Create(ctx, receipt)
	}
	receipt.Status = entity.ReceiptStatusFailed
	receipt.Outcome = reason
	receipt.UpdatedAt = now
	return uow.ReceiptRepository().Update(ctx, receipt)
}

// scheduleRetry re-enqueues the event after an exponential backoff delay.
// The retry token carries the attempt count; state shared with the workers
// lives only in the database.
func (s *dispatcherService) scheduleRetry(payload *dto.DispatchMessage) {
	next := *payload
	next.Attempt++
	delay := time.Duration(float64(s.cfg.RetryBaseSeconds)*math.Pow(2, float64(payload.Attempt))) * time.Second

	s.logger.Info("DISPATCHER", "Scheduled retry", map[string]interface{}{
		"event_id": next.EventID,
		"attempt":  next.Attempt,
		"delay":    delay.String(),
	})

	s.retryWG.Add(1)
	time.AfterFunc(delay, func() {
		defer s.retryWG.Done()
		raw, err := json.Marshal(next)
		if err != nil {
			return
		}
		if err := s.publisher.Publish(context.Background(), raw); err != nil {
			s.logger.Error("DISPATCHER", "Failed to re-enqueue retry", map[string]interface{}{
				"event_id": next.EventID,
				"error":    err.Error(),
			})
		}
	})
}

func (s *dispatcherService) deadLetter(ctx context.Context, payload *dto.DispatchMessage, cause error) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := s.recordReceiptFailure(ctx, uow, payload.EventID, payload.EventType, cause.Error()); err != nil {
		return err
	}

	existing, err := uow.DeadLetterRepository().FindOne(ctx, specification.ByEventID{EventID: payload.EventID})
	if err != nil {
		return err
	}
	now := time.Now()
	if existing != nil {
		existing.Reason = cause.Error()
		existing.RetryCount = payload.Attempt
		existing.LastAttemptAt = now
		existing.ReplayedAt = nil
		if err := uow.DeadLetterRepository().Update(ctx, existing); err != nil {
			return err
		}
	} else {
		raw, _ := json.Marshal(payload)
		entry := &entity.DeadLetterEntry{
			Id:            uuid.New(),
			EventID:       payload.EventID,
			EventType:     payload.EventType,
			Payload:       raw,
			Reason:        cause.Error(),
			RetryCount:    payload.Attempt,
			LastAttemptAt: now,
			CreatedAt:     now,
		}
		if err := uow.DeadLetterRepository().Create(ctx, entry); err != nil {
			return err
		}
	}

	s.audit.Record(ctx, uow, "system", "EVENT_DEAD_LETTERED", "webhook_event", payload.EventID, map[string]interface{}{
		"event_type": payload.EventType,
		"attempts":   payload.Attempt,
		"reason":     cause.Error(),
	})

	s.logger.Error("DISPATCHER", "Event dead-lettered", map[string]interface{}{
		"event_id": payload.EventID,
		"type":     payload.EventType,
		"attempts": payload.Attempt,
		"reason":   cause.Error(),
	})
	return uow.Commit()
}

func (s *dispatcherService) Replay(ctx context.Context, deadLetterID uuid.UUID, actor string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	entry, err := uow.DeadLetterRepository().FindOne(ctx,
		specification.ByID{ID: deadLetterID}, specification.ForUpdate{})
	if err != nil {
		return err
	}
	if entry == nil {
		return apperr.ErrNotFound
	}
	if entry.ReplayedAt != nil {
		return apperr.Validation("dead letter %s already replayed", deadLetterID)
	}

	var payload dto.DispatchMessage
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return apperr.Validation("dead letter %s has unreadable payload: %v", deadLetterID, err)
	}
	payload.Attempt = 0

	now := time.Now()
	entry.ReplayedAt = &now
	if err := uow.DeadLetterRepository().Update(ctx, entry); err != nil {
		return err
	}

	// Reset the receipt so workers pick the event up again.
	receipt, err := uow.ReceiptRepository().FindOne(ctx,
		specification.ByEventID{EventID: entry.EventID}, specification.ForUpdate{})
	if err != nil {
		return err
	}
	if receipt != nil && !receipt.Handled {
		receipt.Status = entity.ReceiptStatusReceived
		receipt.Outcome = ""
		receipt.UpdatedAt = now
		if err := uow.ReceiptRepository().Update(ctx, receipt); err != nil {
			return err
		}
	}

	s.audit.Record(ctx, uow, actor, "EVENT_REPLAYED", "webhook_event", entry.EventID, map[string]interface{}{
		"dead_letter_id": deadLetterID.String(),
		"event_type":     entry.EventType,
	})

	if err := uow.Commit(); err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, raw)
}

func (s *dispatcherService) ListReceipts(ctx context.Context, limit, offset int) ([]*dto.ReceiptResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	receipts, err := uow.ReceiptRepository().FindAll(ctx,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ReceiptResponse, len(receipts))
	for i, r := range receipts {
		res[i] = &dto.ReceiptResponse{
			Id:          r.Id,
			EventID:     r.EventID,
			Type:        r.Type,
			Status:      string(r.Status),
			Handled:     r.Handled,
			Outcome:     r.Outcome,
			ProcessedAt: r.ProcessedAt,
			CreatedAt:   r.CreatedAt,
		}
	}
	return res, nil
}

func (s *dispatcherService) ListDeadLetters(ctx context.Context, limit, offset int, includeReplayed bool) ([]*dto.DeadLetterResponse, error) {
	specs := []specification.Specification{
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	}
	if !includeReplayed {
		specs = append(specs, specification.Unreplayed{})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	entries, err := uow.DeadLetterRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.DeadLetterResponse, len(entries))
	for i, e := range entries {
		res[i] = &dto.DeadLetterResponse{
			Id:            e.Id,
			EventID:       e.EventID,
			EventType:     e.EventType,
			Reason:        e.Reason,
			RetryCount:    e.RetryCount,
			LastAttemptAt: e.LastAttemptAt,
			ReplayedAt:    e.ReplayedAt,
			CreatedAt:     e.CreatedAt,
		}
	}
	return res, nil
}
