package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"ad-studio-be/internal/dto"
	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/pkg/apperr"
	"ad-studio-be/internal/repository/specification"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

func newDispatcherHarness(t *testing.T) (*testHarness, *dispatcherService, *fakeQueuePublisher) {
	t.Helper()
	h, svc, queue, _ := newDispatcherHarnessWithSpy(t)
	return h, svc, queue
}

func newDispatcherHarnessWithSpy(t *testing.T) (*testHarness, *dispatcherService, *fakeQueuePublisher, *spyLogger) {
	t.Helper()
	h := newTestHarness()
	h.cfg.Billing.WebhookSecret = testWebhookSecret

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	queue := &fakeQueuePublisher{}
	spy := &spyLogger{}

	svc := NewDispatcherService(
		&h.cfg.Billing,
		pubSub,
		"gateway.events",
		queue,
		h.factory,
		h.subscriptions,
		h.audit,
		spy,
	)
	return h, svc.(*dispatcherService), queue, spy
}

// signPayload builds a Stripe-Signature header the verifier accepts.
func signPayload(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func envelope(t *testing.T, eventID, eventType string, object interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": eventType,
		"data": map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return raw
}

func (h *testHarness) receipt(t *testing.T, eventID string) *entity.WebhookEventReceipt {
	t.Helper()
	uow := h.factory.NewUnitOfWork(context.Background())
	receipt, err := uow.ReceiptRepository().FindOne(context.Background(), specification.ByEventID{EventID: eventID})
	require.NoError(t, err)
	return receipt
}

func TestIngestRejectsBadSignature(t *testing.T) {
	_, svc, queue := newDispatcherHarness(t)

	payload := envelope(t, "evt_1", "invoice.paid", map[string]interface{}{"id": "in_1"})
	err := svc.Ingest(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, queue.payloads)
}

func TestIngestRecordsReceiptAndEnqueues(t *testing.T) {
	h, svc, queue := newDispatcherHarness(t)

	payload := envelope(t, "evt_1", "invoice.paid", map[string]interface{}{"id": "in_1"})
	err := svc.Ingest(context.Background(), payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)

	receipt := h.receipt(t, "evt_1")
	require.NotNil(t, receipt)
	assert.Equal(t, entity.ReceiptStatusReceived, receipt.Status)
	assert.False(t, receipt.Handled)
	assert.NotEmpty(t, receipt.PayloadHash)
	require.Len(t, queue.payloads, 1)

	var msg dto.DispatchMessage
	require.NoError(t, json.Unmarshal(queue.payloads[0], &msg))
	assert.Equal(t, "evt_1", msg.EventID)
	assert.Equal(t, "invoice.paid", msg.EventType)
	assert.Equal(t, 0, msg.Attempt)
}

func TestIngestWarnsOnRedeliveredPayloadDrift(t *testing.T) {
	h, svc, _, spy := newDispatcherHarnessWithSpy(t)

	first := envelope(t, "evt_drift", "invoice.paid", map[string]interface{}{"id": "in_1", "amount_paid": 2900})
	require.NoError(t, svc.Ingest(context.Background(), first, signPayload(first, testWebhookSecret)))
	firstHash := h.receipt(t, "evt_drift").PayloadHash

	// Same event id, mutated body: the first payload stays authoritative.
	second := envelope(t, "evt_drift", "invoice.paid", map[string]interface{}{"id": "in_1", "amount_paid": 9900})
	require.NoError(t, svc.Ingest(context.Background(), second, signPayload(second, testWebhookSecret)))

	receipt := h.receipt(t, "evt_drift")
	assert.Equal(t, firstHash, receipt.PayloadHash)
	assert.Contains(t, spy.warnings(), "Redelivered event payload drifted")

	// Identical redelivery stays quiet.
	require.NoError(t, svc.Ingest(context.Background(), first, signPayload(first, testWebhookSecret)))
	assert.Len(t, spy.warnings(), 1)
}

func TestIngestDuplicateOfHandledEventIsNoOp(t *testing.T) {
	h, svc, queue := newDispatcherHarness(t)
	workspaceID := uuid.New()

	// Process a token pack purchase end to end.
	payload := envelope(t, "evt_1", "checkout.session.completed", dto.CheckoutSessionObject{
		ID:                "cs_1",
		ClientReferenceID: workspaceID.String() + "|tokens_100",
		PaymentStatus:     "paid",
	})
	require.NoError(t, svc.Ingest(context.Background(), payload, signPayload(payload, testWebhookSecret)))

	var msg dto.DispatchMessage
	require.NoError(t, json.Unmarshal(queue.payloads[0], &msg))
	require.NoError(t, svc.handleEvent(context.Background(), &msg))

	receipt := h.receipt(t, "evt_1")
	require.True(t, receipt.Handled)

	// Second delivery: accepted, nothing new enqueued.
	require.NoError(t, svc.Ingest(context.Background(), payload, signPayload(payload, testWebhookSecret)))
	assert.Len(t, queue.payloads, 1)
}

func TestHandleEventProcessesAndMarksReceipt(t *testing.T) {
	h, svc, _ := newDispatcherHarness(t)
	workspaceID := uuid.New()

	obj := dto.CheckoutSessionObject{
		ID:                "cs_1",
		ClientReferenceID: workspaceID.String() + "|tokens_500",
		PaymentStatus:     "paid",
	}
	msg := &dto.DispatchMessage{
		EventID:   "evt_1",
		EventType: "checkout.session.completed",
		Object:    mustJSON(t, obj),
	}
	require.NoError(t, svc.handleEvent(context.Background(), msg))

	receipt := h.receipt(t, "evt_1")
	require.NotNil(t, receipt)
	assert.Equal(t, entity.ReceiptStatusProcessed, receipt.Status)
	assert.True(t, receipt.Handled)
	assert.Equal(t, OutcomeProcessed, receipt.Outcome)
	assert.NotNil(t, receipt.ProcessedAt)

	bal, err := h.ledger.Balance(context.Background(), entity.WorkspaceOwner(workspaceID))
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(decimal.NewFromInt(500)))

	// Running the same message again changes nothing: the receipt short-circuits.
	require.NoError(t, svc.handleEvent(context.Background(), msg))
	bal, err = h.ledger.Balance(context.Background(), entity.WorkspaceOwner(workspaceID))
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(decimal.NewFromInt(500)))
}

func TestHandleEventIgnoresUnknownType(t *testing.T) {
	h, svc, _ := newDispatcherHarness(t)

	msg := &dto.DispatchMessage{
		EventID:   "evt_odd",
		EventType: "customer.updated",
		Object:    json.RawMessage(`{"id":"cus_1"}`),
	}
	require.NoError(t, svc.handleEvent(context.Background(), msg))

	receipt := h.receipt(t, "evt_odd")
	require.NotNil(t, receipt)
	assert.Equal(t, entity.ReceiptStatusIgnored, receipt.Status)
	assert.True(t, receipt.Handled)
	assert.Equal(t, "ignored_event_type", receipt.Outcome)
}

func TestRetryableFailureSchedulesRetry(t *testing.T) {
	h, svc, queue := newDispatcherHarness(t)

	// The provider lookup during plan activation times out: transient,
	// retried rather than dead-lettered.
	h.gateway.subErr = apperr.Transient(assert.AnError)
	workspaceID := uuid.New()
	obj := dto.CheckoutSessionObject{
		ID:                "cs_retry",
		ClientReferenceID: checkoutReference(workspaceID, "plan_pro"),
		Subscription:      "sub_retry",
		Customer:          "cus_retry",
		PaymentStatus:     "paid",
	}
	msg := &dto.DispatchMessage{
		EventID:   "evt_retry",
		EventType: "checkout.session.completed",
		Object:    mustJSON(t, obj),
		Attempt:   0,
	}
	require.NoError(t, svc.handleEvent(context.Background(), msg))

	receipt := h.receipt(t, "evt_retry")
	require.NotNil(t, receipt)
	assert.Equal(t, entity.ReceiptStatusFailed, receipt.Status)
	assert.False(t, receipt.Handled)

	// RetryBaseSeconds is 0 in tests, so the re-enqueue fires immediately.
	require.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.payloads) == 1
	}, 2*time.Second, 10*time.Millisecond)

	var next dto.DispatchMessage
	queue.mu.Lock()
	require.NoError(t, json.Unmarshal(queue.payloads[0], &next))
	queue.mu.Unlock()
	assert.Equal(t, 1, next.Attempt)

	// No dead letter yet.
	letters, err := svc.ListDeadLetters(context.Background(), 10, 0, false)
	require.NoError(t, err)
	assert.Empty(t, letters)
}

func TestExhaustedRetriesDeadLetter(t *testing.T) {
	h, svc, _ := newDispatcherHarness(t)

	h.gateway.subErr = apperr.Transient(assert.AnError)
	workspaceID := uuid.New()
	obj := dto.CheckoutSessionObject{
		ID:                "cs_dead",
		ClientReferenceID: checkoutReference(workspaceID, "plan_pro"),
		Subscription:      "sub_dead",
		Customer:          "cus_dead",
		PaymentStatus:     "paid",
	}
	msg := &dto.DispatchMessage{
		EventID:   "evt_dead",
		EventType: "checkout.session.completed",
		Object:    mustJSON(t, obj),
		Attempt:   5, // at the cap
	}
	require.NoError(t, svc.handleEvent(context.Background(), msg))

	letters, err := svc.ListDeadLetters(context.Background(), 10, 0, false)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "evt_dead", letters[0].EventID)
	assert.Equal(t, 5, letters[0].RetryCount)
	assert.Nil(t, letters[0].ReplayedAt)

	receipt := h.receipt(t, "evt_dead")
	require.NotNil(t, receipt)
	assert.Equal(t, entity.ReceiptStatusFailed, receipt.Status)
	assert.False(t, receipt.Handled)
}

func TestMissingReferenceDeadLettersImmediately(t *testing.T) {
	_, svc, queue := newDispatcherHarness(t)

	// invoice.paid for a subscription nobody has: needs a data fix and an
	// operator replay, never an automatic retry.
	obj := dto.InvoiceObject{ID: "in_orphan", Subscription: "sub_unknown", PeriodEnd: time.Now().AddDate(0, 1, 0).Unix()}
	msg := &dto.DispatchMessage{
		EventID:   "evt_orphan",
		EventType: "invoice.paid",
		Object:    mustJSON(t, obj),
	}
	require.NoError(t, svc.handleEvent(context.Background(), msg))

	letters, err := svc.ListDeadLetters(context.Background(), 10, 0, false)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "evt_orphan", letters[0].EventID)
	assert.Contains(t, letters[0].Reason, "sub_unknown")
	assert.Empty(t, queue.payloads)
}

func TestPermanentFailureDeadLettersImmediately(t *testing.T) {
	_, svc, queue := newDispatcherHarness(t)

	// A malformed client reference can never succeed; no retries.
	obj := dto.CheckoutSessionObject{ID: "cs_1", ClientReferenceID: "not-a-reference", PaymentStatus: "paid"}
	msg := &dto.DispatchMessage{
		EventID:   "evt_bad",
		EventType: "checkout.session.completed",
		Object:    mustJSON(t, obj),
	}
	require.NoError(t, svc.handleEvent(context.Background(), msg))

	letters, err := svc.ListDeadLetters(context.Background(), 10, 0, false)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "evt_bad", letters[0].EventID)
	assert.Empty(t, queue.payloads)
}

func TestReplayDeadLetter(t *testing.T) {
	_, svc, queue := newDispatcherHarness(t)

	obj := dto.InvoiceObject{ID: "in_1", Subscription: "sub_unknown", PeriodEnd: time.Now().AddDate(0, 1, 0).Unix()}
	msg := &dto.DispatchMessage{
		EventID:   "evt_dead",
		EventType: "invoice.paid",
		Object:    mustJSON(t, obj),
		Attempt:   5,
	}
	require.NoError(t, svc.handleEvent(context.Background(), msg))

	letters, err := svc.ListDeadLetters(context.Background(), 10, 0, false)
	require.NoError(t, err)
	require.Len(t, letters, 1)

	require.NoError(t, svc.Replay(context.Background(), letters[0].Id, "operator:1"))

	// The replayed message goes back on the queue with a fresh attempt count.
	require.Len(t, queue.payloads, 1)
	var replayed dto.DispatchMessage
	require.NoError(t, json.Unmarshal(queue.payloads[0], &replayed))
	assert.Equal(t, "evt_dead", replayed.EventID)
	assert.Equal(t, 0, replayed.Attempt)

	// Consumed entries drop out of the working queue but stay reachable.
	letters, err = svc.ListDeadLetters(context.Background(), 10, 0, false)
	require.NoError(t, err)
	assert.Empty(t, letters)

	letters, err = svc.ListDeadLetters(context.Background(), 10, 0, true)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.NotNil(t, letters[0].ReplayedAt)

	// Replaying twice is rejected.
	err = svc.Replay(context.Background(), letters[0].Id, "operator:1")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, retryable(apperr.Transient(assert.AnError)))
	assert.False(t, retryable(apperr.MissingReference("subscription", "sub_1")))
	assert.False(t, retryable(apperr.Validation("broken payload")))
	assert.False(t, retryable(apperr.ErrUnknownProduct))
	assert.False(t, retryable(assert.AnError))
}
