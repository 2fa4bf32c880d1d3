package entity

import (
	"time"

	"github.com/google/uuid"
)

type ReceiptStatus string

const (
	ReceiptStatusReceived   ReceiptStatus = "received"
	ReceiptStatusProcessing ReceiptStatus = "processing"
	ReceiptStatusProcessed  ReceiptStatus = "processed"
	ReceiptStatusIgnored    ReceiptStatus = "ignored"
	ReceiptStatusFailed     ReceiptStatus = "failed"
)

// WebhookEventReceipt records every inbound gateway event by id so each
// event is handled at most once. Handled flips false -> true exactly once;
// a receipt is mutated only while Handled is false.
type WebhookEventReceipt struct {
	Id          uuid.UUID
	EventID     string
	Type        string
	PayloadHash string
	Status      ReceiptStatus
	Handled     bool
	Outcome     string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeadLetterEntry is an event that could not be processed after exhausting
// retries (or failed structurally), awaiting operator-triggered replay.
type DeadLetterEntry struct {
	Id            uuid.UUID
	EventID       string
	EventType     string
	Payload       []byte
	Reason        string
	RetryCount    int
	LastAttemptAt time.Time
	ReplayedAt    *time.Time
	CreatedAt     time.Time
}
