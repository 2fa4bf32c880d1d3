package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DispatchMessage is the decoded event handed from webhook ingestion to the
// worker pool over the in-process queue.
type DispatchMessage struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Object    json.RawMessage `json:"object"` // the data.object payload
	Attempt   int             `json:"attempt"`
}

type ReceiptResponse struct {
	Id          uuid.UUID  `json:"id"`
	EventID     string     `json:"event_id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Handled     bool       `json:"handled"`
	Outcome     string     `json:"outcome,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type DeadLetterResponse struct {
	Id            uuid.UUID  `json:"id"`
	EventID       string     `json:"event_id"`
	EventType     string     `json:"event_type"`
	Reason        string     `json:"reason"`
	RetryCount    int        `json:"retry_count"`
	LastAttemptAt time.Time  `json:"last_attempt_at"`
	ReplayedAt    *time.Time `json:"replayed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type AuditLogResponse struct {
	Id         uuid.UUID              `json:"id"`
	Actor      string                 `json:"actor"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Details    map[string]interface{} `json:"details,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Gateway object payloads decoded by handlers. Amounts arrive in the minor
// unit and are converted via the currency divisor table.

type CheckoutSessionObject struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	PaymentStatus     string `json:"payment_status"`
}

type InvoiceObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
	PeriodEnd    int64  `json:"period_end"`
	Lines        struct {
		Data []struct {
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"lines"`
}

type SubscriptionObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
}
