package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeConsume    TransactionType = "consume"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// LedgerTransaction is an immutable, append-only balance mutation.
// Amount is signed and never zero. IdempotencyKey and ExternalRef are
// unique when present.
type LedgerTransaction struct {
	Id             uuid.UUID
	AccountId      uuid.UUID
	Amount         decimal.Decimal
	Type           TransactionType
	Reason         string
	IdempotencyKey *string
	ExternalRef    *string
	BalanceAfter   decimal.Decimal
	CreatedAt      time.Time
}
