package model

import (
	"time"

	"ad-studio-be/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerTransaction rows are posted once and never touched again.
type LedgerTransaction struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AccountId      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null;check:chk_ledger_amount,amount <> 0"`
	Type           string          `gorm:"type:varchar(20);not null"`
	Reason         string          `gorm:"type:text;not null"`
	IdempotencyKey *string         `gorm:"type:varchar(255);uniqueIndex:ux_ledger_idem_key,where:idempotency_key IS NOT NULL"`
	ExternalRef    *string         `gorm:"type:varchar(255);uniqueIndex:ux_ledger_external_ref,where:external_ref IS NOT NULL"`
	BalanceAfter   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt      time.Time       `gorm:"default:now();not null;index"`
}

func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}

// BeforeUpdate rejects any mutation of a posted transaction. This is always a
// programming error and must fail loudly.
func (LedgerTransaction) BeforeUpdate(tx *gorm.DB) error {
	return apperr.ErrImmutableTransaction
}

// BeforeDelete rejects deletion of a posted transaction.
func (LedgerTransaction) BeforeDelete(tx *gorm.DB) error {
	return apperr.ErrImmutableTransaction
}
