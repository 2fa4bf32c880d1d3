package unitofwork

import (
	"context"

	"ad-studio-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	AccountRepository() contract.AccountRepository
	LedgerRepository() contract.LedgerRepository
	ReceiptRepository() contract.ReceiptRepository
	DeadLetterRepository() contract.DeadLetterRepository
	SubscriptionRepository() contract.SubscriptionRepository
	PlanChangeRepository() contract.PlanChangeRepository
	AuditRepository() contract.AuditRepository
}
