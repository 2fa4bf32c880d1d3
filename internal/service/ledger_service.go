package service

import (
	"context"
	"time"

	"ad-studio-be/internal/dto"
	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/pkg/apperr"
	"ad-studio-be/internal/pkg/logger"
	"ad-studio-be/internal/repository/specification"
	"ad-studio-be/internal/repository/unitofwork"
	"ad-studio-be/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ILedgerService owns balance accounts and their append-only transaction
// log. Every mutation goes through ApplyWithin under a row lock, so the
// balance column always equals the sum of posted amounts.
type ILedgerService interface {
	Credit(ctx context.Context, owner entity.AccountOwner, amount decimal.Decimal, reason string, idemKey *string) (*entity.LedgerTransaction, error)
	Debit(ctx context.Context, owner entity.AccountOwner, amount decimal.Decimal, reason string, idemKey *string) (*entity.LedgerTransaction, error)
	Adjust(ctx context.Context, actor string, owner entity.AccountOwner, amount decimal.Decimal, reason string, externalRef *string) (*entity.LedgerTransaction, error)
	Balance(ctx context.Context, owner entity.AccountOwner) (*dto.BalanceResponse, error)
	History(ctx context.Context, owner entity.AccountOwner, limit, offset int) ([]*dto.TransactionResponse, error)

	// ApplyWithin posts a transaction inside the caller's open unit of work.
	// Webhook handlers use it so the grant and the receipt commit atomically.
	ApplyWithin(ctx context.Context, uow unitofwork.UnitOfWork, owner entity.AccountOwner, amount decimal.Decimal, txType entity.TransactionType, reason string, idemKey, externalRef *string) (*entity.LedgerTransaction, bool, error)
}

type ledgerService struct {
	uowFactory unitofwork.RepositoryFactory
	audit      IAuditService
	logger     logger.ILogger
}

func NewLedgerService(uowFactory unitofwork.RepositoryFactory, audit IAuditService, logger logger.ILogger) ILedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
		audit:      audit,
		logger:     logger,
	}
}

func ownerSpec(owner entity.AccountOwner) specification.ByOwner {
	if owner.Kind == entity.OwnerKindUser {
		id := owner.ID
		return specification.ByOwner{UserID: &id}
	}
	id := owner.ID
	return specification.ByOwner{WorkspaceID: &id}
}

// lockAccount loads the owner's account FOR UPDATE, creating it with a zero
// balance on first use. The insert happens inside the same transaction, so
// the fresh row is owned by the caller until commit.
func (s *ledgerService) lockAccount(ctx context.Context, uow unitofwork.UnitOfWork, owner entity.AccountOwner) (*entity.Account, error) {
	account, err := uow.AccountRepository().FindOne(ctx, ownerSpec(owner), specification.ForUpdate{})
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = &entity.Account{
		Id:        uuid.New(),
		Owner:     owner,
		Balance:   decimal.Zero,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := uow.AccountRepository().Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *ledgerService) ApplyWithin(ctx context.Context, uow unitofwork.UnitOfWork, owner entity.AccountOwner, amount decimal.Decimal, txType entity.TransactionType, reason string, idemKey, externalRef *string) (*entity.LedgerTransaction, bool, error) {
	amount = money.Round(amount)
	if amount.IsZero() {
		return nil, false, apperr.Validation("transaction amount must be non-zero")
	}

	account, err := s.lockAccount(ctx, uow, owner)
	if err != nil {
		return nil, false, err
	}

	// Replay short-circuit: a transaction already posted under this key is
	// returned as-is and nothing else changes.
	if idemKey != nil && *idemKey != "" {
		existing, err := uow.LedgerRepository().FindOne(ctx, specification.ByIdempotencyKey{Key: *idemKey})
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}
	if externalRef != nil && *externalRef != "" {
		existing, err := uow.LedgerRepository().FindOne(ctx, specification.Filter("external_ref", *externalRef))
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	newBalance := account.Balance.Add(amount)
	if newBalance.IsNegative() {
		s.logger.Warn("LEDGER", "Rejected debit below zero", map[string]interface{}{
			"account_id": account.Id,
			"balance":    account.Balance.String(),
			"amount":     amount.String(),
		})
		return nil, false, apperr.ErrInsufficientBalance
	}

	tx := &entity.LedgerTransaction{
		Id:             uuid.New(),
		AccountId:      account.Id,
		Amount:         amount,
		Type:           txType,
		Reason:         reason,
		IdempotencyKey: idemKey,
		ExternalRef:    externalRef,
		BalanceAfter:   newBalance,
		CreatedAt:      time.Now(),
	}
	if err := uow.LedgerRepository().Create(ctx, tx); err != nil {
		return nil, false, err
	}

	account.Balance = newBalance
	account.UpdatedAt = time.Now()
	if err := uow.AccountRepository().UpdateBalance(ctx, account); err != nil {
		return nil, false, err
	}

	return tx, false, nil
}

// apply runs one transaction in its own unit of work and audits it.
func (s *ledgerService) apply(ctx context.Context, actor string, owner entity.AccountOwner, amount decimal.Decimal, txType entity.TransactionType, reason string, idemKey, externalRef *string) (*entity.LedgerTransaction, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	tx, replayed, err := s.ApplyWithin(ctx, uow, owner, amount, txType, reason, idemKey, externalRef)
	if err != nil {
		return nil, err
	}

	if !replayed {
		s.audit.Record(ctx, uow, actor, "LEDGER_POSTED", "ledger_transaction", tx.Id.String(), map[string]interface{}{
			"account_id":    tx.AccountId.String(),
			"amount":        tx.Amount.String(),
			"type":          string(tx.Type),
			"reason":        reason,
			"balance_after": tx.BalanceAfter.String(),
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *ledgerService) Credit(ctx context.Context, owner entity.AccountOwner, amount decimal.Decimal, reason string, idemKey *string) (*entity.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("credit amount must be positive")
	}
	return s.apply(ctx, "system", owner, amount, entity.TransactionTypePurchase, reason, idemKey, nil)
}

func (s *ledgerService) Debit(ctx context.Context, owner entity.AccountOwner, amount decimal.Decimal, reason string, idemKey *string) (*entity.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("debit amount must be positive")
	}
	return s.apply(ctx, "system", owner, amount.Neg(), entity.TransactionTypeConsume, reason, idemKey, nil)
}

// Adjust posts a signed operator correction. The optional external ref keys
// reconciliation syncs so a repeated sync is a no-op.
func (s *ledgerService) Adjust(ctx context.Context, actor string, owner entity.AccountOwner, amount decimal.Decimal, reason string, externalRef *string) (*entity.LedgerTransaction, error) {
	if reason == "" {
		return nil, apperr.Validation("adjustment reason is required")
	}
	return s.apply(ctx, actor, owner, amount, entity.TransactionTypeAdjustment, reason, nil, externalRef)
}

func (s *ledgerService) Balance(ctx context.Context, owner entity.AccountOwner) (*dto.BalanceResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	account, err := uow.AccountRepository().FindOne(ctx, ownerSpec(owner))
	if err != nil {
		return nil, err
	}
	if account == nil {
		// An owner with no account yet simply has a zero balance.
		return &dto.BalanceResponse{Balance: decimal.Zero}, nil
	}
	return &dto.BalanceResponse{AccountID: account.Id, Balance: account.Balance}, nil
}

func (s *ledgerService) History(ctx context.Context, owner entity.AccountOwner, limit, offset int) ([]*dto.TransactionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	account, err := uow.AccountRepository().FindOne(ctx, ownerSpec(owner))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return []*dto.TransactionResponse{}, nil
	}

	txs, err := uow.LedgerRepository().FindAll(ctx,
		specification.ByAccount{AccountID: account.Id},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.TransactionResponse, len(txs))
	for i, t := range txs {
		res[i] = &dto.TransactionResponse{
			Id:           t.Id,
			Amount:       t.Amount,
			Type:         string(t.Type),
			Reason:       t.Reason,
			BalanceAfter: t.BalanceAfter,
			CreatedAt:    t.CreatedAt,
		}
	}
	return res, nil
}
