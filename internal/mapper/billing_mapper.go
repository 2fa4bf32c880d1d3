package mapper

import (
	"encoding/json"

	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/model"
)

type BillingMapper struct{}

func NewBillingMapper() *BillingMapper {
	return &BillingMapper{}
}

func (m *BillingMapper) AccountToEntity(a *model.Account) *entity.Account {
	if a == nil {
		return nil
	}
	owner := entity.AccountOwner{}
	if a.UserId != nil {
		owner = entity.UserOwner(*a.UserId)
	} else if a.WorkspaceId != nil {
		owner = entity.WorkspaceOwner(*a.WorkspaceId)
	}
	return &entity.Account{
		Id:        a.Id,
		Owner:     owner,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (m *BillingMapper) AccountToModel(a *entity.Account) *model.Account {
	if a == nil {
		return nil
	}
	acc := &model.Account{
		Id:        a.Id,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	switch a.Owner.Kind {
	case entity.OwnerKindUser:
		id := a.Owner.ID
		acc.UserId = &id
	case entity.OwnerKindWorkspace:
		id := a.Owner.ID
		acc.WorkspaceId = &id
	}
	return acc
}

func (m *BillingMapper) TransactionToEntity(t *model.LedgerTransaction) *entity.LedgerTransaction {
	if t == nil {
		return nil
	}
	return &entity.LedgerTransaction{
		Id:             t.Id,
		AccountId:      t.AccountId,
		Amount:         t.Amount,
		Type:           entity.TransactionType(t.Type),
		Reason:         t.Reason,
		IdempotencyKey: t.IdempotencyKey,
		ExternalRef:    t.ExternalRef,
		BalanceAfter:   t.BalanceAfter,
		CreatedAt:      t.CreatedAt,
	}
}

func (m *BillingMapper) TransactionToModel(t *entity.LedgerTransaction) *model.LedgerTransaction {
	if t == nil {
		return nil
	}
	return &model.LedgerTransaction{
		Id:             t.Id,
		AccountId:      t.AccountId,
		Amount:         t.Amount,
		Type:           string(t.Type),
		Reason:         t.Reason,
		IdempotencyKey: t.IdempotencyKey,
		ExternalRef:    t.ExternalRef,
		BalanceAfter:   t.BalanceAfter,
		CreatedAt:      t.CreatedAt,
	}
}

func (m *BillingMapper) ReceiptToEntity(r *model.WebhookEventReceipt) *entity.WebhookEventReceipt {
	if r == nil {
		return nil
	}
	return &entity.WebhookEventReceipt{
		Id:          r.Id,
		EventID:     r.EventID,
		Type:        r.Type,
		PayloadHash: r.PayloadHash,
		Status:      entity.ReceiptStatus(r.Status),
		Handled:     r.Handled,
		Outcome:     r.Outcome,
		ProcessedAt: r.ProcessedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (m *BillingMapper) ReceiptToModel(r *entity.WebhookEventReceipt) *model.WebhookEventReceipt {
	if r == nil {
		return nil
	}
	return &model.WebhookEventReceipt{
		Id:          r.Id,
		EventID:     r.EventID,
		Type:        r.Type,
		PayloadHash: r.PayloadHash,
		Status:      string(r.Status),
		Handled:     r.Handled,
		Outcome:     r.Outcome,
		ProcessedAt: r.ProcessedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (m *BillingMapper) DeadLetterToEntity(d *model.DeadLetterEntry) *entity.DeadLetterEntry {
	if d == nil {
		return nil
	}
	return &entity.DeadLetterEntry{
		Id:            d.Id,
		EventID:       d.EventID,
		EventType:     d.EventType,
		Payload:       d.Payload,
		Reason:        d.Reason,
		RetryCount:    d.RetryCount,
		LastAttemptAt: d.LastAttemptAt,
		ReplayedAt:    d.ReplayedAt,
		CreatedAt:     d.CreatedAt,
	}
}

func (m *BillingMapper) DeadLetterToModel(d *entity.DeadLetterEntry) *model.DeadLetterEntry {
	if d == nil {
		return nil
	}
	return &model.DeadLetterEntry{
		Id:            d.Id,
		EventID:       d.EventID,
		EventType:     d.EventType,
		Payload:       d.Payload,
		Reason:        d.Reason,
		RetryCount:    d.RetryCount,
		LastAttemptAt: d.LastAttemptAt,
		ReplayedAt:    d.ReplayedAt,
		CreatedAt:     d.CreatedAt,
	}
}

func (m *BillingMapper) AuditToEntity(a *model.AuditLog) *entity.AuditLog {
	if a == nil {
		return nil
	}
	details := map[string]interface{}{}
	if a.Details != nil {
		_ = json.Unmarshal([]byte(*a.Details), &details)
	}
	return &entity.AuditLog{
		Id:         a.Id,
		Actor:      a.Actor,
		Action:     a.Action,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Details:    details,
		CreatedAt:  a.CreatedAt,
	}
}

func (m *BillingMapper) AuditToModel(a *entity.AuditLog) *model.AuditLog {
	if a == nil {
		return nil
	}
	var details *string
	if len(a.Details) > 0 {
		if raw, err := json.Marshal(a.Details); err == nil {
			s := string(raw)
			details = &s
		}
	}
	return &model.AuditLog{
		Id:         a.Id,
		Actor:      a.Actor,
		Action:     a.Action,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Details:    details,
		CreatedAt:  a.CreatedAt,
	}
}
