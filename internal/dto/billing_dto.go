package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	WorkspaceID uuid.UUID `json:"workspace_id" validate:"required"`
	ProductKey  string    `json:"product_key" validate:"required"`
	Email       string    `json:"email" validate:"omitempty,email"`
}

type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type BalanceResponse struct {
	AccountID uuid.UUID       `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

type TransactionResponse struct {
	Id           uuid.UUID       `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Reason       string          `json:"reason"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

type PlanResponse struct {
	Id           uuid.UUID       `json:"id"`
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	TokenGrant   int64           `json:"token_grant"`
	IsBaseline   bool            `json:"is_baseline"`
}

type SubscriptionStatusResponse struct {
	SubscriptionId     uuid.UUID  `json:"subscription_id"`
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	PendingPlan        *string    `json:"pending_plan,omitempty"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	AutoRenew          bool       `json:"auto_renew"`
	LastRenewalStatus  string     `json:"last_renewal_status"`
	IsActive           bool       `json:"is_active"`
	DaysRemaining      int        `json:"days_remaining"`
	GracePeriodEnd     *time.Time `json:"grace_period_end,omitempty"`
}

type PlanChangeRequestDTO struct {
	WorkspaceID uuid.UUID `json:"workspace_id" validate:"required"`
	TargetPlan  string    `json:"target_plan" validate:"required"`
	Timing      string    `json:"timing" validate:"omitempty,oneof=immediate end_of_period"`
}

type PlanChangeResponse struct {
	RequestId       uuid.UUID `json:"request_id"`
	FromPlan        string    `json:"from_plan"`
	ToPlan          string    `json:"to_plan"`
	ChangeType      string    `json:"change_type"`
	EffectiveTiming string    `json:"effective_timing"`
	Status          string    `json:"status"`
}

type RefundRequest struct {
	WorkspaceID   uuid.UUID       `json:"workspace_id" validate:"required"`
	PaymentIntent string          `json:"payment_intent" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	TokenClawback int64           `json:"token_clawback" validate:"omitempty,min=0"`
	Reason        string          `json:"reason" validate:"required"`
}

type RefundResponse struct {
	RefundID string          `json:"refund_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type InvoiceCollectionResponse struct {
	InvoiceID string          `json:"invoice_id"`
	Paid      bool            `json:"paid"`
	AmountDue decimal.Decimal `json:"amount_due"`
	Currency  string          `json:"currency"`
}

type AdjustmentRequest struct {
	WorkspaceID *uuid.UUID      `json:"workspace_id" validate:"omitempty"`
	UserID      *uuid.UUID      `json:"user_id" validate:"omitempty"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Reason      string          `json:"reason" validate:"required"`
	ExternalRef *string         `json:"external_ref,omitempty"`
}
