package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SubscriptionStatus string
type RenewalStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"

	RenewalStatusNever   RenewalStatus = "never"
	RenewalStatusSuccess RenewalStatus = "success"
	RenewalStatusFailed  RenewalStatus = "failed"
	RenewalStatusRetry   RenewalStatus = "retry"
)

// Plan is a purchasable subscription tier. Rank orders tiers so plan changes
// can be classified as upgrades or downgrades.
type Plan struct {
	Id            uuid.UUID
	Slug          string
	Name          string
	Rank          int
	MonthlyPrice  decimal.Decimal
	TokenGrant    int64
	StripePriceID string
	IsBaseline    bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Subscription owns the authoritative plan for a workspace. Any cached plan
// field elsewhere is a read-only projection of this row.
type Subscription struct {
	Id                   uuid.UUID
	WorkspaceID          uuid.UUID
	Plan                 string
	Status               SubscriptionStatus
	PendingPlan          *string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	RenewalAttemptCount  int
	LastRenewalStatus    RenewalStatus
	AutoRenew            bool
	BillingAccountID     *uuid.UUID
	StripeSubscriptionID *string
	StripeCustomerID     *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
