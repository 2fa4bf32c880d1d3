package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Plan struct {
	Id            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Slug          string          `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name          string          `gorm:"type:varchar(255);not null"`
	Rank          int             `gorm:"not null;default:0"`
	MonthlyPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	TokenGrant    int64           `gorm:"not null;default:0"`
	StripePriceID string          `gorm:"type:varchar(255)"`
	IsBaseline    bool            `gorm:"not null;default:false"`
	IsActive      bool            `gorm:"not null;default:true"`
	CreatedAt     time.Time       `gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime"`
}

func (Plan) TableName() string {
	return "plans"
}

type Subscription struct {
	Id                   uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkspaceID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_subscriptions_workspace"`
	Plan                 string     `gorm:"type:varchar(100);not null"`
	Status               string     `gorm:"type:varchar(20);not null;index"`
	PendingPlan          *string    `gorm:"type:varchar(100)"`
	CurrentPeriodStart   time.Time  `gorm:"not null"`
	CurrentPeriodEnd     time.Time  `gorm:"not null"`
	RenewalAttemptCount  int        `gorm:"not null;default:0"`
	LastRenewalStatus    string     `gorm:"type:varchar(20);not null;default:'never'"`
	AutoRenew            bool       `gorm:"not null;default:true"`
	BillingAccountID     *uuid.UUID `gorm:"type:uuid"`
	StripeSubscriptionID *string    `gorm:"type:varchar(255);uniqueIndex:ux_subscriptions_stripe_sub,where:stripe_subscription_id IS NOT NULL"`
	StripeCustomerID     *string    `gorm:"type:varchar(255);index"`
	CreatedAt            time.Time  `gorm:"autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

type PlanChangeRequest struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubscriptionID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_plan_changes_open,where:status IN ('pending','processing')"`
	FromPlan        string    `gorm:"type:varchar(100);not null"`
	ToPlan          string    `gorm:"type:varchar(100);not null"`
	ChangeType      string    `gorm:"type:varchar(20);not null"`
	EffectiveTiming string    `gorm:"type:varchar(20);not null"`
	Status          string    `gorm:"type:varchar(20);not null;index"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (PlanChangeRequest) TableName() string {
	return "plan_change_requests"
}
