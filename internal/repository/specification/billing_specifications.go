package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByOwner resolves an account by its tagged owner.
type ByOwner struct {
	UserID      *uuid.UUID
	WorkspaceID *uuid.UUID
}

func (s ByOwner) Apply(db *gorm.DB) *gorm.DB {
	if s.UserID != nil {
		return db.Where("user_id = ?", *s.UserID)
	}
	return db.Where("workspace_id = ?", *s.WorkspaceID)
}

// ByWorkspace filters by workspace id.
type ByWorkspace struct {
	WorkspaceID uuid.UUID
}

func (s ByWorkspace) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("workspace_id = ?", s.WorkspaceID)
}

// ByEventID filters webhook receipts and dead letters by gateway event id.
type ByEventID struct {
	EventID string
}

func (s ByEventID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("event_id = ?", s.EventID)
}

// ByAccount filters ledger transactions by account.
type ByAccount struct {
	AccountID uuid.UUID
}

func (s ByAccount) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("account_id = ?", s.AccountID)
}

// BySubscription filters plan change requests by subscription.
type BySubscription struct {
	SubscriptionID uuid.UUID
}

func (s BySubscription) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("subscription_id = ?", s.SubscriptionID)
}

// ByIdempotencyKey resolves a ledger transaction by caller-supplied key.
type ByIdempotencyKey struct {
	Key string
}

func (s ByIdempotencyKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("idempotency_key = ?", s.Key)
}

// OpenPlanChanges keeps only non-terminal plan change requests.
type OpenPlanChanges struct{}

func (s OpenPlanChanges) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", []string{"pending", "processing"})
}

// Unreplayed keeps dead letters that still await operator replay.
type Unreplayed struct{}

func (s Unreplayed) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("replayed_at IS NULL")
}
