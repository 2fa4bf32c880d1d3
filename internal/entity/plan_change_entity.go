package entity

import (
	"time"

	"github.com/google/uuid"
)

type PlanChangeType string
type EffectiveTiming string
type PlanChangeStatus string

const (
	PlanChangeTypeUpgrade   PlanChangeType = "upgrade"
	PlanChangeTypeDowngrade PlanChangeType = "downgrade"
	PlanChangeTypeChange    PlanChangeType = "change"

	TimingImmediate   EffectiveTiming = "immediate"
	TimingEndOfPeriod EffectiveTiming = "end_of_period"

	PlanChangeStatusPending    PlanChangeStatus = "pending"
	PlanChangeStatusProcessing PlanChangeStatus = "processing"
	PlanChangeStatusCompleted  PlanChangeStatus = "completed"
	PlanChangeStatusFailed     PlanChangeStatus = "failed"
	PlanChangeStatusCanceled   PlanChangeStatus = "canceled"
)

// PlanChangeRequest tracks one tier transition. Downgrades must use
// end_of_period timing; at most one non-terminal request exists per
// subscription at a time.
type PlanChangeRequest struct {
	Id              uuid.UUID
	SubscriptionID  uuid.UUID
	FromPlan        string
	ToPlan          string
	ChangeType      PlanChangeType
	EffectiveTiming EffectiveTiming
	Status          PlanChangeStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
