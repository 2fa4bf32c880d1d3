package mapper

import (
	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/model"
)

type SubscriptionMapper struct{}

func NewSubscriptionMapper() *SubscriptionMapper {
	return &SubscriptionMapper{}
}

func (m *SubscriptionMapper) PlanToEntity(p *model.Plan) *entity.Plan {
	if p == nil {
		return nil
	}
	return &entity.Plan{
		Id:            p.Id,
		Slug:          p.Slug,
		Name:          p.Name,
		Rank:          p.Rank,
		MonthlyPrice:  p.MonthlyPrice,
		TokenGrant:    p.TokenGrant,
		StripePriceID: p.StripePriceID,
		IsBaseline:    p.IsBaseline,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (m *SubscriptionMapper) PlanToModel(p *entity.Plan) *model.Plan {
	if p == nil {
		return nil
	}
	return &model.Plan{
		Id:            p.Id,
		Slug:          p.Slug,
		Name:          p.Name,
		Rank:          p.Rank,
		MonthlyPrice:  p.MonthlyPrice,
		TokenGrant:    p.TokenGrant,
		StripePriceID: p.StripePriceID,
		IsBaseline:    p.IsBaseline,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (m *SubscriptionMapper) SubscriptionToEntity(s *model.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	return &entity.Subscription{
		Id:                   s.Id,
		WorkspaceID:          s.WorkspaceID,
		Plan:                 s.Plan,
		Status:               entity.SubscriptionStatus(s.Status),
		PendingPlan:          s.PendingPlan,
		CurrentPeriodStart:   s.CurrentPeriodStart,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
		RenewalAttemptCount:  s.RenewalAttemptCount,
		LastRenewalStatus:    entity.RenewalStatus(s.LastRenewalStatus),
		AutoRenew:            s.AutoRenew,
		BillingAccountID:     s.BillingAccountID,
		StripeSubscriptionID: s.StripeSubscriptionID,
		StripeCustomerID:     s.StripeCustomerID,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) SubscriptionToModel(s *entity.Subscription) *model.Subscription {
	if s == nil {
		return nil
	}
	return &model.Subscription{
		Id:                   s.Id,
		WorkspaceID:          s.WorkspaceID,
		Plan:                 s.Plan,
		Status:               string(s.Status),
		PendingPlan:          s.PendingPlan,
		CurrentPeriodStart:   s.CurrentPeriodStart,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
		RenewalAttemptCount:  s.RenewalAttemptCount,
		LastRenewalStatus:    string(s.LastRenewalStatus),
		AutoRenew:            s.AutoRenew,
		BillingAccountID:     s.BillingAccountID,
		StripeSubscriptionID: s.StripeSubscriptionID,
		StripeCustomerID:     s.StripeCustomerID,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) PlanChangeToEntity(r *model.PlanChangeRequest) *entity.PlanChangeRequest {
	if r == nil {
		return nil
	}
	return &entity.PlanChangeRequest{
		Id:              r.Id,
		SubscriptionID:  r.SubscriptionID,
		FromPlan:        r.FromPlan,
		ToPlan:          r.ToPlan,
		ChangeType:      entity.PlanChangeType(r.ChangeType),
		EffectiveTiming: entity.EffectiveTiming(r.EffectiveTiming),
		Status:          entity.PlanChangeStatus(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (m *SubscriptionMapper) PlanChangeToModel(r *entity.PlanChangeRequest) *model.PlanChangeRequest {
	if r == nil {
		return nil
	}
	return &model.PlanChangeRequest{
		Id:              r.Id,
		SubscriptionID:  r.SubscriptionID,
		FromPlan:        r.FromPlan,
		ToPlan:          r.ToPlan,
		ChangeType:      string(r.ChangeType),
		EffectiveTiming: string(r.EffectiveTiming),
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
