package contract

import (
	"context"

	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	// Plans
	CreatePlan(ctx context.Context, plan *entity.Plan) error
	UpdatePlan(ctx context.Context, plan *entity.Plan) error
	FindOnePlan(ctx context.Context, specs ...specification.Specification) (*entity.Plan, error)
	FindAllPlans(ctx context.Context, specs ...specification.Specification) ([]*entity.Plan, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, sub *entity.Subscription) error
	UpdateSubscription(ctx context.Context, sub *entity.Subscription) error
	FindOneSubscription(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error)
	FindAllSubscriptions(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error)
	CountActiveSubscribers(ctx context.Context) (int64, error)
}

type PlanChangeRepository interface {
	Create(ctx context.Context, req *entity.PlanChangeRequest) error
	Update(ctx context.Context, req *entity.PlanChangeRequest) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PlanChangeRequest, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PlanChangeRequest, error)
	FindOpenBySubscription(ctx context.Context, subscriptionId uuid.UUID) (*entity.PlanChangeRequest, error)
}
