package service

import (
	"context"
	"time"

	"ad-studio-be/internal/config"
	"ad-studio-be/internal/dto"
	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/pkg/apperr"
	"ad-studio-be/internal/pkg/logger"
	"ad-studio-be/internal/repository/specification"
	"ad-studio-be/internal/repository/unitofwork"

	gocache "github.com/patrickmn/go-cache"
)

// ICatalogService resolves purchasable product keys to their gateway prices
// and grants, and serves plan definitions. The key set is closed: anything
// not in the configured catalog is rejected as unknown_product.
type ICatalogService interface {
	Resolve(key string) (*config.CatalogItem, error)
	ResolveByPriceID(priceID string) (string, *config.CatalogItem, bool)
	GetPlanBySlug(ctx context.Context, slug string) (*entity.Plan, error)
	BaselinePlan(ctx context.Context) (*entity.Plan, error)
	ListPlans(ctx context.Context) ([]*dto.PlanResponse, error)
}

type catalogService struct {
	cfg        *config.BillingConfig
	uowFactory unitofwork.RepositoryFactory
	cache      *gocache.Cache
	logger     logger.ILogger
}

func NewCatalogService(cfg *config.BillingConfig, uowFactory unitofwork.RepositoryFactory, logger logger.ILogger) ICatalogService {
	return &catalogService{
		cfg:        cfg,
		uowFactory: uowFactory,
		cache:      gocache.New(5*time.Minute, 10*time.Minute),
		logger:     logger,
	}
}

func (s *catalogService) Resolve(key string) (*config.CatalogItem, error) {
	item, ok := s.cfg.Catalog[key]
	if !ok {
		s.logger.Warn("CATALOG", "Rejected unknown product key", map[string]interface{}{
			"product_key": key,
		})
		return nil, apperr.ErrUnknownProduct
	}
	return &item, nil
}

// ResolveByPriceID finds the catalog entry carrying a gateway price id.
// Used when webhooks report line items by price rather than product key.
func (s *catalogService) ResolveByPriceID(priceID string) (string, *config.CatalogItem, bool) {
	for key, item := range s.cfg.Catalog {
		if item.PriceID == priceID {
			it := item
			return key, &it, true
		}
	}
	return "", nil, false
}

func (s *catalogService) GetPlanBySlug(ctx context.Context, slug string) (*entity.Plan, error) {
	cacheKey := "plan:" + slug
	if cached, found := s.cache.Get(cacheKey); found {
		return cached.(*entity.Plan), nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	plan, err := uow.SubscriptionRepository().FindOnePlan(ctx, specification.Filter("slug", slug))
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, apperr.MissingReference("plan", slug)
	}

	s.cache.Set(cacheKey, plan, gocache.DefaultExpiration)
	return plan, nil
}

func (s *catalogService) BaselinePlan(ctx context.Context) (*entity.Plan, error) {
	return s.GetPlanBySlug(ctx, s.cfg.BaselinePlanSlug)
}

func (s *catalogService) ListPlans(ctx context.Context) ([]*dto.PlanResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	plans, err := uow.SubscriptionRepository().FindAllPlans(ctx,
		specification.Filter("is_active", true),
		specification.OrderBy{Field: "rank", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.PlanResponse, len(plans))
	for i, p := range plans {
		res[i] = &dto.PlanResponse{
			Id:           p.Id,
			Slug:         p.Slug,
			Name:         p.Name,
			MonthlyPrice: p.MonthlyPrice,
			TokenGrant:   p.TokenGrant,
			IsBaseline:   p.IsBaseline,
		}
	}
	return res, nil
}
