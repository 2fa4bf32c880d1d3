package controller

import (
	"strconv"

	"ad-studio-be/internal/dto"
	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/pkg/apperr"
	"ad-studio-be/internal/pkg/serverutils"
	"ad-studio-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type IBillingController interface {
	RegisterRoutes(r fiber.Router)
	GetPlans(ctx *fiber.Ctx) error
	Checkout(ctx *fiber.Ctx) error
	GetBalance(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	Consume(ctx *fiber.Ctx) error
	GetSubscriptionStatus(ctx *fiber.Ctx) error
	RequestPlanChange(ctx *fiber.Ctx) error
	ConfirmPlanChange(ctx *fiber.Ctx) error
	CancelPlanChange(ctx *fiber.Ctx) error
}

type billingController struct {
	ledger        service.ILedgerService
	subscriptions service.ISubscriptionService
	catalog       service.ICatalogService
}

func NewBillingController(
	ledger service.ILedgerService,
	subscriptions service.ISubscriptionService,
	catalog service.ICatalogService,
) IBillingController {
	return &billingController{
		ledger:        ledger,
		subscriptions: subscriptions,
		catalog:       catalog,
	}
}

func (c *billingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/billing")
	h.Get("/plans", c.GetPlans)

	// Protected routes
	h.Post("/checkout", serverutils.JwtMiddleware, c.Checkout)
	h.Get("/workspaces/:workspaceId/balance", serverutils.JwtMiddleware, c.GetBalance)
	h.Get("/workspaces/:workspaceId/transactions", serverutils.JwtMiddleware, c.GetHistory)
	h.Post("/workspaces/:workspaceId/consume", serverutils.JwtMiddleware, c.Consume)
	h.Get("/workspaces/:workspaceId/subscription", serverutils.JwtMiddleware, c.GetSubscriptionStatus)
	h.Post("/plan-changes", serverutils.JwtMiddleware, c.RequestPlanChange)
	h.Post("/workspaces/:workspaceId/plan-changes/confirm", serverutils.JwtMiddleware, c.ConfirmPlanChange)
	h.Delete("/workspaces/:workspaceId/plan-changes", serverutils.JwtMiddleware, c.CancelPlanChange)
}

func workspaceParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("workspaceId"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid workspace id")
	}
	return id, nil
}

func pageParams(ctx *fiber.Ctx) (int, int) {
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (c *billingController) GetPlans(ctx *fiber.Ctx) error {
	res, err := c.catalog.ListPlans(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching plans", res))
}

func (c *billingController) Checkout(ctx *fiber.Ctx) error {
	var req dto.CheckoutRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.subscriptions.CreateCheckout(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Checkout session created", res))
}

func (c *billingController) GetBalance(ctx *fiber.Ctx) error {
	workspaceID, err := workspaceParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.ledger.Balance(ctx.Context(), entity.WorkspaceOwner(workspaceID))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching balance", res))
}

func (c *billingController) GetHistory(ctx *fiber.Ctx) error {
	workspaceID, err := workspaceParam(ctx)
	if err != nil {
		return err
	}
	limit, offset := pageParams(ctx)

	res, err := c.ledger.History(ctx.Context(), entity.WorkspaceOwner(workspaceID), limit, offset)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching transactions", res))
}

type consumeRequest struct {
	Amount         int64   `json:"amount" validate:"required,gt=0"`
	Reason         string  `json:"reason" validate:"required"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
}

// Consume debits tokens for usage (ad generation, renders). Callers may pass
// an idempotency key so a retried request cannot double-charge.
func (c *billingController) Consume(ctx *fiber.Ctx) error {
	workspaceID, err := workspaceParam(ctx)
	if err != nil {
		return err
	}

	var req consumeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	tx, err := c.ledger.Debit(ctx.Context(), entity.WorkspaceOwner(workspaceID),
		decimal.NewFromInt(req.Amount), req.Reason, req.IdempotencyKey)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Tokens consumed", dto.TransactionResponse{
		Id:           tx.Id,
		Amount:       tx.Amount,
		Type:         string(tx.Type),
		Reason:       tx.Reason,
		BalanceAfter: tx.BalanceAfter,
		CreatedAt:    tx.CreatedAt,
	}))
}

func (c *billingController) GetSubscriptionStatus(ctx *fiber.Ctx) error {
	workspaceID, err := workspaceParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.subscriptions.Status(ctx.Context(), workspaceID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching subscription", res))
}

func (c *billingController) RequestPlanChange(ctx *fiber.Ctx) error {
	var req dto.PlanChangeRequestDTO
	if err := ctx.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.subscriptions.RequestPlanChange(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Plan change requested", res))
}

func (c *billingController) ConfirmPlanChange(ctx *fiber.Ctx) error {
	workspaceID, err := workspaceParam(ctx)
	if err != nil {
		return err
	}

	if err := c.subscriptions.ConfirmPendingChange(ctx.Context(), workspaceID); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Pending plan change applied", struct{}{}))
}

func (c *billingController) CancelPlanChange(ctx *fiber.Ctx) error {
	workspaceID, err := workspaceParam(ctx)
	if err != nil {
		return err
	}

	if err := c.subscriptions.CancelPendingChange(ctx.Context(), workspaceID); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Pending plan change canceled", struct{}{}))
}
