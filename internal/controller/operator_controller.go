package controller

import (
	"fmt"

	"ad-studio-be/internal/dto"
	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/pkg/apperr"
	"ad-studio-be/internal/pkg/serverutils"
	"ad-studio-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// IOperatorController exposes back-office operations: manual balance
// adjustments, receipt inspection, dead-letter replay, and the audit trail.
// Every route requires the operator role.
type IOperatorController interface {
	RegisterRoutes(r fiber.Router)
	Adjust(ctx *fiber.Ctx) error
	IssueRefund(ctx *fiber.Ctx) error
	CollectInvoice(ctx *fiber.Ctx) error
	ListReceipts(ctx *fiber.Ctx) error
	ListDeadLetters(ctx *fiber.Ctx) error
	ReplayDeadLetter(ctx *fiber.Ctx) error
	ListAuditLog(ctx *fiber.Ctx) error
}

type operatorController struct {
	ledger        service.ILedgerService
	subscriptions service.ISubscriptionService
	dispatcher    service.IDispatcherService
	audit         service.IAuditService
}

func NewOperatorController(
	ledger service.ILedgerService,
	subscriptions service.ISubscriptionService,
	dispatcher service.IDispatcherService,
	audit service.IAuditService,
) IOperatorController {
	return &operatorController{
		ledger:        ledger,
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		audit:         audit,
	}
}

func (c *operatorController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/operator", serverutils.JwtMiddleware, serverutils.OperatorMiddleware)
	h.Post("/adjustments", c.Adjust)
	h.Post("/refunds", c.IssueRefund)
	h.Post("/invoices/:id/collect", c.CollectInvoice)
	h.Get("/receipts", c.ListReceipts)
	h.Get("/dead-letters", c.ListDeadLetters)
	h.Post("/dead-letters/:id/replay", c.ReplayDeadLetter)
	h.Get("/audit-log", c.ListAuditLog)
}

func operatorActor(ctx *fiber.Ctx) string {
	if userID, ok := ctx.Locals("user_id").(string); ok && userID != "" {
		return fmt.Sprintf("operator:%s", userID)
	}
	return "operator"
}

func (c *operatorController) Adjust(ctx *fiber.Ctx) error {
	var req dto.AdjustmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}
	if (req.WorkspaceID == nil) == (req.UserID == nil) {
		return apperr.Validation("exactly one of workspace_id or user_id is required")
	}

	owner := entity.AccountOwner{}
	if req.WorkspaceID != nil {
		owner = entity.WorkspaceOwner(*req.WorkspaceID)
	} else {
		owner = entity.UserOwner(*req.UserID)
	}

	tx, err := c.ledger.Adjust(ctx.Context(), operatorActor(ctx), owner, req.Amount, req.Reason, req.ExternalRef)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Adjustment posted", dto.TransactionResponse{
		Id:           tx.Id,
		Amount:       tx.Amount,
		Type:         string(tx.Type),
		Reason:       tx.Reason,
		BalanceAfter: tx.BalanceAfter,
		CreatedAt:    tx.CreatedAt,
	}))
}

func (c *operatorController) IssueRefund(ctx *fiber.Ctx) error {
	var req dto.RefundRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.subscriptions.IssueRefund(ctx.Context(), operatorActor(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Refund issued", res))
}

func (c *operatorController) CollectInvoice(ctx *fiber.Ctx) error {
	invoiceID := ctx.Params("id")
	if invoiceID == "" {
		return apperr.Validation("invoice id is required")
	}

	res, err := c.subscriptions.CollectInvoice(ctx.Context(), operatorActor(ctx), invoiceID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Invoice collection triggered", res))
}

func (c *operatorController) ListReceipts(ctx *fiber.Ctx) error {
	limit, offset := pageParams(ctx)
	res, err := c.dispatcher.ListReceipts(ctx.Context(), limit, offset)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching receipts", res))
}

func (c *operatorController) ListDeadLetters(ctx *fiber.Ctx) error {
	limit, offset := pageParams(ctx)
	includeReplayed := ctx.QueryBool("include_replayed", false)
	res, err := c.dispatcher.ListDeadLetters(ctx.Context(), limit, offset, includeReplayed)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching dead letters", res))
}

func (c *operatorController) ReplayDeadLetter(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperr.Validation("invalid dead letter id")
	}

	if err := c.dispatcher.Replay(ctx.Context(), id, operatorActor(ctx)); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Dead letter replayed", struct{}{}))
}

func (c *operatorController) ListAuditLog(ctx *fiber.Ctx) error {
	limit, offset := pageParams(ctx)
	res, err := c.audit.List(ctx.Context(), limit, offset)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching audit log", res))
}
