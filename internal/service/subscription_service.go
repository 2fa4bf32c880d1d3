package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ad-studio-be/internal/config"
	"ad-studio-be/internal/dto"
	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/pkg/apperr"
	"ad-studio-be/internal/pkg/logger"
	"ad-studio-be/internal/pkg/mailer"
	"ad-studio-be/internal/repository/specification"
	"ad-studio-be/internal/repository/unitofwork"
	"ad-studio-be/pkg/gateway"
	"ad-studio-be/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Days past the period end during which a past_due subscription keeps its
// entitlements while renewal retries run.
const gracePeriodDays = 7

// Handler outcomes recorded on the webhook receipt.
const (
	OutcomeProcessed     = "processed"
	OutcomeStaleIgnored  = "stale_invoice_ignored"
	OutcomeAlreadyPosted = "already_posted"
)

// ISubscriptionService owns the per-workspace subscription lifecycle: the
// checkout entry point, the webhook-driven state machine, and user-initiated
// plan changes. The subscription row is the single source of truth for a
// workspace's plan.
type ISubscriptionService interface {
	CreateCheckout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	Status(ctx context.Context, workspaceID uuid.UUID) (*dto.SubscriptionStatusResponse, error)
	RequestPlanChange(ctx context.Context, req *dto.PlanChangeRequestDTO) (*dto.PlanChangeResponse, error)
	ConfirmPendingChange(ctx context.Context, workspaceID uuid.UUID) error
	CancelPendingChange(ctx context.Context, workspaceID uuid.UUID) error

	// Operator-facing gateway actions.
	IssueRefund(ctx context.Context, actor string, req *dto.RefundRequest) (*dto.RefundResponse, error)
	CollectInvoice(ctx context.Context, actor, invoiceID string) (*dto.InvoiceCollectionResponse, error)

	// Webhook handlers run inside the dispatcher's unit of work so business
	// state and the event receipt commit together. Each returns the outcome
	// string stored on the receipt.
	HandleCheckoutCompleted(ctx context.Context, uow unitofwork.UnitOfWork, msg *dto.DispatchMessage) (string, error)
	HandleInvoicePaid(ctx context.Context, uow unitofwork.UnitOfWork, msg *dto.DispatchMessage) (string, error)
	HandleInvoicePaymentFailed(ctx context.Context, uow unitofwork.UnitOfWork, msg *dto.DispatchMessage) (string, error)
	HandleSubscriptionDeleted(ctx context.Context, uow unitofwork.UnitOfWork, msg *dto.DispatchMessage) (string, error)
}

type subscriptionService struct {
	cfg        *config.Config
	uowFactory unitofwork.RepositoryFactory
	gateway    gateway.PaymentGateway
	catalog    ICatalogService
	ledger     ILedgerService
	audit      IAuditService
	mailer     mailer.IEmailService
	logger     logger.ILogger
}

func NewSubscriptionService(
	cfg *config.Config,
	uowFactory unitofwork.RepositoryFactory,
	gw gateway.PaymentGateway,
	catalog ICatalogService,
	ledger ILedgerService,
	audit IAuditService,
	emailService mailer.IEmailService,
	logger logger.ILogger,
) ISubscriptionService {
	return &subscriptionService{
		cfg:        cfg,
		uowFactory: uowFactory,
		gateway:    gw,
		catalog:    catalog,
		ledger:     ledger,
		audit:      audit,
		mailer:     emailService,
		logger:     logger,
	}
}

// checkoutReference encodes the workspace and product key into the client
// reference carried through the gateway back to the webhook.
func checkoutReference(workspaceID uuid.UUID, productKey string) string {
	return workspaceID.String() + "|" + productKey
}

func parseCheckoutReference(ref string) (uuid.UUID, string, error) {
	parts := strings.SplitN(ref, "|", 2)
	if len(parts) != 2 {
		return uuid.Nil, "", apperr.Validation("malformed client reference %q", ref)
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", apperr.Validation("malformed workspace id in client reference %q", ref)
	}
	return id, parts[1], nil
}

func (s *subscriptionService) CreateCheckout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	item, err := s.catalog.Resolve(req.ProductKey)
	if err != nil {
		return nil, err
	}

	mode := "payment"
	if item.Kind == "plan" {
		mode = "subscription"
	}

	customerID := ""
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := uow.SubscriptionRepository().FindOneSubscription(ctx, specification.ByWorkspace{WorkspaceID: req.WorkspaceID})
	if err != nil {
		return nil, err
	}
	if sub != nil && sub.StripeCustomerID != nil {
		customerID = *sub.StripeCustomerID
	}
	if customerID == "" && req.Email != "" {
		customerID, err = s.gateway.EnsureCustomer(ctx, "", req.Email, req.WorkspaceID.String())
		if err != nil {
			return nil, err
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, gateway.CheckoutParams{
		CustomerID: customerID,
		PriceID:    item.PriceID,
		Quantity:   1,
		Mode:       mode,
		SuccessURL: s.cfg.App.ClientURL + s.cfg.Billing.CheckoutSuccessPath,
		CancelURL:  s.cfg.App.ClientURL + s.cfg.Billing.CheckoutCancelPath,
		Reference:  checkoutReference(req.WorkspaceID, req.ProductKey),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("SUBSCRIPTION", "Created checkout session", map[string]interface{}{
		"workspace_id": req.WorkspaceID,
		"product_key":  req.ProductKey,
		"session_id":   session.ID,
	})
	return &dto.CheckoutResponse{SessionID: session.ID, CheckoutURL: session.URL}, nil
}

func (s *subscriptionService) findByStripeSubscription(ctx context.Context, uow unitofwork.UnitOfWork, stripeSubID string, lock bool) (*entity.Subscription, error) {
	specs := []specification.Specification{specification.Filter("stripe_subscription_id", stripeSubID)}
	if lock {
		specs = append(specs, specification.ForUpdate{})
	}
	return uow.SubscriptionRepository().FindOneSubscription(ctx, specs...)
}

func (s *subscriptionService) HandleCheckoutCompleted(ctx context.Context, uow unitofwork.UnitOfWork, msg *dto.DispatchMessage) (string, error) {
	var obj dto.CheckoutSessionObject
	if err := json.Unmarshal(msg.Object, &obj); err != nil {
		return "", apperr.Validation("malformed checkout.session.completed payload: %v", err)
	}
	if obj.PaymentStatus != "" && obj.PaymentStatus != "paid" && obj.PaymentStatus != "no_payment_required" {
		return OutcomeStaleIgnored, nil
	}

	workspaceID, productKey, err := parseCheckoutReference(obj.ClientReferenceID)
	if err != nil {
		return "", err
	}
	item, err := s.catalog.Resolve(productKey)
	if err != nil {
		return "", err
	}

	switch item.Kind {
	case "token_pack":
		idemKey := msg.EventID
		_, replayed, err := s.ledger.ApplyWithin(ctx, uow, entity.WorkspaceOwner(workspaceID),
			decimal.NewFromInt(item.Tokens), entity.TransactionTypePurchase,
			"token pack purchase: "+productKey, &idemKey, nil)
		if err != nil {
			return "", err
		}
		if replayed {
			return OutcomeAlreadyPosted, nil
		}
		s.audit.Record(ctx, uow, "webhook", "TOKENS_PURCHASED", "workspace", workspaceID.String(), map[string]interface{}{
			"product_key": productKey,
			"tokens":      item.Tokens,
			"event_id":    msg.EventID,
		})
		return OutcomeProcessed, nil

	case "plan":
		return s.activatePlanFromCheckout(ctx, uow, workspaceID, item, &obj, msg.EventID)

	default:
		return "", apperr.Validation("catalog item %q has unknown kind %q", productKey, item.Kind)
	}
}

func (s *subscriptionService) activatePlanFromCheckout(ctx context.Context, uow unitofwork.UnitOfWork, workspaceID uuid.UUID, item *config.CatalogItem, obj *dto.CheckoutSessionObject, eventID string) (string, error) {
	// Period bounds come from the provider's subscription object; a transient
	// lookup failure is retried by the dispatcher.
	info, err := s.gateway.GetSubscription(ctx, obj.Subscription)
	if err != nil {
		return "", err
	}

	// The price actually subscribed is authoritative; the checkout reference
	// can lag a plan switch made on the payment page.
	if info.PriceID != "" {
		if key, byPrice, ok := s.catalog.ResolveByPriceID(info.PriceID); ok && byPrice.Kind == "plan" && byPrice.PlanSlug != item.PlanSlug {
			s.logger.Info("SUBSCRIPTION", "Subscribed price overrides checkout reference", map[string]interface{}{
				"workspace_id":  workspaceID,
				"reference_key": item.PlanSlug,
				"price_key":     key,
			})
			item = byPrice
		}
	}

	plan, err := s.catalog.GetPlanBySlug(ctx, item.PlanSlug)
	if err != nil {
		return "", err
	}

	sub, err := uow.SubscriptionRepository().FindOneSubscription(ctx,
		specification.ByWorkspace{WorkspaceID: workspaceID}, specification.ForUpdate{})
	if err != nil {
		return "", err
	}

	now := time.Now()
	isNew := sub == nil
	if isNew {
		sub = &entity.Subscription{
			Id:          uuid.New(),
			WorkspaceID: workspaceID,
			CreatedAt:   now,
		}
	} else if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == obj.Subscription && sub.Plan == plan.Slug {
		return OutcomeAlreadyPosted, nil
	}

	sub.Plan = plan.Slug
	sub.Status = entity.SubscriptionStatusActive
	sub.PendingPlan = nil
	sub.CurrentPeriodStart = info.CurrentPeriodStart
	sub.CurrentPeriodEnd = info.CurrentPeriodEnd
	sub.RenewalAttemptCount = 0
	sub.LastRenewalStatus = entity.RenewalStatusNever
	sub.AutoRenew = true
	sub.StripeSubscriptionID = &obj.Subscription
	if obj.Customer != "" {
		sub.StripeCustomerID = &obj.Customer
	}
	sub.UpdatedAt = now

	if isNew {
		err = uow.SubscriptionRepository().CreateSubscription(ctx, sub)
	} else {
		err = uow.SubscriptionRepository().UpdateSubscription(ctx, sub)
	}
	if err != nil {
		return "", err
	}

	s.audit.Record(ctx, uow, "webhook", "SUBSCRIPTION_ACTIVATED", "subscription", sub.Id.String(), map[string]interface{}{
		"workspace_id": workspaceID.String(),
		"plan":         plan.Slug,
		"event_id":     eventID,
	})
	return OutcomeProcessed, nil
}

// HandleInvoicePaid advances the billing period and grants the plan's token
// allowance. Invoices whose period does not extend the current one are
// ignored, so replays and out-of-order deliveries cannot rewind state.
func (s *subscriptionService) HandleInvoicePaid(ctx context.Context, uow unitofwork.UnitOfWork, msg *dto.DispatchMessage) (string, error) {
	var obj dto.InvoiceObject
	if err := json.Unmarshal(msg.Object, &obj); err != nil {
		return "", apperr.Validation("malformed invoice.paid payload: %v", err)
	}
	if obj.Subscription == "" {
		// One-off invoices carry no subscription and nothing to renew.
		return OutcomeStaleIgnored, nil
	}

	sub, err := s.findByStripeSubscription(ctx, uow, obj.Subscription, true)
	if err != nil {
		return "", err
	}
	if sub == nil {
		// No workspace is bound to this gateway subscription. Dead-lettered
		// for operator replay once the checkout event has landed.
		return "", apperr.MissingReference("subscription", obj.Subscription)
	}

	linePeriodEnd := obj.PeriodEnd
	for _, line := range obj.Lines.Data {
		if line.Period.End > linePeriodEnd {
			linePeriodEnd = line.Period.End
		}
	}
	newPeriodEnd := time.Unix(linePeriodEnd, 0).UTC()
	if !newPeriodEnd.After(sub.CurrentPeriodEnd) {
		s.logger.Info("SUBSCRIPTION", "Ignored stale invoice", map[string]interface{}{
			"invoice_id":     obj.ID,
			"period_end":     newPeriodEnd,
			"current_period": sub.CurrentPeriodEnd,
		})
		return OutcomeStaleIgnored, nil
	}

	now := time.Now()
	fromPlan := sub.Plan

	// A deferred downgrade becomes effective at the renewal boundary.
	if sub.PendingPlan != nil {
		if err := s.applyPendingChange(ctx, uow, sub, now); err != nil {
			return "", err
		}
	}

	plan, err := s.catalog.GetPlanBySlug(ctx, sub.Plan)
	if err != nil {
		return "", err
	}

	sub.Status = entity.SubscriptionStatusActive
	sub.CurrentPeriodStart = sub.CurrentPeriodEnd
	if sub.CurrentPeriodStart.After(now) || sub.CurrentPeriodStart.IsZero() {
		sub.CurrentPeriodStart = now
	}
	sub.CurrentPeriodEnd = newPeriodEnd
	sub.RenewalAttemptCount = 0
	sub.LastRenewalStatus = entity.RenewalStatusSuccess
	sub.UpdatedAt = now
	if err := uow.SubscriptionRepository().UpdateSubscription(ctx, sub); err != nil {
		return "", err
	}

	// The invoice id keys the grant, so a replayed event cannot double-credit.
	grantKey := "invoice:" + obj.ID
	grant := plan.TokenGrant
	if grant <= 0 {
		grant = s.cfg.Billing.DefaultTokenGrant
	}
	if _, _, err := s.ledger.ApplyWithin(ctx, uow, entity.WorkspaceOwner(sub.WorkspaceID),
		decimal.NewFromInt(grant), entity.TransactionTypePurchase,
		fmt.Sprintf("monthly token grant (%s)", plan.Slug), &grantKey, nil); err != nil {
		return "", err
	}

	s.audit.Record(ctx, uow, "webhook", "SUBSCRIPTION_RENEWED", "subscription", sub.Id.String(), map[string]interface{}{
		"workspace_id": sub.WorkspaceID.String(),
		"from_plan":    fromPlan,
		"plan":         sub.Plan,
		"period_end":   sub.CurrentPeriodEnd,
		"invoice_id":   obj.ID,
		"amount_paid":  money.FromMinorUnit(obj.AmountPaid, obj.Currency).String(),
	})
	return OutcomeProcessed, nil
}

// HandleInvoicePaymentFailed runs the dunning ladder: bounded retries in
// past_due, then a forced downgrade to the baseline plan.
func (s *subscriptionService) HandleInvoicePaymentFailed(ctx context.Context, uow unitofwork.UnitOfWork, msg *dto.DispatchMessage) (string, error) {
	var obj dto.InvoiceObject
	if err := json.Unmarshal(msg.Object, &obj); err != nil {
		return "", apperr.Validation("malformed invoice.payment_failed payload: %v", err)
	}
	if obj.Subscription == "" {
		return OutcomeStaleIgnored, nil
	}

	sub, err := s.findByStripeSubscription(ctx, uow, obj.Subscription, true)
	if err != nil {
		return "", err
	}
	if sub == nil {
		// Dunning notices trail the forced downgrade that already dropped
		// the gateway binding; there is nothing left to dun.
		return OutcomeStaleIgnored, nil
	}
	if sub.Status == entity.SubscriptionStatusCanceled {
		return OutcomeStaleIgnored, nil
	}

	now := time.Now()
	sub.RenewalAttemptCount++
	sub.UpdatedAt = now

	if sub.RenewalAttemptCount >= s.cfg.Billing.MaxRenewalAttempts {
		fromPlan := sub.Plan
		baseline, err := s.catalog.BaselinePlan(ctx)
		if err != nil {
			return "", err
		}
		sub.Plan = baseline.Slug
		sub.Status = entity.SubscriptionStatusCanceled
		sub.PendingPlan = nil
		sub.LastRenewalStatus = entity.RenewalStatusFailed
		sub.AutoRenew = false
		// The gateway binding is dropped so a future repurchase starts clean;
		// the customer reference stays for checkout prefill.
		sub.StripeSubscriptionID = nil
		if err := uow.SubscriptionRepository().UpdateSubscription(ctx, sub); err != nil {
			return "", err
		}
		if err := s.cancelOpenChange(ctx, uow, sub.Id, now); err != nil {
			return "", err
		}

		s.audit.Record(ctx, uow, "webhook", "SUBSCRIPTION_DOWNGRADED", "subscription", sub.Id.String(), map[string]interface{}{
			"workspace_id": sub.WorkspaceID.String(),
			"from_plan":    fromPlan,
			"to_plan":      baseline.Slug,
			"attempts":     sub.RenewalAttemptCount,
		})
		s.notifyDowngrade(sub.WorkspaceID, fromPlan, baseline.Slug)
		return OutcomeProcessed, nil
	}

	sub.Status = entity.SubscriptionStatusPastDue
	sub.LastRenewalStatus = entity.RenewalStatusRetry
	if err := uow.SubscriptionRepository().UpdateSubscription(ctx, sub); err != nil {
		return "", err
	}

	s.audit.Record(ctx, uow, "webhook", "RENEWAL_FAILED", "subscription", sub.Id.String(), map[string]interface{}{
		"workspace_id": sub.WorkspaceID.String(),
		"attempt":      sub.RenewalAttemptCount,
		"max_attempts": s.cfg.Billing.MaxRenewalAttempts,
		"invoice_id":   obj.ID,
	})
	s.notifyPaymentFailed(sub.WorkspaceID, sub.Plan, sub.RenewalAttemptCount)
	return OutcomeProcessed, nil
}

func (s *subscriptionService) HandleSubscriptionDeleted(ctx context.Context, uow unitofwork.UnitOfWork, msg *dto.DispatchMessage) (string, error) {
	var obj dto.SubscriptionObject
	if err := json.Unmarshal(msg.Object, &obj); err != nil {
		return "", apperr.Validation("malformed customer.subscription.deleted payload: %v", err)
	}

	sub, err := s.findByStripeSubscription(ctx, uow, obj.ID, true)
	if err != nil {
		return "", err
	}
	if sub == nil {
		// Nothing bound to this gateway id, e.g. the binding was already
		// dropped by the dunning ladder. Deletion is satisfied.
		return OutcomeAlreadyPosted, nil
	}
	if sub.Status == entity.SubscriptionStatusCanceled {
		return OutcomeAlreadyPosted, nil
	}

	now := time.Now()
	baseline, err := s.catalog.BaselinePlan(ctx)
	if err != nil {
		return "", err
	}

	fromPlan := sub.Plan
	sub.Plan = baseline.Slug
	sub.Status = entity.SubscriptionStatusCanceled
	sub.PendingPlan = nil
	sub.AutoRenew = false
	sub.UpdatedAt = now
	if err := uow.SubscriptionRepository().UpdateSubscription(ctx, sub); err != nil {
		return "", err
	}
	if err := s.cancelOpenChange(ctx, uow, sub.Id, now); err != nil {
		return "", err
	}

	s.audit.Record(ctx, uow, "webhook", "SUBSCRIPTION_CANCELED", "subscription", sub.Id.String(), map[string]interface{}{
		"workspace_id": sub.WorkspaceID.String(),
		"from_plan":    fromPlan,
	})
	return OutcomeProcessed, nil
}

// applyPendingChange flips the subscription to its pending plan and closes
// the open change request. Runs at the renewal boundary under the row lock.
func (s *subscriptionService) applyPendingChange(ctx context.Context, uow unitofwork.UnitOfWork, sub *entity.Subscription, now time.Time) error {
	target := *sub.PendingPlan
	if _, err := s.catalog.GetPlanBySlug(ctx, target); err != nil {
		return err
	}

	open, err := uow.PlanChangeRepository().FindOpenBySubscription(ctx, sub.Id)
	if err != nil {
		return err
	}
	if open != nil {
		open.Status = entity.PlanChangeStatusCompleted
		open.UpdatedAt = now
		if err := uow.PlanChangeRepository().Update(ctx, open); err != nil {
			return err
		}
	}

	s.audit.Record(ctx, uow, "system", "PLAN_CHANGE_APPLIED", "subscription", sub.Id.String(), map[string]interface{}{
		"from_plan": sub.Plan,
		"to_plan":   target,
	})
	sub.Plan = target
	sub.PendingPlan = nil
	return nil
}

func (s *subscriptionService) cancelOpenChange(ctx context.Context, uow unitofwork.UnitOfWork, subscriptionID uuid.UUID, now time.Time) error {
	open, err := uow.PlanChangeRepository().FindOpenBySubscription(ctx, subscriptionID)
	if err != nil || open == nil {
		return err
	}
	open.Status = entity.PlanChangeStatusCanceled
	open.UpdatedAt = now
	return uow.PlanChangeRepository().Update(ctx, open)
}

func (s *subscriptionService) RequestPlanChange(ctx context.Context, req *dto.PlanChangeRequestDTO) (*dto.PlanChangeResponse, error) {
	targetPlan, err := s.catalog.GetPlanBySlug(ctx, req.TargetPlan)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	sub, err := uow.SubscriptionRepository().FindOneSubscription(ctx,
		specification.ByWorkspace{WorkspaceID: req.WorkspaceID}, specification.ForUpdate{})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.MissingReference("subscription for workspace", req.WorkspaceID)
	}
	if sub.Plan == targetPlan.Slug {
		return nil, apperr.Validation("workspace is already on plan %q", targetPlan.Slug)
	}

	open, err := uow.PlanChangeRepository().FindOpenBySubscription(ctx, sub.Id)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, apperr.ErrPlanChangeConflict
	}

	currentPlan, err := s.catalog.GetPlanBySlug(ctx, sub.Plan)
	if err != nil {
		return nil, err
	}

	changeType := entity.PlanChangeTypeChange
	timing := entity.TimingImmediate
	switch {
	case targetPlan.Rank > currentPlan.Rank:
		changeType = entity.PlanChangeTypeUpgrade
	case targetPlan.Rank < currentPlan.Rank:
		// Downgrades keep the paid-for tier until the period ends.
		changeType = entity.PlanChangeTypeDowngrade
		timing = entity.TimingEndOfPeriod
	}
	if req.Timing == string(entity.TimingEndOfPeriod) {
		timing = entity.TimingEndOfPeriod
	}

	now := time.Now()
	change := &entity.PlanChangeRequest{
		Id:              uuid.New(),
		SubscriptionID:  sub.Id,
		FromPlan:        sub.Plan,
		ToPlan:          targetPlan.Slug,
		ChangeType:      changeType,
		EffectiveTiming: timing,
		Status:          entity.PlanChangeStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if timing == entity.TimingImmediate {
		change.Status = entity.PlanChangeStatusCompleted
		sub.Plan = targetPlan.Slug
		sub.PendingPlan = nil
	} else {
		pending := targetPlan.Slug
		sub.PendingPlan = &pending
	}
	sub.UpdatedAt = now

	if err := uow.PlanChangeRepository().Create(ctx, change); err != nil {
		return nil, err
	}
	if err := uow.SubscriptionRepository().UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, uow, "user", "PLAN_CHANGE_REQUESTED", "subscription", sub.Id.String(), map[string]interface{}{
		"from_plan": change.FromPlan,
		"to_plan":   change.ToPlan,
		"type":      string(changeType),
		"timing":    string(timing),
	})

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &dto.PlanChangeResponse{
		RequestId:       change.Id,
		FromPlan:        change.FromPlan,
		ToPlan:          change.ToPlan,
		ChangeType:      string(change.ChangeType),
		EffectiveTiming: string(change.EffectiveTiming),
		Status:          string(change.Status),
	}, nil
}

// ConfirmPendingChange applies a deferred plan change ahead of the renewal
// boundary, at the subscriber's request.
func (s *subscriptionService) ConfirmPendingChange(ctx context.Context, workspaceID uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	sub, err := uow.SubscriptionRepository().FindOneSubscription(ctx,
		specification.ByWorkspace{WorkspaceID: workspaceID}, specification.ForUpdate{})
	if err != nil {
		return err
	}
	if sub == nil {
		return apperr.MissingReference("subscription for workspace", workspaceID)
	}
	if sub.PendingPlan == nil {
		return apperr.ErrNotFound
	}

	now := time.Now()
	if err := s.applyPendingChange(ctx, uow, sub, now); err != nil {
		return err
	}
	sub.UpdatedAt = now
	if err := uow.SubscriptionRepository().UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *subscriptionService) CancelPendingChange(ctx context.Context, workspaceID uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	sub, err := uow.SubscriptionRepository().FindOneSubscription(ctx,
		specification.ByWorkspace{WorkspaceID: workspaceID}, specification.ForUpdate{})
	if err != nil {
		return err
	}
	if sub == nil {
		return apperr.MissingReference("subscription for workspace", workspaceID)
	}

	open, err := uow.PlanChangeRepository().FindOpenBySubscription(ctx, sub.Id)
	if err != nil {
		return err
	}
	if open == nil {
		return apperr.ErrNotFound
	}

	now := time.Now()
	open.Status = entity.PlanChangeStatusCanceled
	open.UpdatedAt = now
	if err := uow.PlanChangeRepository().Update(ctx, open); err != nil {
		return err
	}

	sub.PendingPlan = nil
	sub.UpdatedAt = now
	if err := uow.SubscriptionRepository().UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	s.audit.Record(ctx, uow, "user", "PLAN_CHANGE_CANCELED", "plan_change", open.Id.String(), map[string]interface{}{
		"from_plan": open.FromPlan,
		"to_plan":   open.ToPlan,
	})
	return uow.Commit()
}

func (s *subscriptionService) Status(ctx context.Context, workspaceID uuid.UUID) (*dto.SubscriptionStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := uow.SubscriptionRepository().FindOneSubscription(ctx, specification.ByWorkspace{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.ErrNotFound
	}

	now := time.Now()
	res := &dto.SubscriptionStatusResponse{
		SubscriptionId:     sub.Id,
		Plan:               sub.Plan,
		Status:             string(sub.Status),
		PendingPlan:        sub.PendingPlan,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		AutoRenew:          sub.AutoRenew,
		LastRenewalStatus:  string(sub.LastRenewalStatus),
		IsActive: sub.Status == entity.SubscriptionStatusActive ||
			sub.Status == entity.SubscriptionStatusTrialing ||
			sub.Status == entity.SubscriptionStatusPastDue,
	}
	if sub.CurrentPeriodEnd.After(now) {
		res.DaysRemaining = int(sub.CurrentPeriodEnd.Sub(now).Hours() / 24)
	}
	if sub.Status == entity.SubscriptionStatusPastDue {
		grace := sub.CurrentPeriodEnd.AddDate(0, 0, gracePeriodDays)
		res.GracePeriodEnd = &grace
	}
	return res, nil
}

// IssueRefund pushes a refund to the gateway and optionally claws back the
// tokens the payment granted. The clawback is keyed by the refund id, so a
// repeated call after a partial failure cannot double-debit.
func (s *subscriptionService) IssueRefund(ctx context.Context, actor string, req *dto.RefundRequest) (*dto.RefundResponse, error) {
	amount := money.Round(req.Amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("refund amount must be positive")
	}

	// Gateway round trip happens before any row lock is taken.
	refundID, err := s.gateway.CreateRefund(ctx, req.PaymentIntent, amount, req.Currency)
	if err != nil {
		return nil, err
	}

	if req.TokenClawback > 0 {
		ref := "refund:" + refundID
		if _, err := s.ledger.Adjust(ctx, actor, entity.WorkspaceOwner(req.WorkspaceID),
			decimal.NewFromInt(req.TokenClawback).Neg(), "refund clawback: "+req.Reason, &ref); err != nil {
			return nil, err
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()
	s.audit.Record(ctx, uow, actor, "REFUND_ISSUED", "workspace", req.WorkspaceID.String(), map[string]interface{}{
		"refund_id":      refundID,
		"payment_intent": req.PaymentIntent,
		"amount":         amount.String(),
		"currency":       req.Currency,
		"token_clawback": req.TokenClawback,
		"reason":         req.Reason,
	})
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &dto.RefundResponse{RefundID: refundID, Amount: amount, Currency: req.Currency}, nil
}

// CollectInvoice retries payment collection for an open invoice out of band.
// Subscription state moves only when the resulting invoice.paid webhook lands.
func (s *subscriptionService) CollectInvoice(ctx context.Context, actor, invoiceID string) (*dto.InvoiceCollectionResponse, error) {
	info, err := s.gateway.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !info.Paid {
		if info, err = s.gateway.PayInvoice(ctx, invoiceID); err != nil {
			return nil, err
		}
		uow := s.uowFactory.NewUnitOfWork(ctx)
		if err := uow.Begin(ctx); err != nil {
			return nil, err
		}
		defer uow.Rollback()
		s.audit.Record(ctx, uow, actor, "INVOICE_COLLECTED", "invoice", invoiceID, map[string]interface{}{
			"subscription": info.SubscriptionID,
			"amount_due":   info.AmountDue.String(),
			"currency":     info.Currency,
		})
		if err := uow.Commit(); err != nil {
			return nil, err
		}
	}
	return &dto.InvoiceCollectionResponse{
		InvoiceID: info.ID,
		Paid:      info.Paid,
		AmountDue: info.AmountDue,
		Currency:  info.Currency,
	}, nil
}

// Dunning emails are best-effort; the workspace email is the gateway
// customer's email which we do not store, so notifications go through the
// configured operations inbox when present.
func (s *subscriptionService) notifyPaymentFailed(workspaceID uuid.UUID, plan string, attempt int) {
	to := s.cfg.SMTP.Email
	if to == "" {
		return
	}
	if err := s.mailer.SendPaymentFailed(to, plan, attempt, s.cfg.Billing.MaxRenewalAttempts); err != nil {
		s.logger.Warn("SUBSCRIPTION", "Failed to send payment-failed email", map[string]interface{}{
			"workspace_id": workspaceID,
			"error":        err.Error(),
		})
	}
}

func (s *subscriptionService) notifyDowngrade(workspaceID uuid.UUID, fromPlan, toPlan string) {
	to := s.cfg.SMTP.Email
	if to == "" {
		return
	}
	if err := s.mailer.SendSubscriptionDowngraded(to, fromPlan, toPlan); err != nil {
		s.logger.Warn("SUBSCRIPTION", "Failed to send downgrade email", map[string]interface{}{
			"workspace_id": workspaceID,
			"error":        err.Error(),
		})
	}
}
