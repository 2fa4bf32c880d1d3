package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/repository/contract"
	"ad-studio-be/internal/repository/specification"
	"ad-studio-be/internal/repository/unitofwork"
	"ad-studio-be/pkg/gateway"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory stand-in for Postgres. Entities are stored by
// value; Begin snapshots the maps so Rollback restores pre-transaction state
// the way the real unit of work does.
type fakeStore struct {
	mu          sync.Mutex
	accounts    map[uuid.UUID]entity.Account
	ledger      map[uuid.UUID]entity.LedgerTransaction
	receipts    map[uuid.UUID]entity.WebhookEventReceipt
	deadLetters map[uuid.UUID]entity.DeadLetterEntry
	plans       map[uuid.UUID]entity.Plan
	subs        map[uuid.UUID]entity.Subscription
	planChanges map[uuid.UUID]entity.PlanChangeRequest
	audits      []entity.AuditLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:    map[uuid.UUID]entity.Account{},
		ledger:      map[uuid.UUID]entity.LedgerTransaction{},
		receipts:    map[uuid.UUID]entity.WebhookEventReceipt{},
		deadLetters: map[uuid.UUID]entity.DeadLetterEntry{},
		plans:       map[uuid.UUID]entity.Plan{},
		subs:        map[uuid.UUID]entity.Subscription{},
		planChanges: map[uuid.UUID]entity.PlanChangeRequest{},
	}
}

func (s *fakeStore) snapshot() *fakeStore {
	cp := newFakeStore()
	for k, v := range s.accounts {
		cp.accounts[k] = v
	}
	for k, v := range s.ledger {
		cp.ledger[k] = v
	}
	for k, v := range s.receipts {
		cp.receipts[k] = v
	}
	for k, v := range s.deadLetters {
		cp.deadLetters[k] = v
	}
	for k, v := range s.plans {
		cp.plans[k] = v
	}
	for k, v := range s.subs {
		cp.subs[k] = v
	}
	for k, v := range s.planChanges {
		cp.planChanges[k] = v
	}
	cp.audits = append(cp.audits, s.audits...)
	return cp
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.accounts = snap.accounts
	s.ledger = snap.ledger
	s.receipts = snap.receipts
	s.deadLetters = snap.deadLetters
	s.plans = snap.plans
	s.subs = snap.subs
	s.planChanges = snap.planChanges
	s.audits = snap.audits
}

func (s *fakeStore) seedPlan(p entity.Plan) {
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	s.plans[p.Id] = p
}

// fakeFactory hands out fake units of work over one shared store.
type fakeFactory struct {
	store *fakeStore
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{store: newFakeStore()}
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{store: f.store}
}

type fakeUow struct {
	store *fakeStore
	snap  *fakeStore
}

func (u *fakeUow) Begin(ctx context.Context) error {
	u.store.mu.Lock()
	u.snap = u.store.snapshot()
	return nil
}

func (u *fakeUow) Commit() error {
	if u.snap != nil {
		u.snap = nil
		u.store.mu.Unlock()
	}
	return nil
}

func (u *fakeUow) Rollback() error {
	if u.snap != nil {
		u.store.restore(u.snap)
		u.snap = nil
		u.store.mu.Unlock()
	}
	return nil
}

func (u *fakeUow) AccountRepository() contract.AccountRepository {
	return &fakeAccountRepo{store: u.store}
}
func (u *fakeUow) LedgerRepository() contract.LedgerRepository {
	return &fakeLedgerRepo{store: u.store}
}
func (u *fakeUow) ReceiptRepository() contract.ReceiptRepository {
	return &fakeReceiptRepo{store: u.store}
}
func (u *fakeUow) DeadLetterRepository() contract.DeadLetterRepository {
	return &fakeDeadLetterRepo{store: u.store}
}
func (u *fakeUow) SubscriptionRepository() contract.SubscriptionRepository {
	return &fakeSubscriptionRepo{store: u.store}
}
func (u *fakeUow) PlanChangeRepository() contract.PlanChangeRepository {
	return &fakePlanChangeRepo{store: u.store}
}
func (u *fakeUow) AuditRepository() contract.AuditRepository {
	return &fakeAuditRepo{store: u.store}
}

// spec helpers shared by the fakes

type page struct {
	limit, offset int
	orderDesc     bool
	ordered       bool
}

func extractPage(specs []specification.Specification) page {
	p := page{limit: -1}
	for _, sp := range specs {
		switch s := sp.(type) {
		case specification.Pagination:
			p.limit = s.Limit
			p.offset = s.Offset
		case specification.OrderBy:
			p.ordered = true
			p.orderDesc = s.Desc
		}
	}
	return p
}

func paginate[T any](items []T, p page) []T {
	if p.offset > 0 {
		if p.offset >= len(items) {
			return nil
		}
		items = items[p.offset:]
	}
	if p.limit >= 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}

// Accounts

type fakeAccountRepo struct{ store *fakeStore }

func (r *fakeAccountRepo) Create(ctx context.Context, a *entity.Account) error {
	r.store.accounts[a.Id] = *a
	return nil
}

func (r *fakeAccountRepo) UpdateBalance(ctx context.Context, a *entity.Account) error {
	stored := r.store.accounts[a.Id]
	stored.Balance = a.Balance
	stored.UpdatedAt = a.UpdatedAt
	r.store.accounts[a.Id] = stored
	return nil
}

func (r *fakeAccountRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Account, error) {
	for _, a := range r.store.accounts {
		if accountMatches(a, specs) {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func accountMatches(a entity.Account, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch s := sp.(type) {
		case specification.ByOwner:
			if s.UserID != nil && (a.Owner.Kind != entity.OwnerKindUser || a.Owner.ID != *s.UserID) {
				return false
			}
			if s.WorkspaceID != nil && (a.Owner.Kind != entity.OwnerKindWorkspace || a.Owner.ID != *s.WorkspaceID) {
				return false
			}
		case specification.ByID:
			if a.Id != s.ID {
				return false
			}
		}
	}
	return true
}

// Ledger

type fakeLedgerRepo struct{ store *fakeStore }

func (r *fakeLedgerRepo) Create(ctx context.Context, tx *entity.LedgerTransaction) error {
	r.store.ledger[tx.Id] = *tx
	return nil
}

func (r *fakeLedgerRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.LedgerTransaction, error) {
	for _, tx := range r.store.ledger {
		if ledgerMatches(tx, specs) {
			cp := tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeLedgerRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LedgerTransaction, error) {
	var out []*entity.LedgerTransaction
	for _, tx := range r.store.ledger {
		if ledgerMatches(tx, specs) {
			cp := tx
			out = append(out, &cp)
		}
	}
	p := extractPage(specs)
	sort.Slice(out, func(i, j int) bool {
		if p.orderDesc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, p), nil
}

func (r *fakeLedgerRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

func ledgerMatches(tx entity.LedgerTransaction, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch s := sp.(type) {
		case specification.ByIdempotencyKey:
			if tx.IdempotencyKey == nil || *tx.IdempotencyKey != s.Key {
				return false
			}
		case specification.ByAccount:
			if tx.AccountId != s.AccountID {
				return false
			}
		case specification.FilterBy:
			if s.Field == "external_ref" {
				want, _ := s.Value.(string)
				if tx.ExternalRef == nil || *tx.ExternalRef != want {
					return false
				}
			}
		case specification.ByID:
			if tx.Id != s.ID {
				return false
			}
		}
	}
	return true
}

// Receipts

type fakeReceiptRepo struct{ store *fakeStore }

func (r *fakeReceiptRepo) Create(ctx context.Context, receipt *entity.WebhookEventReceipt) error {
	r.store.receipts[receipt.Id] = *receipt
	return nil
}

func (r *fakeReceiptRepo) Update(ctx context.Context, receipt *entity.WebhookEventReceipt) error {
	r.store.receipts[receipt.Id] = *receipt
	return nil
}

func (r *fakeReceiptRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.WebhookEventReceipt, error) {
	for _, rc := range r.store.receipts {
		if receiptMatches(rc, specs) {
			cp := rc
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeReceiptRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.WebhookEventReceipt, error) {
	var out []*entity.WebhookEventReceipt
	for _, rc := range r.store.receipts {
		if receiptMatches(rc, specs) {
			cp := rc
			out = append(out, &cp)
		}
	}
	p := extractPage(specs)
	sort.Slice(out, func(i, j int) bool {
		if p.orderDesc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, p), nil
}

func (r *fakeReceiptRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

func receiptMatches(rc entity.WebhookEventReceipt, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch s := sp.(type) {
		case specification.ByEventID:
			if rc.EventID != s.EventID {
				return false
			}
		case specification.ByID:
			if rc.Id != s.ID {
				return false
			}
		}
	}
	return true
}

// Dead letters

type fakeDeadLetterRepo struct{ store *fakeStore }

func (r *fakeDeadLetterRepo) Create(ctx context.Context, e *entity.DeadLetterEntry) error {
	r.store.deadLetters[e.Id] = *e
	return nil
}

func (r *fakeDeadLetterRepo) Update(ctx context.Context, e *entity.DeadLetterEntry) error {
	r.store.deadLetters[e.Id] = *e
	return nil
}

func (r *fakeDeadLetterRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeadLetterEntry, error) {
	for _, e := range r.store.deadLetters {
		if deadLetterMatches(e, specs) {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDeadLetterRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeadLetterEntry, error) {
	var out []*entity.DeadLetterEntry
	for _, e := range r.store.deadLetters {
		if deadLetterMatches(e, specs) {
			cp := e
			out = append(out, &cp)
		}
	}
	return paginate(out, extractPage(specs)), nil
}

func (r *fakeDeadLetterRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

func deadLetterMatches(e entity.DeadLetterEntry, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch s := sp.(type) {
		case specification.ByEventID:
			if e.EventID != s.EventID {
				return false
			}
		case specification.ByID:
			if e.Id != s.ID {
				return false
			}
		case specification.Unreplayed:
			if e.ReplayedAt != nil {
				return false
			}
		}
	}
	return true
}

// Subscriptions and plans

type fakeSubscriptionRepo struct{ store *fakeStore }

func (r *fakeSubscriptionRepo) CreatePlan(ctx context.Context, p *entity.Plan) error {
	r.store.plans[p.Id] = *p
	return nil
}

func (r *fakeSubscriptionRepo) UpdatePlan(ctx context.Context, p *entity.Plan) error {
	r.store.plans[p.Id] = *p
	return nil
}

func (r *fakeSubscriptionRepo) FindOnePlan(ctx context.Context, specs ...specification.Specification) (*entity.Plan, error) {
	for _, p := range r.store.plans {
		if planMatches(p, specs) {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriptionRepo) FindAllPlans(ctx context.Context, specs ...specification.Specification) ([]*entity.Plan, error) {
	var out []*entity.Plan
	for _, p := range r.store.plans {
		if planMatches(p, specs) {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func planMatches(p entity.Plan, specs []specification.Specification) bool {
	for _, sp := range specs {
		if s, ok := sp.(specification.FilterBy); ok {
			switch s.Field {
			case "slug":
				if p.Slug != s.Value.(string) {
					return false
				}
			case "is_active":
				if p.IsActive != s.Value.(bool) {
					return false
				}
			}
		}
	}
	return true
}

func (r *fakeSubscriptionRepo) CreateSubscription(ctx context.Context, sub *entity.Subscription) error {
	r.store.subs[sub.Id] = *sub
	return nil
}

func (r *fakeSubscriptionRepo) UpdateSubscription(ctx context.Context, sub *entity.Subscription) error {
	r.store.subs[sub.Id] = *sub
	return nil
}

func (r *fakeSubscriptionRepo) FindOneSubscription(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error) {
	for _, sub := range r.store.subs {
		if subscriptionMatches(sub, specs) {
			cp := sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriptionRepo) FindAllSubscriptions(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error) {
	var out []*entity.Subscription
	for _, sub := range r.store.subs {
		if subscriptionMatches(sub, specs) {
			cp := sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) CountActiveSubscribers(ctx context.Context) (int64, error) {
	var n int64
	for _, sub := range r.store.subs {
		if sub.Status == entity.SubscriptionStatusActive {
			n++
		}
	}
	return n, nil
}

func subscriptionMatches(sub entity.Subscription, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch s := sp.(type) {
		case specification.ByWorkspace:
			if sub.WorkspaceID != s.WorkspaceID {
				return false
			}
		case specification.ByID:
			if sub.Id != s.ID {
				return false
			}
		case specification.FilterBy:
			if s.Field == "stripe_subscription_id" {
				want, _ := s.Value.(string)
				if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID != want {
					return false
				}
			}
		}
	}
	return true
}

// Plan changes

type fakePlanChangeRepo struct{ store *fakeStore }

func (r *fakePlanChangeRepo) Create(ctx context.Context, req *entity.PlanChangeRequest) error {
	r.store.planChanges[req.Id] = *req
	return nil
}

func (r *fakePlanChangeRepo) Update(ctx context.Context, req *entity.PlanChangeRequest) error {
	r.store.planChanges[req.Id] = *req
	return nil
}

func (r *fakePlanChangeRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PlanChangeRequest, error) {
	for _, pc := range r.store.planChanges {
		if planChangeMatches(pc, specs) {
			cp := pc
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePlanChangeRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PlanChangeRequest, error) {
	var out []*entity.PlanChangeRequest
	for _, pc := range r.store.planChanges {
		if planChangeMatches(pc, specs) {
			cp := pc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePlanChangeRepo) FindOpenBySubscription(ctx context.Context, subscriptionId uuid.UUID) (*entity.PlanChangeRequest, error) {
	for _, pc := range r.store.planChanges {
		if pc.SubscriptionID == subscriptionId &&
			(pc.Status == entity.PlanChangeStatusPending || pc.Status == entity.PlanChangeStatusProcessing) {
			cp := pc
			return &cp, nil
		}
	}
	return nil, nil
}

func planChangeMatches(pc entity.PlanChangeRequest, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch s := sp.(type) {
		case specification.BySubscription:
			if pc.SubscriptionID != s.SubscriptionID {
				return false
			}
		case specification.ByID:
			if pc.Id != s.ID {
				return false
			}
		case specification.OpenPlanChanges:
			if pc.Status != entity.PlanChangeStatusPending && pc.Status != entity.PlanChangeStatusProcessing {
				return false
			}
		}
	}
	return true
}

// Audit

type fakeAuditRepo struct{ store *fakeStore }

func (r *fakeAuditRepo) Create(ctx context.Context, log *entity.AuditLog) error {
	r.store.audits = append(r.store.audits, *log)
	return nil
}

func (r *fakeAuditRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AuditLog, error) {
	out := make([]*entity.AuditLog, len(r.store.audits))
	for i := range r.store.audits {
		cp := r.store.audits[i]
		out[i] = &cp
	}
	return paginate(out, extractPage(specs)), nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.store.audits)), nil
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// spyLogger records warnings so tests can assert on operator-facing noise.
type spyLogger struct {
	nopLogger
	mu    sync.Mutex
	warns []string
}

func (l *spyLogger) Warn(module, message string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, message)
}

func (l *spyLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

// fakeGateway scripts provider responses.
type fakeRefund struct {
	paymentIntent string
	amount        decimal.Decimal
	currency      string
}

type fakeGateway struct {
	subscriptions map[string]*gateway.SubscriptionInfo
	invoices      map[string]*gateway.InvoiceInfo
	checkoutErr   error
	subErr        error
	refundErr     error
	sessions      []gateway.CheckoutParams
	refunds       []fakeRefund
	paidInvoices  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subscriptions: map[string]*gateway.SubscriptionInfo{},
		invoices:      map[string]*gateway.InvoiceInfo{},
	}
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, p gateway.CheckoutParams) (*gateway.CheckoutSession, error) {
	if g.checkoutErr != nil {
		return nil, g.checkoutErr
	}
	g.sessions = append(g.sessions, p)
	return &gateway.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, id string) (*gateway.SubscriptionInfo, error) {
	if g.subErr != nil {
		return nil, g.subErr
	}
	if info, ok := g.subscriptions[id]; ok {
		cp := *info
		return &cp, nil
	}
	return &gateway.SubscriptionInfo{
		ID:                 id,
		Status:             "active",
		CurrentPeriodStart: time.Now().Add(-time.Hour),
		CurrentPeriodEnd:   time.Now().Add(30 * 24 * time.Hour),
	}, nil
}

func (g *fakeGateway) GetInvoice(ctx context.Context, id string) (*gateway.InvoiceInfo, error) {
	if info, ok := g.invoices[id]; ok {
		cp := *info
		return &cp, nil
	}
	return &gateway.InvoiceInfo{ID: id, Paid: true, AmountPaid: decimal.NewFromInt(29)}, nil
}

func (g *fakeGateway) EnsureCustomer(ctx context.Context, existingID, email, name string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}
	return "cus_test_1", nil
}

func (g *fakeGateway) PayInvoice(ctx context.Context, id string) (*gateway.InvoiceInfo, error) {
	g.paidInvoices = append(g.paidInvoices, id)
	if info, ok := g.invoices[id]; ok {
		info.Paid = true
	}
	return g.GetInvoice(ctx, id)
}

func (g *fakeGateway) CreateRefund(ctx context.Context, paymentIntentID string, amount decimal.Decimal, currency string) (string, error) {
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunds = append(g.refunds, fakeRefund{paymentIntent: paymentIntentID, amount: amount, currency: currency})
	return fmt.Sprintf("re_test_%d", len(g.refunds)), nil
}

// fakeMailer records dunning notifications.
type fakeMailer struct {
	paymentFailed []string
	downgraded    []string
}

func (m *fakeMailer) SendPaymentFailed(toEmail, planName string, attempt, maxAttempts int) error {
	m.paymentFailed = append(m.paymentFailed, planName)
	return nil
}

func (m *fakeMailer) SendSubscriptionDowngraded(toEmail, fromPlan, toPlan string) error {
	m.downgraded = append(m.downgraded, toPlan)
	return nil
}

// fakeQueuePublisher captures re-enqueued retry payloads.
type fakeQueuePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *fakeQueuePublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}
