package gateway

import (
	"context"
	"errors"
	"time"

	"ad-studio-be/internal/pkg/apperr"
	"ad-studio-be/pkg/money"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/invoice"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"
)

// PaymentGateway is the outbound boundary to the payment provider. Responses
// are normalized into domain shapes: amounts in the major unit, provider IDs
// stored verbatim.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*SubscriptionInfo, error)
	GetInvoice(ctx context.Context, id string) (*InvoiceInfo, error)
	EnsureCustomer(ctx context.Context, existingID, email, name string) (string, error)
	PayInvoice(ctx context.Context, id string) (*InvoiceInfo, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amount decimal.Decimal, currency string) (string, error)
}

type CheckoutParams struct {
	CustomerID string
	PriceID    string
	Quantity   int64
	Mode       string // "payment" for token packs, "subscription" for plans
	SuccessURL string
	CancelURL  string
	Reference  string // client reference id carried through to webhooks
}

type CheckoutSession struct {
	ID  string
	URL string
}

type SubscriptionInfo struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

type InvoiceInfo struct {
	ID             string
	SubscriptionID string
	CustomerID     string
	AmountPaid     decimal.Decimal
	AmountDue      decimal.Decimal
	Currency       string
	Paid           bool
	PeriodEnd      time.Time
	PaymentIntent  string
}

// StripeGateway implements PaymentGateway over the Stripe API.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	mode := stripe.CheckoutSessionModePayment
	if p.Mode == "subscription" {
		mode = stripe.CheckoutSessionModeSubscription
	}
	qty := p.Quantity
	if qty <= 0 {
		qty = 1
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(qty),
			},
		},
		ClientReferenceID: stripe.String(p.Reference),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, normalizeErr(err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, id string) (*SubscriptionInfo, error) {
	sub, err := subscription.Get(id, nil)
	if err != nil {
		return nil, normalizeErr(err)
	}
	info := &SubscriptionInfo{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		info.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		info.PriceID = sub.Items.Data[0].Price.ID
	}
	return info, nil
}

func (g *StripeGateway) GetInvoice(ctx context.Context, id string) (*InvoiceInfo, error) {
	inv, err := invoice.Get(id, nil)
	if err != nil {
		return nil, normalizeErr(err)
	}
	return normalizeInvoice(inv), nil
}

func (g *StripeGateway) EnsureCustomer(ctx context.Context, existingID, email, name string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}
	c, err := customer.New(&stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	})
	if err != nil {
		return "", normalizeErr(err)
	}
	return c.ID, nil
}

func (g *StripeGateway) PayInvoice(ctx context.Context, id string) (*InvoiceInfo, error) {
	inv, err := invoice.Pay(id, nil)
	if err != nil {
		return nil, normalizeErr(err)
	}
	return normalizeInvoice(inv), nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, paymentIntentID string, amount decimal.Decimal, currency string) (string, error) {
	r, err := refund.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(money.ToMinorUnit(amount, currency)),
	})
	if err != nil {
		return "", normalizeErr(err)
	}
	return r.ID, nil
}

func normalizeInvoice(inv *stripe.Invoice) *InvoiceInfo {
	currency := string(inv.Currency)
	info := &InvoiceInfo{
		ID:         inv.ID,
		AmountPaid: money.FromMinorUnit(inv.AmountPaid, currency),
		AmountDue:  money.FromMinorUnit(inv.AmountDue, currency),
		Currency:   currency,
		Paid:       inv.Paid,
		PeriodEnd:  time.Unix(inv.PeriodEnd, 0).UTC(),
	}
	if inv.Subscription != nil {
		info.SubscriptionID = inv.Subscription.ID
	}
	if inv.Customer != nil {
		info.CustomerID = inv.Customer.ID
	}
	if inv.PaymentIntent != nil {
		info.PaymentIntent = inv.PaymentIntent.ID
	}
	return info
}

// normalizeErr maps provider transport failures to the transient class so the
// dispatcher can retry them; everything else surfaces as-is.
func normalizeErr(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		// ErrorTypeAPI covers connection failures as well as provider-side
		// errors; both are safe to retry.
		if stripeErr.Type == stripe.ErrorTypeAPI || stripeErr.HTTPStatusCode >= 500 {
			return apperr.Transient(err)
		}
	}
	return err
}

// VerifyWebhook checks the signature header against the shared secret and
// returns the decoded event envelope. A failure means the request never
// touches state. Endpoints may be pinned to any Stripe API version, so
// version mismatches are not treated as failures.
func VerifyWebhook(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, apperr.Validation("webhook verification failed: %v", err)
	}
	return event, nil
}
