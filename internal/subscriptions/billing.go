package subscriptions

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// CheckoutParams describes a hosted checkout for one subscription plan.
type CheckoutParams struct {
	UserID     string
	Plan       string
	PriceID    string
	TrialDays  int64
	SuccessURL string
	CancelURL  string
	Email      string
}

// CheckoutSession is the part of a created checkout the client needs.
type CheckoutSession struct {
	ID  string
	URL string
}

// Billing is the billing provider surface. StripeBilling implements it.
type Billing interface {
	NewCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error)
	NewPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	SubscriptionStatus(ctx context.Context, subscriptionID string) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type StripeBilling struct {
	api           *client.API
	webhookSecret string
}

func NewStripeBilling(secretKey, webhookSecret string) *StripeBilling {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeBilling{api: api, webhookSecret: webhookSecret}
}

func (b *StripeBilling) NewCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(p.TrialDays),
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.UserID),
	}
	if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", p.UserID)
	params.AddMetadata("plan", p.Plan)

	sess, err := b.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, err
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (b *StripeBilling) NewPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := b.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

func (b *StripeBilling) SubscriptionStatus(ctx context.Context, subscriptionID string) (string, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := b.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return "", err
	}
	return string(sub.Status), nil
}

func (b *StripeBilling) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := b.api.Subscriptions.Cancel(subscriptionID, params)
	return err
}

// ConstructEvent verifies the Stripe-Signature header and decodes the event.
func (b *StripeBilling) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, b.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}
