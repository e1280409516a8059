package subscriptions

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/stripe/stripe-go/v76"
)

type fakeBilling struct {
	checkouts []CheckoutParams
	portals   []string
	cancelled []string
	statuses  map[string]string

	checkoutErr error
	cancelErr   error
	statusErr   error

	event    stripe.Event
	eventErr error
}

func (f *fakeBilling) NewCheckoutSession(_ context.Context, p CheckoutParams) (CheckoutSession, error) {
	f.checkouts = append(f.checkouts, p)
	if f.checkoutErr != nil {
		return CheckoutSession{}, f.checkoutErr
	}
	return CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (f *fakeBilling) NewPortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	f.portals = append(f.portals, customerID+"|"+returnURL)
	return "https://billing.stripe.test/p/" + customerID, nil
}

func (f *fakeBilling) SubscriptionStatus(_ context.Context, id string) (string, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if s, ok := f.statuses[id]; ok {
		return s, nil
	}
	return "", errors.New("no such subscription: " + id)
}

func (f *fakeBilling) CancelSubscription(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return f.cancelErr
}

func (f *fakeBilling) ConstructEvent(_ []byte, _ string) (stripe.Event, error) {
	return f.event, f.eventErr
}

func (f *fakeBilling) emit(typ, object string) {
	f.event = stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(typ),
		Data: &stripe.EventData{Raw: json.RawMessage(object)},
	}
}
