// Package subscriptions sells the premium plan through Stripe and mirrors its state locally.
package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
	"github.com/joseph-ayodele/lumo-backend/internal/repository"
)

const (
	defaultSuccessURL = "lumo://subscription-success"
	defaultCancelURL  = "lumo://subscription-cancel"
	defaultReturnURL  = "lumo://settings"
)

type Config struct {
	MonthlyPriceID string
	YearlyPriceID  string
	TrialDays      int64
	WebhookSecret  string
}

// CheckoutRequest is the body of POST /subscriptions/checkout.
type CheckoutRequest struct {
	Plan       string `json:"plan"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
	Email      string `json:"email"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// Service handles subscription business logic.
type Service struct {
	billing Billing
	repo    repository.SubscriptionRepository
	cfg     Config
	logger  *slog.Logger
}

func NewService(billing Billing, repo repository.SubscriptionRepository, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TrialDays <= 0 {
		cfg.TrialDays = 3
	}
	return &Service{billing: billing, repo: repo, cfg: cfg, logger: logger}
}

// Checkout creates a hosted checkout session for the plan.
func (s *Service) Checkout(ctx context.Context, userID string, req CheckoutRequest) (CheckoutResponse, error) {
	plan := strings.ToLower(strings.TrimSpace(req.Plan))
	if plan == "" {
		plan = string(constants.PlanYearly)
	}
	v := common.NewValidator().Field("plan", plan, common.OneOf(string(constants.PlanMonthly), string(constants.PlanYearly)))
	if err := common.ValidateAndReturnError(v); err != nil {
		return CheckoutResponse{}, err
	}
	priceID := s.cfg.MonthlyPriceID
	if plan == string(constants.PlanYearly) {
		priceID = s.cfg.YearlyPriceID
	}
	if priceID == "" {
		return CheckoutResponse{}, common.NewAppError("CONFIG_ERROR",
			fmt.Sprintf("Stripe price ID for %s plan not configured", plan), common.ErrInternal)
	}

	success := req.SuccessURL
	if success == "" {
		success = defaultSuccessURL
	}
	cancel := req.CancelURL
	if cancel == "" {
		cancel = defaultCancelURL
	}

	sess, err := s.billing.NewCheckoutSession(ctx, CheckoutParams{
		UserID:     userID,
		Plan:       plan,
		PriceID:    priceID,
		TrialDays:  s.cfg.TrialDays,
		SuccessURL: success + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  cancel,
		Email:      req.Email,
	})
	if err != nil {
		s.logger.Error("billing.checkout.failed", "user_id", userID, "plan", plan, "error", err)
		return CheckoutResponse{}, billingError("Error creating checkout session", err)
	}
	s.logger.Info("billing.checkout.ok", "user_id", userID, "plan", plan, "session_id", sess.ID)
	return CheckoutResponse{CheckoutURL: sess.URL, SessionID: sess.ID}, nil
}

// HasActive reports whether the user has an active or trialing subscription.
func (s *Service) HasActive(ctx context.Context, userID string) (bool, error) {
	subs, err := s.repo.ListEntitled(ctx, userID)
	if err != nil {
		s.logger.Error("billing.status.failed", "user_id", userID, "error", err)
		return false, common.WrapError(err, "Error getting subscription status")
	}
	return len(subs) > 0, nil
}

// Portal creates a customer portal session and returns its URL.
func (s *Service) Portal(ctx context.Context, userID, returnURL string) (string, error) {
	customer, err := s.repo.CustomerID(ctx, userID)
	if err != nil {
		return "", err
	}
	if returnURL == "" {
		returnURL = defaultReturnURL
	}
	url, err := s.billing.NewPortalSession(ctx, customer, returnURL)
	if err != nil {
		s.logger.Error("billing.portal.failed", "user_id", userID, "error", err)
		return "", billingError("Error creating portal session", err)
	}
	return url, nil
}

var (
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
	errInvalidSignature     = common.NewAppError("INVALID_INPUT", "Invalid signature", common.ErrInvalidInput)
	errInvalidPayload       = common.NewAppError("INVALID_INPUT", "Invalid payload", common.ErrInvalidInput)
)

// HandleWebhook verifies and applies one billing event.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.cfg.WebhookSecret == "" {
		return common.NewAppError("CONFIG_ERROR", "Webhook secret not configured", errors.Join(common.ErrInternal, ErrWebhookNotConfigured))
	}
	event, err := s.billing.ConstructEvent(payload, signature)
	if err != nil {
		s.logger.Warn("billing.webhook.rejected", "error", err)
		if isSignatureError(err) {
			return errInvalidSignature
		}
		return errInvalidPayload
	}
	s.logger.Info("billing.webhook.received", "event_id", event.ID, "type", event.Type)

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := decode(event, &sess); err != nil {
			return err
		}
		return s.checkoutCompleted(ctx, &sess)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := decode(event, &sub); err != nil {
			return err
		}
		return s.setStatus(ctx, sub.ID, constants.MapStripeStatus(string(sub.Status)))

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := decode(event, &sub); err != nil {
			return err
		}
		return s.setStatus(ctx, sub.ID, constants.SubscriptionCancelled)

	case "invoice.payment_failed", "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := decode(event, &inv); err != nil {
			return err
		}
		if inv.Subscription == nil || inv.Subscription.ID == "" {
			return nil
		}
		status := constants.SubscriptionActive
		if event.Type == "invoice.payment_failed" {
			status = constants.SubscriptionPastDue
		}
		return s.setStatus(ctx, inv.Subscription.ID, status)

	default:
		s.logger.Debug("billing.webhook.ignored", "type", event.Type)
		return nil
	}
}

// checkoutCompleted records a paid checkout, cancelling any other live subscription of the user.
func (s *Service) checkoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	userID := sess.ClientReferenceID
	subID := ""
	if sess.Subscription != nil {
		subID = sess.Subscription.ID
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid || subID == "" {
		s.logger.Info("billing.checkout.unpaid", "user_id", userID, "payment_status", sess.PaymentStatus)
		return nil
	}
	if userID == "" {
		s.logger.Warn("billing.checkout.no_user", "subscription_id", subID)
		return nil
	}

	existing, err := s.repo.ListEntitled(ctx, userID)
	if err != nil {
		return common.WrapError(err, "list existing subscriptions")
	}
	for _, old := range existing {
		if old.StripeSubscriptionID == subID {
			continue
		}
		if err := s.billing.CancelSubscription(ctx, old.StripeSubscriptionID); err != nil {
			s.logger.Warn("billing.cancel_previous.failed", "user_id", userID,
				"subscription_id", old.StripeSubscriptionID, "error", err)
		}
		if _, err := s.repo.SetStatus(ctx, old.StripeSubscriptionID, constants.SubscriptionCancelled); err != nil {
			return common.WrapError(err, "cancel previous subscription")
		}
	}

	status, err := s.billing.SubscriptionStatus(ctx, subID)
	if err != nil {
		return common.UpstreamError("Failed to retrieve subscription", err)
	}
	plan := constants.PlanYearly
	if p := sess.Metadata["plan"]; p != "" {
		plan = constants.Plan(p)
	}
	var customer *string
	if sess.Customer != nil && sess.Customer.ID != "" {
		id := sess.Customer.ID
		customer = &id
	}

	if err := s.repo.Upsert(ctx, &entity.Subscription{
		UserID:               userID,
		StripeCustomerID:     customer,
		StripeSubscriptionID: subID,
		Status:               constants.MapStripeStatus(status),
		Plan:                 plan,
	}); err != nil {
		return common.WrapError(err, "save subscription")
	}
	s.logger.Info("billing.checkout.completed", "user_id", userID, "subscription_id", subID, "status", status)
	return nil
}

func (s *Service) setStatus(ctx context.Context, subscriptionID string, status constants.SubscriptionStatus) error {
	if subscriptionID == "" {
		return nil
	}
	n, err := s.repo.SetStatus(ctx, subscriptionID, status)
	if err != nil {
		return common.WrapError(err, "update subscription status")
	}
	s.logger.Info("billing.status.updated", "subscription_id", subscriptionID, "status", status, "rows", n)
	return nil
}

func decode(event stripe.Event, v any) error {
	if event.Data == nil {
		return errInvalidPayload
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return common.NewAppError("INVALID_INPUT", "Invalid payload", errors.Join(common.ErrInvalidInput, err))
	}
	return nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// billingError maps provider rejections to 400 and anything else to 500.
func billingError(prefix string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return common.NewAppError("INVALID_INPUT", "Stripe error: "+se.Msg, errors.Join(common.ErrInvalidInput, err))
	}
	return common.UpstreamError(prefix+": "+err.Error(), err)
}
