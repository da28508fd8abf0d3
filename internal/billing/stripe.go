// Package billing provides Stripe billing integration for the premium plan.
package billing

import (
	"fmt"

	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Plan is a billing interval for the premium tier.
type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// Service defines the interface for billing operations.
type Service interface {
	// CreateCustomer creates a new Stripe customer and returns its ID.
	CreateCustomer(email, name, userID string) (string, error)

	// CreateCheckoutSession creates a Stripe Checkout session for subscribing.
	// Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(params CheckoutParams) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(customerID, returnURL string) (string, error)

	// GetSubscription retrieves a Stripe subscription by ID.
	GetSubscription(subscriptionID string) (*stripe.Subscription, error)

	// CancelSubscription sets a subscription to cancel at period end.
	CancelSubscription(subscriptionID string) error

	// ReactivateSubscription removes the cancel_at_period_end flag.
	ReactivateSubscription(subscriptionID string) error

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// PriceIDForPlan returns the configured price for a plan.
	PriceIDForPlan(plan Plan) (string, bool)

	// TierForPriceID returns the tier a Stripe price grants, or the free
	// tier for an unknown price.
	TierForPriceID(priceID string) domain.SubscriptionTier
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	SuccessURL string
	CancelURL  string
}

// PriceConfig holds the Stripe price IDs for the premium plan.
type PriceConfig struct {
	PremiumMonthlyPriceID string
	PremiumYearlyPriceID  string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	prices        PriceConfig
	priceToTier   map[string]domain.SubscriptionTier
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey
	return newStripeService(webhookSecret, prices)
}

func newStripeService(webhookSecret string, prices PriceConfig) *stripeService {
	priceToTier := make(map[string]domain.SubscriptionTier)
	if prices.PremiumMonthlyPriceID != "" {
		priceToTier[prices.PremiumMonthlyPriceID] = domain.SubscriptionTierPremium
	}
	if prices.PremiumYearlyPriceID != "" {
		priceToTier[prices.PremiumYearlyPriceID] = domain.SubscriptionTierPremium
	}

	return &stripeService{
		webhookSecret: webhookSecret,
		prices:        prices,
		priceToTier:   priceToTier,
	}
}

func (s *stripeService) CreateCustomer(email, name, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.AddMetadata("user_id", userID)
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UserID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CreatePortalSession(customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return sub, nil
}

func (s *stripeService) CancelSubscription(subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func (s *stripeService) ReactivateSubscription(subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe reactivate subscription: %w", err)
	}
	return nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) PriceIDForPlan(plan Plan) (string, bool) {
	var id string
	switch plan {
	case PlanMonthly:
		id = s.prices.PremiumMonthlyPriceID
	case PlanYearly:
		id = s.prices.PremiumYearlyPriceID
	}
	return id, id != ""
}

func (s *stripeService) TierForPriceID(priceID string) domain.SubscriptionTier {
	if tier, ok := s.priceToTier[priceID]; ok {
		return tier
	}
	return domain.SubscriptionTierFree
}

// StatusFromStripe maps a Stripe subscription status onto the statuses the
// entitlement check understands. Incomplete checkouts are not yet paid.
func StatusFromStripe(status stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return domain.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return domain.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusUnpaid:
		return domain.SubscriptionStatusUnpaid
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionStatusCanceled
	default:
		return domain.SubscriptionStatusInactive
	}
}

// TierForSubscription returns the tier granted by the first priced item of
// a subscription.
func TierForSubscription(svc Service, sub *stripe.Subscription) domain.SubscriptionTier {
	if sub == nil || sub.Items == nil {
		return domain.SubscriptionTierFree
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil {
			return svc.TierForPriceID(item.Price.ID)
		}
	}
	return domain.SubscriptionTierFree
}

var _ Service = (*stripeService)(nil)
