package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/chartwise/internal/billing"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/metrics"
	"github.com/DukeRupert/chartwise/internal/service"
	"github.com/stripe/stripe-go/v79"
)

// maxWebhookBodySize bounds Stripe event payloads.
const maxWebhookBodySize = 65536

// WebhookHandler applies Stripe billing events to user subscriptions. It is
// the only writer of subscription tier and status, and so the only thing
// that can make a user premium.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// The route is public; requests are authenticated by signature.
type WebhookHandler struct {
	billing     billing.Service
	userService service.UserService
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, userService service.UserService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:     billingService,
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies and dispatches a Stripe event. Events that
// fail to apply are logged and acknowledged; Stripe re-sends the state on
// the next subscription event.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)
	metrics.SubscriptionEvent(string(event.Type))

	// Processing must not depend on the sender keeping the connection open.
	ctx := context.WithoutCancel(r.Context())

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		h.processSubscriptionEvent(ctx, event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		h.handlePaymentSucceeded(ctx, event)
	case "invoice.payment_failed":
		h.handlePaymentFailed(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return
	}

	if session.Customer == nil || session.Subscription == nil {
		h.logger.Warn("checkout session missing customer or subscription", "session_id", session.ID)
		return
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, session.Customer.ID)
	if err != nil {
		h.logger.Info("user not found by customer ID, waiting for subscription event",
			"customer_id", session.Customer.ID, "subscription_id", session.Subscription.ID)
		return
	}

	// A completed checkout only exists for the premium price.
	if err := h.userService.UpdateSubscription(ctx, user.ID,
		domain.SubscriptionStatusActive, domain.SubscriptionTierPremium, session.Subscription.ID); err != nil {
		h.logger.Error("failed to update subscription on checkout", "error", err, "user_id", user.ID)
		return
	}

	h.logger.Info("checkout completed", "user_id", user.ID, "subscription_id", session.Subscription.ID)
}

func (h *WebhookHandler) processSubscriptionEvent(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err, "type", event.Type)
		return
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID, "type", event.Type)
		return
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		h.logger.Warn("user not found for subscription event",
			"customer_id", sub.Customer.ID, "subscription_id", sub.ID, "type", event.Type)
		return
	}

	tier := billing.TierForSubscription(h.billing, &sub)
	status := billing.StatusFromStripe(sub.Status)

	if err := h.userService.UpdateSubscription(ctx, user.ID, status, tier, sub.ID); err != nil {
		h.logger.Error("failed to update subscription", "error", err, "user_id", user.ID, "type", event.Type)
		return
	}

	h.logger.Info("subscription event processed",
		"user_id", user.ID, "type", event.Type, "status", status, "tier", tier)
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription deleted event missing customer", "subscription_id", sub.ID)
		return
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		h.logger.Warn("user not found for subscription deletion", "customer_id", sub.Customer.ID)
		return
	}

	if err := h.userService.UpdateSubscription(ctx, user.ID,
		domain.SubscriptionStatusCanceled, domain.SubscriptionTierFree, ""); err != nil {
		h.logger.Error("failed to deactivate subscription", "error", err, "user_id", user.ID)
		return
	}

	h.logger.Info("subscription deleted", "user_id", user.ID, "subscription_id", sub.ID)
}

func (h *WebhookHandler) handlePaymentSucceeded(ctx context.Context, event stripe.Event) {
	user := h.invoiceUser(ctx, event)
	if user == nil || user.SubscriptionID == "" {
		return
	}

	// Recovery from past_due.
	if user.SubscriptionStatus != domain.SubscriptionStatusActive {
		if err := h.userService.UpdateSubscription(ctx, user.ID,
			domain.SubscriptionStatusActive, user.SubscriptionTier, user.SubscriptionID); err != nil {
			h.logger.Error("failed to reactivate on payment success", "error", err, "user_id", user.ID)
		}
	}
}

func (h *WebhookHandler) handlePaymentFailed(ctx context.Context, event stripe.Event) {
	user := h.invoiceUser(ctx, event)
	if user == nil || user.SubscriptionID == "" {
		return
	}

	if err := h.userService.UpdateSubscription(ctx, user.ID,
		domain.SubscriptionStatusPastDue, user.SubscriptionTier, user.SubscriptionID); err != nil {
		h.logger.Error("failed to set past_due on payment failure", "error", err, "user_id", user.ID)
		return
	}

	h.logger.Warn("payment failed", "user_id", user.ID)
}

func (h *WebhookHandler) invoiceUser(ctx context.Context, event stripe.Event) *domain.User {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice event", "error", err, "type", event.Type)
		return nil
	}
	if invoice.Customer == nil {
		return nil
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, invoice.Customer.ID)
	if err != nil {
		h.logger.Debug("user not found for invoice event", "customer_id", invoice.Customer.ID, "type", event.Type)
		return nil
	}
	return user
}
