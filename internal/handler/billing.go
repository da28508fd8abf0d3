package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/chartwise/internal/auth"
	"github.com/DukeRupert/chartwise/internal/billing"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/service"
)

// BillingHandler handles premium subscription management backed by Stripe.
//
// Routes handled:
//   - GET  /api/billing             -> Status
//   - POST /api/billing/checkout    -> CreateCheckout
//   - POST /api/billing/portal      -> OpenPortal
//   - POST /api/billing/cancel      -> CancelSubscription
//   - POST /api/billing/reactivate  -> ReactivateSubscription
type BillingHandler struct {
	billing     billing.Service
	userService service.UserService
	baseURL     string
	logger      *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured.
func NewBillingHandler(billingService billing.Service, userService service.UserService, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:     billingService,
		userService: userService,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/billing", requireUser(http.HandlerFunc(h.Status)))
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/portal", requireUser(http.HandlerFunc(h.OpenPortal)))
	mux.Handle("POST /api/billing/cancel", requireUser(http.HandlerFunc(h.CancelSubscription)))
	mux.Handle("POST /api/billing/reactivate", requireUser(http.HandlerFunc(h.ReactivateSubscription)))
}

type checkoutRequest struct {
	Plan billing.Plan `json:"plan"`
}

type billingStatus struct {
	Tier              domain.SubscriptionTier   `json:"tier"`
	Status            domain.SubscriptionStatus `json:"status"`
	Premium           bool                      `json:"premium"`
	CancelAtPeriodEnd bool                      `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64                     `json:"current_period_end,omitempty"`
}

// Status returns the stored plan, refreshed with live period details from
// Stripe when a subscription exists.
func (h *BillingHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	status := billingStatus{
		Tier:    user.SubscriptionTier,
		Status:  user.SubscriptionStatus,
		Premium: user.IsPremium(),
	}

	if h.billing != nil && user.SubscriptionID != "" {
		sub, err := h.billing.GetSubscription(user.SubscriptionID)
		if err != nil {
			h.logger.Warn("failed to fetch stripe subscription", "error", err, "subscription_id", user.SubscriptionID)
		} else {
			status.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
			status.CurrentPeriodEnd = sub.CurrentPeriodEnd
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// CreateCheckout starts a Stripe Checkout session for the premium plan.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "BillingHandler.CreateCheckout"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if !h.requireBilling(w, r, op) {
		return
	}
	if user.IsPremium() {
		ErrorResponse(w, r, h.logger, domain.Conflict(op, "You already have an active premium subscription"))
		return
	}

	var req checkoutRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.Plan == "" {
		req.Plan = billing.PlanMonthly
	}

	priceID, ok := h.billing.PriceIDForPlan(req.Plan)
	if !ok {
		ValidationErrorResponse(w, r, h.logger, domain.NewValidationError(op, "plan", "Plan must be monthly or yearly"))
		return
	}

	customerID, err := h.ensureCustomer(r, user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	checkoutURL, err := h.billing.CreateCheckoutSession(billing.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		UserID:     user.ID.String(),
		SuccessURL: h.baseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.baseURL + "/billing",
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EPAYMENT, op, "Failed to start checkout"))
		return
	}

	h.logger.Info("checkout session created", "user_id", user.ID, "plan", req.Plan)
	writeJSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

// OpenPortal returns a Stripe Customer Portal URL.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	const op = "BillingHandler.OpenPortal"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if !h.requireBilling(w, r, op) {
		return
	}
	if user.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No billing account exists yet"))
		return
	}

	portalURL, err := h.billing.CreatePortalSession(user.StripeCustomerID, h.baseURL+"/billing")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EPAYMENT, op, "Failed to open billing portal"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": portalURL})
}

// CancelSubscription cancels at period end. Premium stays in effect until
// Stripe reports the subscription deleted.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.setCancelAtPeriodEnd(w, r, "BillingHandler.CancelSubscription", true)
}

// ReactivateSubscription undoes a pending cancellation.
func (h *BillingHandler) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	h.setCancelAtPeriodEnd(w, r, "BillingHandler.ReactivateSubscription", false)
}

func (h *BillingHandler) setCancelAtPeriodEnd(w http.ResponseWriter, r *http.Request, op string, cancel bool) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if !h.requireBilling(w, r, op) {
		return
	}
	if user.SubscriptionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "You do not have a subscription"))
		return
	}

	var err error
	if cancel {
		err = h.billing.CancelSubscription(user.SubscriptionID)
	} else {
		err = h.billing.ReactivateSubscription(user.SubscriptionID)
	}
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Wrap(err, domain.EPAYMENT, op, "Failed to update subscription"))
		return
	}

	h.logger.Info("subscription cancel flag changed", "user_id", user.ID, "cancel_at_period_end", cancel)
	writeJSON(w, http.StatusOK, map[string]bool{"cancel_at_period_end": cancel})
}

// ensureCustomer returns the user's Stripe customer, creating it on first
// checkout.
func (h *BillingHandler) ensureCustomer(r *http.Request, user *domain.User) (string, error) {
	const op = "BillingHandler.ensureCustomer"

	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	customerID, err := h.billing.CreateCustomer(user.Email, user.DisplayName(), user.ID.String())
	if err != nil {
		return "", domain.Wrap(err, domain.EPAYMENT, op, "Failed to create billing account")
	}
	if err := h.userService.UpdateStripeCustomer(r.Context(), user.ID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

func (h *BillingHandler) requireBilling(w http.ResponseWriter, r *http.Request, op string) bool {
	if h.billing != nil {
		return true
	}
	ErrorResponse(w, r, h.logger, domain.Errorf(domain.EUNAVAILABLE, op, "Billing is not configured"))
	return false
}
