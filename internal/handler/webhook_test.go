package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DukeRupert/chartwise/internal/billing"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testWebhookSecret = "whsec_test_secret"

type subscriptionUpdate struct {
	userID uuid.UUID
	status domain.SubscriptionStatus
	tier   domain.SubscriptionTier
	subID  string
}

// webhookFixture records every subscription write the handler makes.
type webhookFixture struct {
	handler *WebhookHandler
	user    *domain.User
	updates []subscriptionUpdate
}

func newWebhookFixture(t *testing.T, user *domain.User) *webhookFixture {
	t.Helper()

	f := &webhookFixture{user: user}
	users := &mockUserService{
		GetByStripeCustomerIDFunc: func(ctx context.Context, customerID string) (*domain.User, error) {
			if f.user == nil || customerID != f.user.StripeCustomerID {
				return nil, domain.NotFound("UserService.GetByStripeCustomerID", "user", customerID)
			}
			return f.user, nil
		},
		UpdateSubscriptionFunc: func(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus, tier domain.SubscriptionTier, subID string) error {
			f.updates = append(f.updates, subscriptionUpdate{userID, status, tier, subID})
			return nil
		},
	}

	svc := billing.NewStripeService("sk_test_unused", testWebhookSecret, billing.PriceConfig{
		PremiumMonthlyPriceID: "price_monthly",
		PremiumYearlyPriceID:  "price_yearly",
	})
	f.handler = NewWebhookHandler(svc, users, newTestLogger())
	return f
}

func signedEvent(t *testing.T, eventType string, object map[string]any) *http.Request {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"id":          "evt_" + uuid.NewString()[:8],
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func subscriptionObject(status, priceID string) map[string]any {
	return map[string]any{
		"id":       "sub_123",
		"object":   "subscription",
		"customer": "cus_123",
		"status":   status,
		"items": map[string]any{
			"object": "list",
			"data": []any{
				map[string]any{"id": "si_1", "object": "subscription_item", "price": map[string]any{"id": priceID, "object": "price"}},
			},
		},
	}
}

func billingUser() *domain.User {
	u := testUser()
	u.StripeCustomerID = "cus_123"
	return u
}

func (f *webhookFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.HandleStripeWebhook(rec, req)
	return rec
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t, billingUser())

	req := signedEvent(t, "customer.subscription.updated", subscriptionObject("active", "price_monthly"))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	rec := f.serve(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.updates)
}

func TestWebhook_SubscriptionStatusMapping(t *testing.T) {
	tests := []struct {
		stripeStatus string
		priceID      string
		wantStatus   domain.SubscriptionStatus
		wantTier     domain.SubscriptionTier
		premium      bool
	}{
		{"active", "price_monthly", domain.SubscriptionStatusActive, domain.SubscriptionTierPremium, true},
		{"trialing", "price_yearly", domain.SubscriptionStatusTrialing, domain.SubscriptionTierPremium, true},
		{"past_due", "price_monthly", domain.SubscriptionStatusPastDue, domain.SubscriptionTierPremium, false},
		{"unpaid", "price_monthly", domain.SubscriptionStatusUnpaid, domain.SubscriptionTierPremium, false},
		{"canceled", "price_monthly", domain.SubscriptionStatusCanceled, domain.SubscriptionTierPremium, false},
		{"incomplete", "price_monthly", domain.SubscriptionStatusInactive, domain.SubscriptionTierPremium, false},
		{"active", "price_unknown", domain.SubscriptionStatusActive, domain.SubscriptionTierFree, false},
	}

	for _, tt := range tests {
		t.Run(tt.stripeStatus+"/"+tt.priceID, func(t *testing.T) {
			f := newWebhookFixture(t, billingUser())

			rec := f.serve(signedEvent(t, "customer.subscription.updated", subscriptionObject(tt.stripeStatus, tt.priceID)))

			require.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, f.updates, 1)
			got := f.updates[0]
			assert.Equal(t, f.user.ID, got.userID)
			assert.Equal(t, tt.wantStatus, got.status)
			assert.Equal(t, tt.wantTier, got.tier)
			assert.Equal(t, "sub_123", got.subID)
			assert.Equal(t, tt.premium, domain.IsPremium(got.tier, got.status))
		})
	}
}

func TestWebhook_CheckoutCompletedMakesPremium(t *testing.T) {
	f := newWebhookFixture(t, billingUser())

	rec := f.serve(signedEvent(t, "checkout.session.completed", map[string]any{
		"id":           "cs_test_1",
		"object":       "checkout.session",
		"customer":     "cus_123",
		"subscription": "sub_123",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.updates, 1)
	assert.Equal(t, domain.SubscriptionStatusActive, f.updates[0].status)
	assert.Equal(t, domain.SubscriptionTierPremium, f.updates[0].tier)
}

func TestWebhook_SubscriptionDeletedDowngrades(t *testing.T) {
	user := billingUser()
	user.SubscriptionTier = domain.SubscriptionTierPremium
	user.SubscriptionStatus = domain.SubscriptionStatusActive
	f := newWebhookFixture(t, user)

	rec := f.serve(signedEvent(t, "customer.subscription.deleted", subscriptionObject("canceled", "price_monthly")))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.updates, 1)
	assert.Equal(t, subscriptionUpdate{user.ID, domain.SubscriptionStatusCanceled, domain.SubscriptionTierFree, ""}, f.updates[0])
}

func TestWebhook_InvoiceEvents(t *testing.T) {
	invoice := map[string]any{"id": "in_1", "object": "invoice", "customer": "cus_123"}

	t.Run("payment failed marks past due", func(t *testing.T) {
		user := billingUser()
		user.SubscriptionID = "sub_123"
		user.SubscriptionTier = domain.SubscriptionTierPremium
		user.SubscriptionStatus = domain.SubscriptionStatusActive
		f := newWebhookFixture(t, user)

		f.serve(signedEvent(t, "invoice.payment_failed", invoice))

		require.Len(t, f.updates, 1)
		assert.Equal(t, domain.SubscriptionStatusPastDue, f.updates[0].status)
		assert.Equal(t, domain.SubscriptionTierPremium, f.updates[0].tier)
	})

	t.Run("payment succeeded recovers", func(t *testing.T) {
		user := billingUser()
		user.SubscriptionID = "sub_123"
		user.SubscriptionTier = domain.SubscriptionTierPremium
		user.SubscriptionStatus = domain.SubscriptionStatusPastDue
		f := newWebhookFixture(t, user)

		f.serve(signedEvent(t, "invoice.payment_succeeded", invoice))

		require.Len(t, f.updates, 1)
		assert.Equal(t, domain.SubscriptionStatusActive, f.updates[0].status)
	})

	t.Run("payment succeeded while active is a no-op", func(t *testing.T) {
		user := billingUser()
		user.SubscriptionID = "sub_123"
		user.SubscriptionStatus = domain.SubscriptionStatusActive
		f := newWebhookFixture(t, user)

		f.serve(signedEvent(t, "invoice.payment_succeeded", invoice))

		assert.Empty(t, f.updates)
	})

	t.Run("no subscription ignored", func(t *testing.T) {
		f := newWebhookFixture(t, billingUser())

		f.serve(signedEvent(t, "invoice.payment_failed", invoice))

		assert.Empty(t, f.updates)
	})
}

func TestWebhook_UnknownCustomerAcknowledged(t *testing.T) {
	f := newWebhookFixture(t, nil)

	rec := f.serve(signedEvent(t, "customer.subscription.updated", subscriptionObject("active", "price_monthly")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.updates)
}

func TestWebhook_UnhandledTypeAcknowledged(t *testing.T) {
	f := newWebhookFixture(t, billingUser())

	rec := f.serve(signedEvent(t, "customer.created", map[string]any{"id": "cus_123", "object": "customer"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.updates)
}

func TestWebhook_BillingNotConfigured(t *testing.T) {
	h := NewWebhookHandler(nil, &mockUserService{}, newTestLogger())

	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte("{}"))))

	assert.Equal(t, http.StatusOK, rec.Code)
}
