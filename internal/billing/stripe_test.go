package billing

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func testService() *stripeService {
	return newStripeService("whsec_test", PriceConfig{
		PremiumMonthlyPriceID: "price_month",
		PremiumYearlyPriceID:  "price_year",
	})
}

func TestPriceIDForPlan(t *testing.T) {
	s := testService()

	id, ok := s.PriceIDForPlan(PlanMonthly)
	assert.True(t, ok)
	assert.Equal(t, "price_month", id)

	id, ok = s.PriceIDForPlan(PlanYearly)
	assert.True(t, ok)
	assert.Equal(t, "price_year", id)

	_, ok = s.PriceIDForPlan("weekly")
	assert.False(t, ok)

	_, ok = newStripeService("", PriceConfig{}).PriceIDForPlan(PlanMonthly)
	assert.False(t, ok, "unconfigured price")
}

func TestTierForPriceID(t *testing.T) {
	s := testService()
	assert.Equal(t, domain.SubscriptionTierPremium, s.TierForPriceID("price_month"))
	assert.Equal(t, domain.SubscriptionTierPremium, s.TierForPriceID("price_year"))
	assert.Equal(t, domain.SubscriptionTierFree, s.TierForPriceID("price_other"))
}

func TestTierForSubscription(t *testing.T) {
	s := testService()

	sub := &stripe.Subscription{Items: &stripe.SubscriptionItemList{
		Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_year"}}},
	}}
	assert.Equal(t, domain.SubscriptionTierPremium, TierForSubscription(s, sub))
	assert.Equal(t, domain.SubscriptionTierFree, TierForSubscription(s, &stripe.Subscription{}))
	assert.Equal(t, domain.SubscriptionTierFree, TierForSubscription(s, nil))
}

func TestStatusFromStripe(t *testing.T) {
	tests := []struct {
		in      stripe.SubscriptionStatus
		want    domain.SubscriptionStatus
		premium bool
	}{
		{stripe.SubscriptionStatusActive, domain.SubscriptionStatusActive, true},
		{stripe.SubscriptionStatusTrialing, domain.SubscriptionStatusTrialing, true},
		{stripe.SubscriptionStatusPastDue, domain.SubscriptionStatusPastDue, false},
		{stripe.SubscriptionStatusUnpaid, domain.SubscriptionStatusUnpaid, false},
		{stripe.SubscriptionStatusCanceled, domain.SubscriptionStatusCanceled, false},
		{stripe.SubscriptionStatusIncompleteExpired, domain.SubscriptionStatusCanceled, false},
		{stripe.SubscriptionStatusIncomplete, domain.SubscriptionStatusInactive, false},
		{"something_new", domain.SubscriptionStatusInactive, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got := StatusFromStripe(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.premium, domain.IsPremium(domain.SubscriptionTierPremium, got))
		})
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	s := testService()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        "customer.subscription.updated",
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": map[string]any{"id": "sub_1"}},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := s.VerifyWebhookSignature(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, stripe.EventType("customer.subscription.updated"), event.Type)

	_, err = s.VerifyWebhookSignature(payload, fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()))
	assert.Error(t, err)
}
