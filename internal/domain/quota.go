// Package domain contains core business types and interfaces.
//
// This file defines the daily analysis entitlement policy. It is a pure
// function of plan, stored counter and calendar day; the usage store in the
// service layer is the only code that persists counters.
package domain

import (
	"github.com/DukeRupert/chartwise/internal/clock"
	"github.com/google/uuid"
)

const (
	// FreeDailyAnalyses is the number of chart analyses a free account gets per day.
	FreeDailyAnalyses = 3

	// PremiumDailySentinel stands in for "unlimited". Callers must not do
	// arithmetic on a premium Remaining value.
	PremiumDailySentinel = 999
)

// TierQuota defines the daily limit for a subscription tier.
type TierQuota struct {
	AnalysesPerDay    int
	UnlimitedAnalysis bool
}

// TierQuotas maps subscription tiers to their quota limits.
var TierQuotas = map[SubscriptionTier]TierQuota{
	SubscriptionTierFree: {
		AnalysesPerDay: FreeDailyAnalyses,
	},
	SubscriptionTierPremium: {
		AnalysesPerDay:    PremiumDailySentinel,
		UnlimitedAnalysis: true,
	},
}

// GetTierQuota returns the quota for a tier, defaulting to free tier for unknown tiers.
func GetTierQuota(tier SubscriptionTier) TierQuota {
	if quota, ok := TierQuotas[tier]; ok {
		return quota
	}
	return TierQuotas[SubscriptionTierFree]
}

// DailyLimitFor returns the daily limit passed to Evaluate.
func DailyLimitFor(isPremium bool) int {
	tier := SubscriptionTierFree
	if isPremium {
		tier = SubscriptionTierPremium
	}
	return GetTierQuota(tier).AnalysesPerDay
}

// UsageAccount is the persisted usage state of one user.
//
// AnalysesUsed only counts for LastResetDay. Once the day has moved on the
// counter is stale and reads as zero.
type UsageAccount struct {
	UserID       uuid.UUID
	IsPremium    bool
	AnalysesUsed int
	LastResetDay clock.Day
}

// Entitlement is the outcome of evaluating an account against today.
type Entitlement struct {
	Allowed       bool `json:"allowed"`
	EffectiveUsed int  `json:"used"`
	Remaining     int  `json:"remaining"`
	Limit         int  `json:"limit"`
	Unlimited     bool `json:"unlimited"`
	ResetNeeded   bool `json:"-"`

	// Day is the accounting day the entitlement was evaluated for. Callers
	// report it rather than reading the clock again, which could land on
	// the next day.
	Day clock.Day `json:"-"`
}

// Evaluate decides whether one more metered action is allowed today.
//
// Denial is a normal return value, not an error.
func Evaluate(isPremium bool, analysesUsed int, lastReset, today clock.Day, dailyLimit int) Entitlement {
	e := Entitlement{
		Limit:     dailyLimit,
		Unlimited: isPremium,
		Day:       today,
	}

	if lastReset != today {
		e.ResetNeeded = true
		e.EffectiveUsed = 0
	} else {
		e.EffectiveUsed = max(analysesUsed, 0)
	}

	e.Allowed = isPremium || e.EffectiveUsed < dailyLimit

	if isPremium {
		e.Remaining = dailyLimit
	} else {
		e.Remaining = max(dailyLimit-e.EffectiveUsed, 0)
	}

	return e
}

// Evaluate applies the policy to the account using its own plan's limit.
func (a *UsageAccount) Evaluate(today clock.Day) Entitlement {
	return Evaluate(a.IsPremium, a.AnalysesUsed, a.LastResetDay, today, DailyLimitFor(a.IsPremium))
}
