package domain

import (
	"testing"

	"github.com/DukeRupert/chartwise/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate_Scenarios(t *testing.T) {
	jan1 := clock.MustParseDay("2024-01-01")
	jan2 := clock.MustParseDay("2024-01-02")

	tests := []struct {
		name      string
		premium   bool
		used      int
		lastReset clock.Day
		today     clock.Day
		want      Entitlement
	}{
		{
			name: "free with one left", used: 2, lastReset: jan1, today: jan1,
			want: Entitlement{Allowed: true, EffectiveUsed: 2, Remaining: 1, Limit: 3},
		},
		{
			name: "free on a new day", used: 2, lastReset: jan1, today: jan2,
			want: Entitlement{Allowed: true, EffectiveUsed: 0, Remaining: 3, Limit: 3, ResetNeeded: true},
		},
		{
			name: "free exhausted", used: 3, lastReset: jan1, today: jan1,
			want: Entitlement{Allowed: false, EffectiveUsed: 3, Remaining: 0, Limit: 3},
		},
		{
			name: "free over limit never goes negative", used: 7, lastReset: jan1, today: jan1,
			want: Entitlement{Allowed: false, EffectiveUsed: 7, Remaining: 0, Limit: 3},
		},
		{
			name: "premium ignores counter", premium: true, used: 5000, lastReset: jan1, today: jan1,
			want: Entitlement{Allowed: true, EffectiveUsed: 5000, Remaining: 999, Limit: 999, Unlimited: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.premium, tt.used, tt.lastReset, tt.today, DailyLimitFor(tt.premium))
			want := tt.want
			want.Day = tt.today
			assert.Equal(t, want, got)
		})
	}
}

func TestEvaluate_PremiumAlwaysAllowed(t *testing.T) {
	today := clock.MustParseDay("2024-06-15")
	for used := 0; used <= 2000; used += 37 {
		for _, last := range []clock.Day{today, today.AddDays(-1), today.AddDays(-400)} {
			e := Evaluate(true, used, last, today, PremiumDailySentinel)
			assert.True(t, e.Allowed, "used=%d last=%s", used, last)
		}
	}
}

func TestEvaluate_FreeDeniedAtLimit(t *testing.T) {
	today := clock.MustParseDay("2024-06-15")
	for used := FreeDailyAnalyses; used < 50; used++ {
		e := Evaluate(false, used, today, today, FreeDailyAnalyses)
		assert.False(t, e.Allowed, "used=%d", used)
		assert.Equal(t, 0, e.Remaining)
	}
}

func TestEvaluate_StaleDayResets(t *testing.T) {
	today := clock.MustParseDay("2024-06-15")
	for _, premium := range []bool{false, true} {
		for used := 0; used < 20; used++ {
			for _, offset := range []int{-1, -2, -365, 1} {
				e := Evaluate(premium, used, today.AddDays(offset), today, DailyLimitFor(premium))
				assert.True(t, e.ResetNeeded)
				assert.Equal(t, 0, e.EffectiveUsed)
				assert.True(t, e.Allowed)
			}
		}
	}
}

func TestUsageAccount_Evaluate(t *testing.T) {
	today := clock.MustParseDay("2024-01-01")
	acct := UsageAccount{AnalysesUsed: 1, LastResetDay: today}

	e := acct.Evaluate(today)
	assert.Equal(t, 2, e.Remaining)
	assert.False(t, e.Unlimited)

	acct.IsPremium = true
	e = acct.Evaluate(today)
	assert.True(t, e.Unlimited)
	assert.Equal(t, PremiumDailySentinel, e.Limit)
}

func TestGetTierQuota_UnknownFallsBackToFree(t *testing.T) {
	assert.Equal(t, FreeDailyAnalyses, GetTierQuota("enterprise").AnalysesPerDay)
	assert.True(t, GetTierQuota(SubscriptionTierPremium).UnlimitedAnalysis)
}
