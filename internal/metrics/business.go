package metrics

import "time"

func planLabel(isPremium bool) string {
	if isPremium {
		return "premium"
	}
	return "free"
}

// EntitlementEvaluated records one policy decision
func EntitlementEvaluated(isPremium, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	EntitlementChecks.WithLabelValues(planLabel(isPremium), outcome).Inc()
}

// UsageReset records a counter rolled over to a new day
func UsageReset() {
	UsageResets.Inc()
}

// UsageCounted records a metered analysis
func UsageCounted(isPremium bool) {
	UsageRecorded.WithLabelValues(planLabel(isPremium)).Inc()
}

// UsageStoreFailed records a persistence failure in the usage store
func UsageStoreFailed(operation string) {
	UsageStoreErrors.WithLabelValues(operation).Inc()
}

// AICallCompleted records a successful provider call and its cost
func AICallCompleted(inputTokens, outputTokens, costCents int, duration time.Duration) {
	AIAPICalls.WithLabelValues("success").Inc()
	AITokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	AITokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	AICostCentsTotal.Add(float64(costCents))
	AIRequestDuration.Observe(duration.Seconds())
}

// AICallFailed records a failed provider call
func AICallFailed() {
	AIAPICalls.WithLabelValues("error").Inc()
}

// TicketCreated records a support ticket by priority
func TicketCreated(priority string) {
	SupportTicketsCreated.WithLabelValues(priority).Inc()
}

// ChartAnalyzed records the outcome of an analysis request
func ChartAnalyzed(status string) {
	ChartsAnalyzed.WithLabelValues(status).Inc()
}

// UserRegistered records a new account
func UserRegistered() {
	UsersRegistered.Inc()
}

// SubscriptionEvent records a handled billing webhook event
func SubscriptionEvent(eventType string) {
	SubscriptionEvents.WithLabelValues(eventType).Inc()
}
