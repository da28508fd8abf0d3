package metrics

import "time"

// Outcomes of one job attempt.
const (
	JobOutcomeCompleted = "completed"
	JobOutcomeRetry     = "retry"
	JobOutcomeDead      = "dead"
)

// JobStarted marks an attempt in flight and records how long the job
// waited past its scheduled time.
func JobStarted(jobType string, scheduledAt time.Time) {
	JobsInFlight.WithLabelValues(jobType).Inc()
	if scheduledAt.IsZero() {
		return
	}
	if lag := time.Since(scheduledAt); lag > 0 {
		JobQueueLag.WithLabelValues(jobType).Observe(lag.Seconds())
	}
}

// JobFinished records the outcome of an attempt started with JobStarted.
func JobFinished(jobType, outcome string, duration time.Duration) {
	JobsInFlight.WithLabelValues(jobType).Dec()
	JobsTotal.WithLabelValues(jobType, outcome).Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobRetried records that a job is on its second or later attempt.
func JobRetried(jobType string) {
	JobRetriesTotal.WithLabelValues(jobType).Inc()
}
