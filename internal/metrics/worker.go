package metrics

import "time"

// JobStarted marks a job as in flight.
func JobStarted(jobType string) {
	JobsInFlight.WithLabelValues(jobType).Inc()
}

// JobCompleted records a successful job completion.
func JobCompleted(jobType string, duration time.Duration) {
	JobsInFlight.WithLabelValues(jobType).Dec()
	JobsTotal.WithLabelValues(jobType, "completed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobFailed records a job failure. Permanent failures are not retried.
func JobFailed(jobType string, permanent bool) {
	JobsInFlight.WithLabelValues(jobType).Dec()
	status := "failed"
	if permanent {
		status = "failed_permanent"
	}
	JobsTotal.WithLabelValues(jobType, status).Inc()
}

// JobRetried records a job picked up again after an earlier failed attempt.
func JobRetried(jobType string) {
	JobRetriesTotal.WithLabelValues(jobType).Inc()
}
