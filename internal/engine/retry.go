package engine

import (
	"context"
	"time"

	"github.com/ytget/velora/internal/model"
)

// RetryPolicy bounds explicit re-invocation of retryable failures
type RetryPolicy struct {
	// Attempts is the total number of runs, at least 1
	Attempts int
	// Backoff is multiplied by the attempt number before each retry
	Backoff time.Duration
}

// DefaultRetryPolicy retries a retryable failure once after 2 seconds
var DefaultRetryPolicy = RetryPolicy{Attempts: 2, Backoff: 2 * time.Second}

// RunWithRetry runs desc and re-runs it while the failure is classified as
// retryable and attempts remain. Every attempt is a separate job-run with
// its own run ID; the last result is returned.
func (e *Engine) RunWithRetry(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent, policy RetryPolicy) model.JobResult {
	attempts := max(policy.Attempts, 1)

	var res model.JobResult
	for attempt := 1; ; attempt++ {
		res = e.Run(ctx, desc, events)
		if res.Outcome != model.OutcomeFailed || res.Err == nil || !res.Err.Retryable || attempt >= attempts {
			return res
		}

		delay := policy.Backoff * time.Duration(attempt)
		e.logger.Info("retrying job",
			"job", desc.ShortID(),
			"attempt", attempt+1,
			"of", attempts,
			"delay", delay,
			"kind", res.Err.Kind,
			"cause", res.Err.Cause)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return res
		}
	}
}
