package temporal

import (
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SyncRequestsInput contains the input for a payment-request sync run.
type SyncRequestsInput struct {
	// GracePeriod delays expiry past the deadline so a payer mid-settlement
	// isn't cut off by a racing sync run.
	GracePeriod time.Duration `json:"grace_period"`
}

// SyncRequestsResult summarizes one sync run.
type SyncRequestsResult struct {
	Checked int     `json:"checked"`
	Expired int     `json:"expired"`
	Failed  int     `json:"failed"`
	Error   *string `json:"error,omitempty"`
}

// SyncRequestsWorkflow reconciles pending payment requests against their
// deadlines. The backend is the source of truth for request status; this
// workflow only flips requests whose deadline has passed to expired. It is
// triggered by a Temporal schedule at the configured sync interval.
//
// The workflow performs these steps:
// 1. List pending requests from the backend (ListPendingRequests activity)
// 2. Expire each request whose deadline has passed (ExpireRequest activity)
// 3. Record the run outcome (RecordSyncOutcome activity, best-effort)
func SyncRequestsWorkflow(ctx workflow.Context, input SyncRequestsInput) (*SyncRequestsResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SyncRequestsWorkflow started")

	startedAt := workflow.Now(ctx)
	result := &SyncRequestsResult{}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: List pending requests from the backend.
	var listResult *ListPendingRequestsResult
	err := workflow.ExecuteActivity(ctx, a.ListPendingRequests, ListPendingRequestsInput{}).Get(ctx, &listResult)
	if err != nil {
		errMsg := err.Error()
		result.Error = &errMsg
		recordSyncOutcome(ctx, "failed", result, workflow.Now(ctx).Sub(startedAt))
		return result, err
	}
	result.Checked = len(listResult.Requests)

	// Step 2: Expire each request whose deadline has passed. A single
	// request that can't be expired doesn't abort the run; the next sync
	// picks it up again.
	cutoff := workflow.Now(ctx).Add(-input.GracePeriod)
	for _, req := range listResult.Requests {
		if req.ExpiresAt == nil || !req.ExpiresAt.Before(cutoff) {
			continue
		}

		err := workflow.ExecuteActivity(ctx, a.ExpireRequest, ExpireRequestInput{RequestID: req.ID}).Get(ctx, nil)
		if err != nil {
			logger.Warn("failed to expire payment request", "request_id", req.ID, "error", err)
			result.Failed++
			continue
		}
		result.Expired++
	}

	logger.Info("SyncRequestsWorkflow completed",
		"checked", result.Checked,
		"expired", result.Expired,
		"failed", result.Failed,
	)

	// Step 3: Record the run outcome. Best-effort: the reconciliation work
	// is done by this point.
	recordSyncOutcome(ctx, "completed", result, workflow.Now(ctx).Sub(startedAt))

	return result, nil
}

func recordSyncOutcome(ctx workflow.Context, status string, result *SyncRequestsResult, elapsed time.Duration) {
	logger := workflow.GetLogger(ctx)
	input := RecordSyncOutcomeInput{
		Status:   status,
		Checked:  result.Checked,
		Expired:  result.Expired,
		Failed:   result.Failed,
		Duration: elapsed.Seconds(),
	}
	if err := workflow.ExecuteActivity(ctx, a.RecordSyncOutcome, input).Get(ctx, nil); err != nil {
		logger.Warn("failed to record sync outcome", "error", err)
	}
}
