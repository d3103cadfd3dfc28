package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloqz/settle/service/backend"
	"github.com/bloqz/settle/service/metrics"
)

// ListPendingRequestsInput contains parameters for the ListPendingRequests
// activity. Empty today; kept as a struct so the activity signature survives
// adding filters.
type ListPendingRequestsInput struct{}

// ListPendingRequestsResult contains the pending requests the backend knows
// about.
type ListPendingRequestsResult struct {
	Requests []*backend.PaymentRequest `json:"requests"`
}

// ExpireRequestInput contains parameters for the ExpireRequest activity.
type ExpireRequestInput struct {
	RequestID string `json:"request_id"`
}

// RecordSyncOutcomeInput contains the summary of a completed sync run.
type RecordSyncOutcomeInput struct {
	Status   string  `json:"status"`
	Checked  int     `json:"checked"`
	Expired  int     `json:"expired"`
	Failed   int     `json:"failed"`
	Duration float64 `json:"duration_seconds"`
}

// RequestBackend defines the backend operations needed by activities.
// This allows for easy mocking in tests.
type RequestBackend interface {
	ListPaymentRequests(ctx context.Context, status string) ([]*backend.PaymentRequest, error)
	MarkRequestExpired(ctx context.Context, id string) error
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	backend RequestBackend
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(b RequestBackend, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		backend: b,
		metrics: m,
		logger:  logger,
	}
}

// ListPendingRequests fetches all pending payment requests from the backend.
func (a *Activities) ListPendingRequests(ctx context.Context, input ListPendingRequestsInput) (*ListPendingRequestsResult, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("ListPendingRequests", status, time.Since(start).Seconds())
		}
	}()

	requests, err := a.backend.ListPaymentRequests(ctx, backend.RequestStatusPending)
	if err != nil {
		status = "error"
		a.logger.ErrorContext(ctx, "failed to list pending payment requests", "error", err)
		return nil, fmt.Errorf("failed to list pending payment requests: %w", err)
	}

	a.logger.DebugContext(ctx, "listed pending payment requests", "count", len(requests))
	return &ListPendingRequestsResult{Requests: requests}, nil
}

// ExpireRequest transitions a payment request to expired on the backend.
// The backend rejects the transition for terminal requests, which this
// activity treats as success: someone accepted or declined between the list
// and the expiry.
func (a *Activities) ExpireRequest(ctx context.Context, input ExpireRequestInput) error {
	start := time.Now()
	status := "ok"
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("ExpireRequest", status, time.Since(start).Seconds())
		}
	}()

	err := a.backend.MarkRequestExpired(ctx, input.RequestID)
	if err != nil {
		if backend.IsConflict(err) {
			a.logger.DebugContext(ctx, "payment request already terminal, skipping expiry",
				"request_id", input.RequestID,
			)
			if a.metrics != nil {
				a.metrics.RecordRequestAction("expire", "already_terminal")
			}
			return nil
		}
		status = "error"
		a.logger.ErrorContext(ctx, "failed to expire payment request",
			"request_id", input.RequestID,
			"error", err,
		)
		if a.metrics != nil {
			a.metrics.RecordRequestAction("expire", "error")
		}
		return fmt.Errorf("failed to expire payment request %s: %w", input.RequestID, err)
	}

	a.logger.InfoContext(ctx, "expired payment request", "request_id", input.RequestID)
	if a.metrics != nil {
		a.metrics.RecordRequestAction("expire", "success")
	}
	return nil
}

// RecordSyncOutcome records the outcome of a sync run. Logging and metrics
// only; never fails the workflow.
func (a *Activities) RecordSyncOutcome(ctx context.Context, input RecordSyncOutcomeInput) error {
	if a.metrics != nil {
		a.metrics.RecordWorkflowDuration("SyncRequestsWorkflow", input.Status, input.Duration)
	}

	a.logger.InfoContext(ctx, "payment request sync run recorded",
		"status", input.Status,
		"checked", input.Checked,
		"expired", input.Expired,
		"failed", input.Failed,
		"duration_seconds", input.Duration,
	)
	return nil
}
