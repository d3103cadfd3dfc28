package temporal

import (
	"context"
	"time"
)

// Scheduler manages the Temporal schedule that drives payment-request
// reconciliation.
type Scheduler interface {
	// EnsureRequestSyncSchedule creates the sync schedule, or updates its
	// interval if it already exists.
	EnsureRequestSyncSchedule(ctx context.Context, interval time.Duration) error

	// DeleteRequestSyncSchedule deletes the sync schedule. This stops
	// pending requests from being expired.
	DeleteRequestSyncSchedule(ctx context.Context) error
}

// requestSyncScheduleID is the Temporal schedule ID for payment-request
// reconciliation. There is exactly one such schedule per deployment.
const requestSyncScheduleID = "sync-payment-requests"
