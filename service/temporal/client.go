package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// EnsureRequestSyncSchedule creates the payment-request sync schedule, or
// updates its interval if one already exists.
func (c *Client) EnsureRequestSyncSchedule(ctx context.Context, interval time.Duration) error {
	c.logger.Debug("ensuring request sync schedule",
		"schedule_id", requestSyncScheduleID,
		"interval", interval,
	)

	handle := c.client.ScheduleClient().GetHandle(ctx, requestSyncScheduleID)
	_, err := handle.Describe(ctx)
	if err == nil {
		// Schedule exists; update the interval.
		err = handle.Update(ctx, client.ScheduleUpdateOptions{
			DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
				input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
					{Every: interval},
				}
				return &client.ScheduleUpdate{
					Schedule: &input.Description.Schedule,
				}, nil
			},
		})
		if err != nil {
			return fmt.Errorf("failed to update schedule %q: %w", requestSyncScheduleID, err)
		}
		c.logger.Info("request sync schedule updated",
			"schedule_id", requestSyncScheduleID,
			"interval", interval,
		)
		return nil
	}

	workflowAction := client.ScheduleWorkflowAction{
		ID:        "sync-payment-requests-run",
		Workflow:  "SyncRequestsWorkflow",
		TaskQueue: c.taskQueue,
		Args:      []interface{}{SyncRequestsInput{}},
	}

	_, err = c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: requestSyncScheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{
				{Every: interval},
			},
		},
		Action: &workflowAction,
		Memo: map[string]interface{}{
			"created_by": "settle",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule",
			"schedule_id", requestSyncScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", requestSyncScheduleID, err)
	}

	c.logger.Info("request sync schedule created",
		"schedule_id", requestSyncScheduleID,
		"interval", interval,
	)
	return nil
}

// DeleteRequestSyncSchedule deletes the payment-request sync schedule.
func (c *Client) DeleteRequestSyncSchedule(ctx context.Context) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, requestSyncScheduleID)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"schedule_id", requestSyncScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", requestSyncScheduleID, err)
	}

	c.logger.Info("request sync schedule deleted", "schedule_id", requestSyncScheduleID)
	return nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow
// operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
