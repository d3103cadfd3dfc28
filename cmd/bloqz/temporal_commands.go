package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bloqz/settle/service/temporal"
)

// syncScheduleID matches the schedule the worker creates on startup.
const syncScheduleID = "sync-payment-requests"

func temporalClient(c *cli.Context) (*temporal.Client, error) {
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		cliLogger(),
	)
}

func ensureScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "ensure-schedule",
		Usage: "Create or update the payment-request sync schedule",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Sync interval (e.g., 30s, 1m)",
				Value:   time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			interval := c.Duration("interval")
			if err := tc.EnsureRequestSyncSchedule(context.Background(), interval); err != nil {
				return err
			}

			fmt.Printf("✓ Sync schedule ensured\n")
			fmt.Printf("  Schedule ID: %s\n", syncScheduleID)
			fmt.Printf("  Interval:    %s\n", interval)
			return nil
		},
	}
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "describe-schedule",
		Usage: "Show the payment-request sync schedule",
		Action: func(c *cli.Context) error {
			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			handle := tc.SDKClient().ScheduleClient().GetHandle(context.Background(), syncScheduleID)
			desc, err := handle.Describe(context.Background())
			if err != nil {
				return fmt.Errorf("failed to describe schedule: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(desc.Schedule.Spec, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Schedule ID: %s\n", syncScheduleID)
			for _, interval := range desc.Schedule.Spec.Intervals {
				fmt.Printf("Interval:    %s\n", interval.Every)
			}
			fmt.Printf("Paused:      %t\n", desc.Schedule.State.Paused)
			fmt.Printf("Actions:     %d\n", desc.Info.NumActions)
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-schedule",
		Usage: "Delete the payment-request sync schedule",
		Action: func(c *cli.Context) error {
			tc, err := temporalClient(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer tc.Close()

			if err := tc.DeleteRequestSyncSchedule(context.Background()); err != nil {
				return err
			}

			fmt.Printf("✓ Sync schedule deleted\n")
			return nil
		},
	}
}
