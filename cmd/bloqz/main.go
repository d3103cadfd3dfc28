package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "bloqz",
		Usage: "Transaction settlement service CLI",
		Description: `A command-line tool for managing and debugging the settlement service.

Use this CLI to submit test settlements, inspect settlement records, stream
settlement events, and manage the request sync schedule.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Settlement commands (HTTP API)
			settleCommands(),
			// Payment request commands (HTTP API)
			requestCommands(),
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					listRecordsCommand(),
					getRecordCommand(),
				},
			},
			// NATS settlement streaming commands
			{
				Name:  "nats",
				Usage: "NATS settlement streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			// Temporal schedule management commands
			{
				Name:  "temporal",
				Usage: "Temporal schedule management commands",
				Subcommands: []*cli.Command{
					ensureScheduleCommand(),
					describeScheduleCommand(),
					deleteScheduleCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "settle-request-sync",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Settlement server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
