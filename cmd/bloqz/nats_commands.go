package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	natspkg "github.com/bloqz/settle/service/nats"
)

func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Stream settlement events from JetStream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "durable",
				Usage: "Durable consumer name",
				Value: "bloqz-cli",
			},
			&cli.StringSliceFlag{
				Name:    "jq",
				Aliases: []string{"f"},
				Usage:   "jq filter; only events where every filter is truthy are printed (e.g., '.source == \"ramp\"')",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			publisher, err := natspkg.NewPublisher(c.String("nats-url"), cliLogger())
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer publisher.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			stop, err := publisher.Subscribe(ctx, c.String("durable"), func(ctx context.Context, event *natspkg.SettlementEvent) {
				if !matchesFilters(event, filters) {
					return
				}
				data, _ := json.Marshal(event)
				fmt.Println(string(data))
			})
			if err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}
			defer stop()

			fmt.Fprintf(os.Stderr, "subscribed to %s, waiting for events (Ctrl-C to stop)\n", natspkg.StreamSubjects)

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
			<-shutdown
			return nil
		},
	}
}

func compileJQFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// matchesFilters reports whether every jq filter returns a truthy value for
// the event. Events are round-tripped through JSON so the filters see the
// wire field names.
func matchesFilters(event *natspkg.SettlementEvent, filters []*gojq.Code) bool {
	if len(filters) == 0 {
		return true
	}

	data, err := json.Marshal(event)
	if err != nil {
		return false
	}
	var eventJSON interface{}
	if err := json.Unmarshal(data, &eventJSON); err != nil {
		return false
	}

	for _, code := range filters {
		iter := code.Run(eventJSON)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy follows jq semantics: false and null are falsy, everything else is
// truthy.
func isTruthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
