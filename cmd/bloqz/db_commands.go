package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/bloqz/settle/service/db"
)

func openStore(c *cli.Context) (*db.Store, func(), error) {
	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db.NewStore(pool), pool.Close, nil
}

func listRecordsCommand() *cli.Command {
	return &cli.Command{
		Name:  "records",
		Usage: "List settlement records for a network",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "network",
				Aliases:  []string{"n"},
				Usage:    "Network name",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum records to return",
				Value:   20,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Records to skip",
			},
		},
		Action: func(c *cli.Context) error {
			store, closeFn, err := openStore(c)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := store.ListRecordsByNetwork(
				context.Background(),
				c.String("network"),
				int32(c.Int("limit")),
				int32(c.Int("offset")),
			)
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(records, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(records) == 0 {
				fmt.Println("No settlement records found")
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%s  %-8s %12s %-6s %-6s %s\n",
					rec.MessageID,
					rec.Status,
					rec.AmountDecimal,
					rec.TokenSymbol,
					rec.Source,
					rec.TxHash,
				)
			}
			fmt.Printf("\n%d record(s)\n", len(records))
			return nil
		},
	}
}

func getRecordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Get a settlement record by message ID",
		ArgsUsage: "MESSAGE_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("message ID is required")
			}

			store, closeFn, err := openStore(c)
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := store.GetRecord(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get record: %w", err)
			}

			data, _ := json.MarshalIndent(rec, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}
