package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/bloqz/settle/client"
)

func cliLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func settleCommands() *cli.Command {
	return &cli.Command{
		Name:  "settle",
		Usage: "Settlement commands",
		Subcommands: []*cli.Command{
			sendCommand(),
			recordCommand(),
			rampURLCommand(),
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Submit a send intent through the settlement pipeline",
		ArgsUsage: "USER_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Recipient address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "Amount in human units (e.g., 0.5)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Token symbol (e.g., USDC, ETH, SOL)",
				Value: "USDC",
			},
			&cli.StringFlag{
				Name:  "network",
				Usage: "Network name",
				Value: "polygon",
			},
			&cli.StringFlag{
				Name:  "token-contract",
				Usage: "Token contract address (for non-native EVM tokens)",
			},
			&cli.StringFlag{
				Name:  "message-id",
				Usage: "Chat message ID to track against (generated if omitted)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("user ID is required")
			}
			userID := c.Args().Get(0)

			messageID := c.String("message-id")
			if messageID == "" {
				messageID = uuid.NewString()
			}

			cl := client.NewClient(c.String("server-url"), nil, cliLogger())
			settlement, err := cl.SubmitIntent(context.Background(), userID, messageID, &client.Intent{
				Kind:          "send",
				Network:       c.String("network"),
				ToAddress:     c.String("to"),
				AmountDecimal: c.String("amount"),
				TokenSymbol:   c.String("token"),
				TokenContract: c.String("token-contract"),
			})
			if err != nil {
				return fmt.Errorf("failed to submit intent: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(settlement, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if settlement.Success {
				fmt.Printf("✓ Settlement succeeded\n")
				fmt.Printf("  Message ID: %s\n", messageID)
				fmt.Printf("  Tx Hash:    %s\n", settlement.TxHash)
				fmt.Printf("  Network:    %s\n", settlement.Network)
				fmt.Printf("  Provider:   %s\n", settlement.Provider)
			} else {
				fmt.Printf("✗ Settlement failed\n")
				fmt.Printf("  Message ID: %s\n", messageID)
				fmt.Printf("  Error Kind: %s\n", settlement.ErrorKind)
				fmt.Printf("  Error:      %s\n", settlement.ErrorMessage)
			}
			return nil
		},
	}
}

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Aliases:   []string{"get"},
		Usage:     "Get the settlement record for a chat message",
		ArgsUsage: "MESSAGE_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("message ID is required")
			}

			cl := client.NewClient(c.String("server-url"), nil, cliLogger())
			record, err := cl.GetRecord(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get record: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(record, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Message ID:  %s\n", record.MessageID)
			fmt.Printf("Status:      %s\n", record.Status)
			fmt.Printf("Tx Hash:     %s\n", record.TxHash)
			fmt.Printf("Network:     %s\n", record.Network)
			fmt.Printf("Amount:      %s %s\n", record.Amount, record.TokenSymbol)
			fmt.Printf("Source:      %s\n", record.Source)
			if record.ExplorerURL != "" {
				fmt.Printf("Explorer:    %s\n", record.ExplorerURL)
			}
			if record.Achievement != "" {
				fmt.Printf("Achievement: %s\n", record.Achievement)
			}
			return nil
		},
	}
}

func rampURLCommand() *cli.Command {
	return &cli.Command{
		Name:  "ramp-url",
		Usage: "Build a hosted fiat on-ramp widget URL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "wallet",
				Usage:    "Destination wallet address",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "network",
				Usage: "Network name",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Crypto currency code",
			},
			&cli.StringFlag{
				Name:  "fiat-amount",
				Usage: "Fiat amount to prefill",
			},
			&cli.StringFlag{
				Name:  "fiat-currency",
				Usage: "Fiat currency code (e.g., USD)",
			},
		},
		Action: func(c *cli.Context) error {
			cl := client.NewClient(c.String("server-url"), nil, cliLogger())
			u, err := cl.RampWidgetURL(context.Background(), client.RampWidgetParams{
				WalletAddress: c.String("wallet"),
				Network:       c.String("network"),
				TokenSymbol:   c.String("token"),
				FiatAmount:    c.String("fiat-amount"),
				FiatCurrency:  c.String("fiat-currency"),
			})
			if err != nil {
				return fmt.Errorf("failed to build ramp URL: %w", err)
			}

			fmt.Println(u)
			return nil
		},
	}
}

func requestCommands() *cli.Command {
	return &cli.Command{
		Name:  "request",
		Usage: "Payment request commands",
		Subcommands: []*cli.Command{
			acceptRequestCommand(),
			declineRequestCommand(),
		},
	}
}

func acceptRequestCommand() *cli.Command {
	return &cli.Command{
		Name:      "accept",
		Usage:     "Accept (pay) a payment request",
		ArgsUsage: "REQUEST_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "Paying user ID",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("request ID is required")
			}

			cl := client.NewClient(c.String("server-url"), nil, cliLogger())
			settlement, err := cl.AcceptRequest(context.Background(), c.Args().Get(0), c.String("user"))
			if err != nil {
				return fmt.Errorf("failed to accept request: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(settlement, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("✓ Request accepted\n")
			fmt.Printf("  Tx Hash: %s\n", settlement.TxHash)
			fmt.Printf("  Network: %s\n", settlement.Network)
			return nil
		},
	}
}

func declineRequestCommand() *cli.Command {
	return &cli.Command{
		Name:      "decline",
		Usage:     "Decline a payment request",
		ArgsUsage: "REQUEST_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("request ID is required")
			}

			requestID := c.Args().Get(0)
			cl := client.NewClient(c.String("server-url"), nil, cliLogger())
			if err := cl.DeclineRequest(context.Background(), requestID); err != nil {
				return fmt.Errorf("failed to decline request: %w", err)
			}

			fmt.Printf("✓ Request declined\n")
			fmt.Printf("  Request ID: %s\n", requestID)
			return nil
		},
	}
}
