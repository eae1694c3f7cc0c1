package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/brojonat/solhook/client"
	"github.com/brojonat/solhook/service/db"
	"github.com/urfave/cli/v2"
)

func webhookSendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Replay a webhook payload against the server",
		Description: `Post a payload file to the webhook endpoint for the given kind, exactly
as the upstream indexer would. Use "-" to read the payload from stdin.

Example:
  solhook webhook send --kind sol_transfer --file payload.json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "kind",
				Aliases:  []string{"k"},
				Usage:    "Record kind: sol_transfer, nft_sale or token_transfer",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Payload file (\"-\" for stdin)",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			kind, ok := db.ParseKind(c.String("kind"))
			if !ok {
				return fmt.Errorf("unknown kind %q", c.String("kind"))
			}

			payload, err := readPayload(c.App.Reader, c.String("file"))
			if err != nil {
				return err
			}

			cl, err := newClient(c)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(c)
			defer cancel()

			res, err := cl.SendWebhook(ctx, client.Kind(kind), payload)
			var whErr *client.WebhookError
			if errors.As(err, &whErr) {
				return fmt.Errorf("server answered %d: %s (request %s)", whErr.StatusCode, whErr.Message, whErr.RequestID)
			}
			if err != nil {
				return fmt.Errorf("failed to send webhook: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, res)
			}
			fmt.Fprintf(c.App.Writer, "%d %s\n", res.StatusCode, res.Message)
			if res.RequestID != "" {
				fmt.Fprintf(c.App.ErrWriter, "request id: %s\n", res.RequestID)
			}
			return nil
		},
	}
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}
