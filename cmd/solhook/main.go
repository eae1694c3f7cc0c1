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
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solhook",
		Usage: "Solana webhook ingestion service CLI",
		Description: `A command-line tool for inspecting and exercising the solhook service.

Use this CLI to query persisted records, replay webhook payloads against a
running server, and follow record events on NATS.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					dbSolTransfersCommand(),
					dbNFTSalesCommand(),
					dbTokenTransfersCommand(),
				},
			},
			// HTTP API commands
			{
				Name:  "api",
				Usage: "Query a running server over HTTP",
				Subcommands: []*cli.Command{
					apiSolTransfersCommand(),
					apiNFTSalesCommand(),
					apiTokenTransfersCommand(),
					apiTokensCommand(),
				},
			},
			// Webhook replay commands
			{
				Name:  "webhook",
				Usage: "Webhook delivery commands",
				Subcommands: []*cli.Command{
					webhookSendCommand(),
				},
			},
			tokensCommand(),
			// NATS record streaming commands
			{
				Name:  "events",
				Usage: "Record event streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
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
				Name:    "server-url",
				Usage:   "solhook server URL",
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
}
