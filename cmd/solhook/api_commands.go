package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solhook/client"
	"github.com/urfave/cli/v2"
)

func apiFlags() []cli.Flag {
	return append(listFlags(), &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Request timeout",
		Value: 10 * time.Second,
	})
}

func newClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(serverURL, nil, logger), nil
}

func listOptions(c *cli.Context) client.ListOptions {
	return client.ListOptions{
		Signature: c.String("signature"),
		Address:   c.String("address"),
		Limit:     c.Int("limit"),
		Offset:    c.Int("offset"),
	}
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	timeout := c.Duration("timeout")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func apiSolTransfersCommand() *cli.Command {
	return &cli.Command{
		Name:  "sol-transfers",
		Usage: "List whale transfers through the HTTP API",
		Flags: apiFlags(),
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(c)
			defer cancel()

			transfers, err := cl.ListSolTransfers(ctx, listOptions(c))
			if err != nil {
				return fmt.Errorf("failed to list sol transfers: %w", err)
			}
			if transfers == nil {
				transfers = []*client.SolTransfer{}
			}
			return writeRecords(c, transfers, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSIGNATURE\tSENDER\tRECEIVER\tAMOUNT (SOL)")
				for _, t := range transfers {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Signature, t.Sender, t.Receiver, t.AmountSOL.String())
				}
				w.Flush()
			})
		},
	}
}

func apiNFTSalesCommand() *cli.Command {
	return &cli.Command{
		Name:  "nft-sales",
		Usage: "List NFT sales through the HTTP API",
		Flags: apiFlags(),
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(c)
			defer cancel()

			sales, err := cl.ListNFTSales(ctx, listOptions(c))
			if err != nil {
				return fmt.Errorf("failed to list nft sales: %w", err)
			}
			if sales == nil {
				sales = []*client.NFTSale{}
			}
			return writeRecords(c, sales, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSIGNATURE\tMINT\tCOLLECTION\tPRICE (SOL)")
				for _, s := range sales {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Signature, s.MintAddress, s.Collection, s.PriceSOL.String())
				}
				w.Flush()
			})
		},
	}
}

func apiTokenTransfersCommand() *cli.Command {
	return &cli.Command{
		Name:  "token-transfers",
		Usage: "List token transfers through the HTTP API",
		Flags: apiFlags(),
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(c)
			defer cancel()

			transfers, err := cl.ListTokenTransfers(ctx, listOptions(c))
			if err != nil {
				return fmt.Errorf("failed to list token transfers: %w", err)
			}
			if transfers == nil {
				transfers = []*client.TokenTransfer{}
			}
			return writeRecords(c, transfers, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSIGNATURE\tTOKEN\tSENDER\tRECEIVER\tAMOUNT")
				for _, t := range transfers {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Signature, t.TokenSymbol, t.Sender, t.Receiver, t.Amount.String())
				}
				w.Flush()
			})
		},
	}
}

func apiTokensCommand() *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "Show the token table of a running server",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(c)
			defer cancel()

			tokens, err := cl.Tokens(ctx)
			if err != nil {
				return fmt.Errorf("failed to get tokens: %w", err)
			}
			return writeRecords(c, tokens, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SYMBOL\tMINT\tDECIMALS")
				for _, t := range tokens {
					fmt.Fprintf(w, "%s\t%s\t%d\n", t.Symbol, t.Mint, t.Decimals)
				}
				w.Flush()
			})
		},
	}
}
