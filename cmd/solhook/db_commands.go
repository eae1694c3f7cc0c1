package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solhook/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "signature",
			Aliases: []string{"s"},
			Usage:   "Filter by transaction signature",
		},
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Usage:   "Filter by an address on either side of the record",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of records",
			Value:   20,
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "Number of records to skip",
		},
		jqFlag(),
	}
}

func listParams(c *cli.Context) (db.ListParams, error) {
	limit := c.Int("limit")
	if limit < 1 || limit > 1000 {
		return db.ListParams{}, fmt.Errorf("limit must be between 1 and 1000")
	}
	if c.Int("offset") < 0 {
		return db.ListParams{}, fmt.Errorf("offset cannot be negative")
	}
	return db.ListParams{
		Signature: c.String("signature"),
		Address:   c.String("address"),
		Limit:     int32(limit),
		Offset:    int32(c.Int("offset")),
	}, nil
}

func dbSolTransfersCommand() *cli.Command {
	return &cli.Command{
		Name:    "sol-transfers",
		Usage:   "List persisted whale transfers",
		Aliases: []string{"whales"},
		Flags:   listFlags(),
		Action: func(c *cli.Context) error {
			params, err := listParams(c)
			if err != nil {
				return err
			}
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			transfers, err := store.ListSolTransfers(context.Background(), params)
			if err != nil {
				return fmt.Errorf("failed to list sol transfers: %w", err)
			}
			return writeSolTransfers(c, transfers)
		},
	}
}

func writeSolTransfers(c *cli.Context, transfers []*db.SolTransfer) error {
	if transfers == nil {
		transfers = []*db.SolTransfer{}
	}
	return writeRecords(c, transfers, func(out io.Writer) {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSIGNATURE\tSENDER\tRECEIVER\tAMOUNT (SOL)\tCREATED")
		for _, t := range transfers {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Signature, t.Sender, t.Receiver, t.AmountSOL.String(), formatTime(t.CreatedAt))
		}
		w.Flush()
		fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d transfers\n", len(transfers))
	})
}

func dbNFTSalesCommand() *cli.Command {
	return &cli.Command{
		Name:    "nft-sales",
		Usage:   "List persisted NFT sales",
		Aliases: []string{"sales"},
		Flags:   listFlags(),
		Action: func(c *cli.Context) error {
			params, err := listParams(c)
			if err != nil {
				return err
			}
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			sales, err := store.ListNFTSales(context.Background(), params)
			if err != nil {
				return fmt.Errorf("failed to list nft sales: %w", err)
			}
			return writeNFTSales(c, sales)
		},
	}
}

func writeNFTSales(c *cli.Context, sales []*db.NFTSale) error {
	if sales == nil {
		sales = []*db.NFTSale{}
	}
	return writeRecords(c, sales, func(out io.Writer) {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSIGNATURE\tMINT\tCOLLECTION\tSELLER\tBUYER\tPRICE (SOL)\tCREATED")
		for _, s := range sales {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.Signature, s.MintAddress, s.Collection, s.Seller, s.Buyer, s.PriceSOL.String(), formatTime(s.CreatedAt))
		}
		w.Flush()
		fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d sales\n", len(sales))
	})
}

func dbTokenTransfersCommand() *cli.Command {
	return &cli.Command{
		Name:    "token-transfers",
		Usage:   "List persisted token transfers",
		Aliases: []string{"tokens"},
		Flags:   listFlags(),
		Action: func(c *cli.Context) error {
			params, err := listParams(c)
			if err != nil {
				return err
			}
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			transfers, err := store.ListTokenTransfers(context.Background(), params)
			if err != nil {
				return fmt.Errorf("failed to list token transfers: %w", err)
			}
			return writeTokenTransfers(c, transfers)
		},
	}
}

func writeTokenTransfers(c *cli.Context, transfers []*db.TokenTransfer) error {
	if transfers == nil {
		transfers = []*db.TokenTransfer{}
	}
	return writeRecords(c, transfers, func(out io.Writer) {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSIGNATURE\tTOKEN\tSENDER\tRECEIVER\tAMOUNT\tCREATED")
		for _, t := range transfers {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Signature, t.TokenSymbol, t.Sender, t.Receiver, t.Amount.String(), formatTime(t.CreatedAt))
		}
		w.Flush()
		fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d transfers\n", len(transfers))
	})
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	closer := func() { pool.Close() }

	return store, closer, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
