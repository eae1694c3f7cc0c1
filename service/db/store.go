package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Table names written by the ingestion handlers.
const (
	TableSolTransfers   = "sol_transfers"
	TableNFTSales       = "nft_sales"
	TableTokenTransfers = "token_transfers"
)

// Amount columns are NUMERIC(AmountPrecision, AmountScale).
const (
	AmountPrecision = 20
	AmountScale     = 9
)

// MaxAmount is the exclusive upper bound of an amount column.
var MaxAmount = decimal.New(1, AmountPrecision-AmountScale)

//go:embed schema.sql
var schemaSQL string

// Store provides database operations for the service.
// Inserts are append-only; nothing in the store deduplicates by signature.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the record tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SolTransfer is a native transfer that met the whale threshold.
type SolTransfer struct {
	ID        int64           `json:"id,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitzero"`
	Signature string          `json:"signature"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	AmountSOL decimal.Decimal `json:"amount_sol"`
}

// NFTSale is a marketplace sale of a single NFT.
type NFTSale struct {
	ID          int64           `json:"id,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitzero"`
	Signature   string          `json:"signature"`
	Buyer       string          `json:"buyer"`
	Seller      string          `json:"seller"`
	PriceSOL    decimal.Decimal `json:"price_sol"`
	MintAddress string          `json:"mint_address"`
	Collection  string          `json:"collection"`
}

// TokenTransfer is a transfer of a token known to the token table.
type TokenTransfer struct {
	ID          int64           `json:"id,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitzero"`
	Signature   string          `json:"signature"`
	TokenMint   string          `json:"token_mint"`
	TokenSymbol string          `json:"token_symbol"`
	Sender      string          `json:"sender"`
	Receiver    string          `json:"receiver"`
	Amount      decimal.Decimal `json:"amount"`
}

// ListParams filters and paginates record listings. Empty strings disable
// the corresponding filter. Address matches either side of a transfer or sale.
type ListParams struct {
	Signature string
	Address   string
	Limit     int32
	Offset    int32
}

// InsertSolTransfers appends transfers in a single COPY, so the batch is
// stored or rejected as a whole.
func (s *Store) InsertSolTransfers(ctx context.Context, transfers []SolTransfer) (int64, error) {
	rows := make([][]any, len(transfers))
	for i, t := range transfers {
		rows[i] = []any{t.Signature, t.Sender, t.Receiver, numericFromDecimal(t.AmountSOL)}
	}
	return s.copyRows(ctx, TableSolTransfers, []string{"signature", "sender", "receiver", "amount_sol"}, rows)
}

// InsertNFTSales appends sales in a single COPY.
func (s *Store) InsertNFTSales(ctx context.Context, sales []NFTSale) (int64, error) {
	rows := make([][]any, len(sales))
	for i, sale := range sales {
		rows[i] = []any{sale.Signature, sale.Buyer, sale.Seller, numericFromDecimal(sale.PriceSOL), sale.MintAddress, sale.Collection}
	}
	return s.copyRows(ctx, TableNFTSales, []string{"signature", "buyer", "seller", "price_sol", "mint_address", "collection"}, rows)
}

// InsertTokenTransfers appends token transfers in a single COPY.
func (s *Store) InsertTokenTransfers(ctx context.Context, transfers []TokenTransfer) (int64, error) {
	rows := make([][]any, len(transfers))
	for i, t := range transfers {
		rows[i] = []any{t.Signature, t.TokenMint, t.TokenSymbol, t.Sender, t.Receiver, numericFromDecimal(t.Amount)}
	}
	return s.copyRows(ctx, TableTokenTransfers, []string{"signature", "token_mint", "token_symbol", "sender", "receiver", "amount"}, rows)
}

func (s *Store) copyRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return n, nil
}

// ListSolTransfers returns whale transfers, newest first.
func (s *Store) ListSolTransfers(ctx context.Context, params ListParams) ([]*SolTransfer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, signature, sender, receiver, amount_sol
		FROM sol_transfers
		WHERE ($1::text = '' OR signature = $1)
		  AND ($2::text = '' OR sender = $2 OR receiver = $2)
		ORDER BY id DESC
		LIMIT $3 OFFSET $4`,
		params.Signature, params.Address, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sol transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*SolTransfer
	for rows.Next() {
		var t SolTransfer
		var amount pgtype.Numeric
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.Signature, &t.Sender, &t.Receiver, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan sol transfer: %w", err)
		}
		t.AmountSOL = decimalFromNumeric(amount)
		transfers = append(transfers, &t)
	}
	return transfers, rows.Err()
}

// ListNFTSales returns NFT sales, newest first.
func (s *Store) ListNFTSales(ctx context.Context, params ListParams) ([]*NFTSale, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, signature, buyer, seller, price_sol, mint_address, collection
		FROM nft_sales
		WHERE ($1::text = '' OR signature = $1)
		  AND ($2::text = '' OR buyer = $2 OR seller = $2)
		ORDER BY id DESC
		LIMIT $3 OFFSET $4`,
		params.Signature, params.Address, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list nft sales: %w", err)
	}
	defer rows.Close()

	var sales []*NFTSale
	for rows.Next() {
		var sale NFTSale
		var price pgtype.Numeric
		if err := rows.Scan(&sale.ID, &sale.CreatedAt, &sale.Signature, &sale.Buyer, &sale.Seller, &price, &sale.MintAddress, &sale.Collection); err != nil {
			return nil, fmt.Errorf("failed to scan nft sale: %w", err)
		}
		sale.PriceSOL = decimalFromNumeric(price)
		sales = append(sales, &sale)
	}
	return sales, rows.Err()
}

// ListTokenTransfers returns token transfers, newest first.
func (s *Store) ListTokenTransfers(ctx context.Context, params ListParams) ([]*TokenTransfer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, signature, token_mint, token_symbol, sender, receiver, amount
		FROM token_transfers
		WHERE ($1::text = '' OR signature = $1)
		  AND ($2::text = '' OR sender = $2 OR receiver = $2)
		ORDER BY id DESC
		LIMIT $3 OFFSET $4`,
		params.Signature, params.Address, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list token transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*TokenTransfer
	for rows.Next() {
		var t TokenTransfer
		var amount pgtype.Numeric
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.Signature, &t.TokenMint, &t.TokenSymbol, &t.Sender, &t.Receiver, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan token transfer: %w", err)
		}
		t.Amount = decimalFromNumeric(amount)
		transfers = append(transfers, &t)
	}
	return transfers, rows.Err()
}

// Helper functions for type conversion

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
