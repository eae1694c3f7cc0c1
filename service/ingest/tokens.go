package ingest

import (
	"fmt"
	"sort"

	"github.com/brojonat/solhook/service/db"
	"github.com/gagliardetto/solana-go"
)

// Well-known SPL token mints.
var (
	USDCMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	USDTMint = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)

// TokenInfo describes how to present a token's raw amounts.
type TokenInfo struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// TokenTable is an immutable mint → TokenInfo lookup. It is safe for
// concurrent use because nothing mutates it after construction.
type TokenTable struct {
	byMint map[string]TokenInfo
}

// NewTokenTable builds a table from the given tokens. Every mint must be a
// valid base58 public key and appear once, and decimals may not exceed the
// scale of the amount columns.
func NewTokenTable(tokens ...TokenInfo) (*TokenTable, error) {
	byMint := make(map[string]TokenInfo, len(tokens))
	for _, tok := range tokens {
		if _, err := solana.PublicKeyFromBase58(tok.Mint); err != nil {
			return nil, fmt.Errorf("invalid mint %q for %s: %w", tok.Mint, tok.Symbol, err)
		}
		if tok.Symbol == "" {
			return nil, fmt.Errorf("mint %s has no symbol", tok.Mint)
		}
		if tok.Decimals < 0 || tok.Decimals > db.AmountScale {
			return nil, fmt.Errorf("mint %s has invalid decimals %d", tok.Mint, tok.Decimals)
		}
		if _, dup := byMint[tok.Mint]; dup {
			return nil, fmt.Errorf("mint %s listed twice", tok.Mint)
		}
		byMint[tok.Mint] = tok
	}
	return &TokenTable{byMint: byMint}, nil
}

// DefaultTokenTable returns the compiled-in table of tracked stablecoins.
// Adding a token means shipping a new build.
func DefaultTokenTable() *TokenTable {
	table, err := NewTokenTable(
		TokenInfo{Mint: USDCMint.String(), Symbol: "USDC", Decimals: 6},
		TokenInfo{Mint: USDTMint.String(), Symbol: "USDT", Decimals: 6},
	)
	if err != nil {
		panic(err)
	}
	return table
}

// Lookup resolves a mint.
func (t *TokenTable) Lookup(mint string) (TokenInfo, bool) {
	info, ok := t.byMint[mint]
	return info, ok
}

// Len returns the number of known tokens.
func (t *TokenTable) Len() int {
	return len(t.byMint)
}

// All returns the known tokens sorted by symbol.
func (t *TokenTable) All() []TokenInfo {
	out := make([]TokenInfo, 0, len(t.byMint))
	for _, info := range t.byMint {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol == out[j].Symbol {
			return out[i].Mint < out[j].Mint
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
