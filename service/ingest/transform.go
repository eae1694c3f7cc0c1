package ingest

import (
	"fmt"

	"github.com/brojonat/solhook/service/db"
	"github.com/brojonat/solhook/service/helius"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// UnknownCollection is recorded when a sale carries no collection.
const UnknownCollection = "Unknown"

// DefaultWhaleThresholdSOL is the smallest transfer, in SOL, kept by the
// transfer transform unless configured otherwise.
var DefaultWhaleThresholdSOL = decimal.NewFromInt(1000)

var lamportsPerSOL = decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))

// LamportsToSOL converts a raw lamport amount to SOL exactly.
func LamportsToSOL(lamports decimal.Decimal) decimal.Decimal {
	return lamports.Div(lamportsPerSOL)
}

// checkStorable rejects converted amounts the amount columns cannot hold.
func checkStorable(field string, amount decimal.Decimal) error {
	if amount.GreaterThanOrEqual(db.MaxAmount) {
		return helius.Incompletef("%s exceeds the maximum storable amount %s", field, db.MaxAmount)
	}
	return nil
}

// EnvelopePolicy decides which notifications of a webhook body are processed.
type EnvelopePolicy string

const (
	// EnvelopeAll runs every notification through the pipeline.
	EnvelopeAll EnvelopePolicy = "all"
	// EnvelopeFirst processes index 0 and drops the rest.
	EnvelopeFirst EnvelopePolicy = "first"
)

// SelectionPolicy decides how many qualifying sub-items of one notification
// become records (NFTs of a sale, recognized token transfers).
type SelectionPolicy string

const (
	// SelectFirst keeps only the first qualifying sub-item.
	SelectFirst SelectionPolicy = "first"
	// SelectAll keeps every qualifying sub-item.
	SelectAll SelectionPolicy = "all"
)

// ParseEnvelopePolicy validates a configured envelope policy.
func ParseEnvelopePolicy(s string) (EnvelopePolicy, error) {
	switch p := EnvelopePolicy(s); p {
	case EnvelopeAll, EnvelopeFirst:
		return p, nil
	default:
		return "", fmt.Errorf("invalid envelope policy %q: must be 'all' or 'first'", s)
	}
}

// ParseSelectionPolicy validates a configured selection policy.
func ParseSelectionPolicy(s string) (SelectionPolicy, error) {
	switch p := SelectionPolicy(s); p {
	case SelectFirst, SelectAll:
		return p, nil
	default:
		return "", fmt.Errorf("invalid selection policy %q: must be 'first' or 'all'", s)
	}
}

// TransferTransform keeps native transfers at or above Threshold SOL.
type TransferTransform struct {
	Threshold decimal.Decimal
	Strict    bool
}

// Apply returns one record per whale transfer and the number of transfers
// that fell below the threshold.
func (t TransferTransform) Apply(n *helius.Notification) ([]db.SolTransfer, int, error) {
	if err := n.RequireSignature(); err != nil {
		return nil, 0, err
	}
	if n.NativeTransfers == nil {
		return nil, 0, helius.Incompletef("nativeTransfers is required")
	}

	var out []db.SolTransfer
	skipped := 0
	for i, nt := range n.NativeTransfers {
		field := fmt.Sprintf("nativeTransfers[%d]", i)
		if err := helius.ValidateRawAmount(field+".amount", nt.Amount); err != nil {
			return nil, 0, err
		}

		amountSOL := LamportsToSOL(nt.Amount)
		if amountSOL.LessThan(t.Threshold) {
			skipped++
			continue
		}

		if err := checkStorable(field+".amount", amountSOL); err != nil {
			return nil, 0, err
		}
		if err := helius.ValidateAddress(field+".fromUserAccount", nt.FromUserAccount, t.Strict); err != nil {
			return nil, 0, err
		}
		if err := helius.ValidateAddress(field+".toUserAccount", nt.ToUserAccount, t.Strict); err != nil {
			return nil, 0, err
		}

		out = append(out, db.SolTransfer{
			Signature: n.Signature,
			Sender:    nt.FromUserAccount,
			Receiver:  nt.ToUserAccount,
			AmountSOL: amountSOL,
		})
	}
	return out, skipped, nil
}

// SaleTransform extracts NFT sales.
type SaleTransform struct {
	Selection SelectionPolicy
	Strict    bool
}

// Apply returns the sale record(s) of a notification. Under SelectFirst only
// the first NFT is recorded and the others are counted as skipped.
func (t SaleTransform) Apply(n *helius.Notification) ([]db.NFTSale, int, error) {
	if err := n.RequireSignature(); err != nil {
		return nil, 0, err
	}
	sale := n.Events.NFT
	if sale == nil {
		return nil, 0, helius.Incompletef("events.nft is required")
	}
	if len(sale.NFTs) == 0 {
		return nil, 0, helius.Incompletef("events.nft.nfts must contain at least one entry")
	}
	if err := helius.ValidateAddress("events.nft.seller", sale.Seller, t.Strict); err != nil {
		return nil, 0, err
	}
	if err := helius.ValidateAddress("events.nft.buyer", sale.Buyer, t.Strict); err != nil {
		return nil, 0, err
	}
	if err := helius.ValidateRawAmount("events.nft.amount", sale.Amount); err != nil {
		return nil, 0, err
	}

	collection := sale.Collection
	if collection == "" {
		collection = n.Collection
	}
	if collection == "" {
		collection = UnknownCollection
	}
	price := LamportsToSOL(sale.Amount)
	if err := checkStorable("events.nft.amount", price); err != nil {
		return nil, 0, err
	}

	nfts := sale.NFTs
	skipped := 0
	if t.Selection != SelectAll {
		skipped = len(nfts) - 1
		nfts = nfts[:1]
	}

	out := make([]db.NFTSale, 0, len(nfts))
	for i, nft := range nfts {
		if err := helius.ValidateAddress(fmt.Sprintf("events.nft.nfts[%d].mint", i), nft.Mint, t.Strict); err != nil {
			return nil, 0, err
		}
		out = append(out, db.NFTSale{
			Signature:   n.Signature,
			Buyer:       sale.Buyer,
			Seller:      sale.Seller,
			PriceSOL:    price,
			MintAddress: nft.Mint,
			Collection:  collection,
		})
	}
	return out, skipped, nil
}

// TokenTransform resolves token transfers against a TokenTable.
type TokenTransform struct {
	Tokens    *TokenTable
	Selection SelectionPolicy
	Strict    bool
}

// Apply scans token transfers in order and records the recognized ones:
// the first match under SelectFirst, every match under SelectAll. Transfers
// of unknown mints are skipped without error.
func (t TokenTransform) Apply(n *helius.Notification) ([]db.TokenTransfer, int, error) {
	if err := n.RequireSignature(); err != nil {
		return nil, 0, err
	}
	if len(n.TokenTransfers) == 0 {
		return nil, 0, helius.Incompletef("tokenTransfers must contain at least one entry")
	}

	var out []db.TokenTransfer
	for i, tt := range n.TokenTransfers {
		info, ok := t.Tokens.Lookup(tt.Mint)
		if !ok {
			continue
		}

		field := fmt.Sprintf("tokenTransfers[%d]", i)
		if err := helius.ValidateAddress(field+".fromUserAccount", tt.FromUserAccount, t.Strict); err != nil {
			return nil, 0, err
		}
		if err := helius.ValidateAddress(field+".toUserAccount", tt.ToUserAccount, t.Strict); err != nil {
			return nil, 0, err
		}
		if err := helius.ValidateRawAmount(field+".tokenAmount", tt.TokenAmount); err != nil {
			return nil, 0, err
		}
		amount := tt.TokenAmount.Shift(-info.Decimals)
		if err := checkStorable(field+".tokenAmount", amount); err != nil {
			return nil, 0, err
		}

		out = append(out, db.TokenTransfer{
			Signature:   n.Signature,
			TokenMint:   tt.Mint,
			TokenSymbol: info.Symbol,
			Sender:      tt.FromUserAccount,
			Receiver:    tt.ToUserAccount,
			Amount:      amount,
		})
		if t.Selection != SelectAll {
			break
		}
	}
	return out, len(n.TokenTransfers) - len(out), nil
}
