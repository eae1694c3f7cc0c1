package helius

import (
	"github.com/shopspring/decimal"
)

// Notification is one enhanced-transaction notification as delivered by the
// indexer webhook. A single type carries the substructures of every event
// kind; each handler only reads the parts it cares about.
type Notification struct {
	Signature string `json:"signature"`
	Type      string `json:"type,omitempty"`
	Source    string `json:"source,omitempty"`
	Slot      uint64 `json:"slot,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
	Events          Events           `json:"events"`

	// Collection is set by some marketplaces at the top level rather than
	// on the sale event.
	Collection string `json:"collection,omitempty"`
}

// NativeTransfer is a SOL movement. Amount is in lamports.
type NativeTransfer struct {
	FromUserAccount string          `json:"fromUserAccount"`
	ToUserAccount   string          `json:"toUserAccount"`
	Amount          decimal.Decimal `json:"amount"`
}

// TokenTransfer is an SPL token movement. TokenAmount is in the token's
// smallest unit.
type TokenTransfer struct {
	FromUserAccount string          `json:"fromUserAccount"`
	ToUserAccount   string          `json:"toUserAccount"`
	Mint            string          `json:"mint"`
	TokenAmount     decimal.Decimal `json:"tokenAmount"`
}

// Events holds the parsed program events of a transaction.
type Events struct {
	NFT *NFTEvent `json:"nft,omitempty"`
}

// NFTEvent is a marketplace sale. Amount is the price in lamports.
type NFTEvent struct {
	Seller     string          `json:"seller"`
	Buyer      string          `json:"buyer"`
	Amount     decimal.Decimal `json:"amount"`
	NFTs       []NFT           `json:"nfts"`
	Collection string          `json:"collection,omitempty"`
	Source     string          `json:"source,omitempty"`
}

// NFT identifies a single token sold in an NFTEvent.
type NFT struct {
	Mint string `json:"mint"`
}
