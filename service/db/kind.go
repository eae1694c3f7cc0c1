package db

// Kind names one of the three record families the service ingests.
type Kind string

const (
	KindSolTransfer   Kind = "sol_transfer"
	KindNFTSale       Kind = "nft_sale"
	KindTokenTransfer Kind = "token_transfer"
)

// Kinds lists every record kind in a stable order.
var Kinds = []Kind{KindSolTransfer, KindNFTSale, KindTokenTransfer}

// Table returns the table a kind is persisted to.
func (k Kind) Table() string {
	switch k {
	case KindSolTransfer:
		return TableSolTransfers
	case KindNFTSale:
		return TableNFTSales
	case KindTokenTransfer:
		return TableTokenTransfers
	default:
		return ""
	}
}

// ParseKind accepts a kind name or its table name.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if s == string(k) || s == k.Table() {
			return k, true
		}
	}
	return "", false
}
