package ingest

import (
	"testing"

	"github.com/brojonat/solhook/service/helius"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdt = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

func lamports(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, "2000", LamportsToSOL(lamports(2_000_000_000_000)).String())
	assert.Equal(t, "0.000000001", LamportsToSOL(lamports(1)).String())
	assert.Equal(t, "1000.5", LamportsToSOL(lamports(1_000_500_000_000)).String())
}

func TestParsePolicies(t *testing.T) {
	e, err := ParseEnvelopePolicy("first")
	require.NoError(t, err)
	assert.Equal(t, EnvelopeFirst, e)
	_, err = ParseEnvelopePolicy("some")
	assert.Error(t, err)

	s, err := ParseSelectionPolicy("all")
	require.NoError(t, err)
	assert.Equal(t, SelectAll, s)
	_, err = ParseSelectionPolicy("")
	assert.Error(t, err)
}

func TestTransferTransform(t *testing.T) {
	tr := TransferTransform{Threshold: DefaultWhaleThresholdSOL}

	tests := []struct {
		name        string
		n           helius.Notification
		wantRecords int
		wantSkipped int
		wantErr     error
	}{
		{
			name: "whale kept",
			n: helius.Notification{
				Signature: "sig1",
				NativeTransfers: []helius.NativeTransfer{
					{FromUserAccount: "A", ToUserAccount: "B", Amount: lamports(2_000_000_000_000)},
				},
			},
			wantRecords: 1,
		},
		{
			name: "exactly at threshold kept",
			n: helius.Notification{
				Signature: "sig2",
				NativeTransfers: []helius.NativeTransfer{
					{FromUserAccount: "A", ToUserAccount: "B", Amount: lamports(1_000_000_000_000)},
				},
			},
			wantRecords: 1,
		},
		{
			name: "below threshold skipped",
			n: helius.Notification{
				Signature: "sig3",
				NativeTransfers: []helius.NativeTransfer{
					{FromUserAccount: "A", ToUserAccount: "B", Amount: lamports(999_999_999_999)},
				},
			},
			wantSkipped: 1,
		},
		{
			name: "mixed",
			n: helius.Notification{
				Signature: "sig4",
				NativeTransfers: []helius.NativeTransfer{
					{FromUserAccount: "A", ToUserAccount: "B", Amount: lamports(5)},
					{FromUserAccount: "C", ToUserAccount: "D", Amount: lamports(3_000_000_000_000)},
					{FromUserAccount: "E", ToUserAccount: "F", Amount: lamports(7)},
				},
			},
			wantRecords: 1,
			wantSkipped: 2,
		},
		{
			name: "empty list is not an error",
			n:    helius.Notification{Signature: "sig5", NativeTransfers: []helius.NativeTransfer{}},
		},
		{
			name:    "missing list",
			n:       helius.Notification{Signature: "sig6"},
			wantErr: helius.ErrIncompletePayload,
		},
		{
			name: "missing signature",
			n: helius.Notification{
				NativeTransfers: []helius.NativeTransfer{{FromUserAccount: "A", ToUserAccount: "B", Amount: lamports(1)}},
			},
			wantErr: helius.ErrIncompletePayload,
		},
		{
			name: "negative amount",
			n: helius.Notification{
				Signature:       "sig7",
				NativeTransfers: []helius.NativeTransfer{{FromUserAccount: "A", ToUserAccount: "B", Amount: lamports(-1)}},
			},
			wantErr: helius.ErrIncompletePayload,
		},
		{
			name: "whale with empty sender",
			n: helius.Notification{
				Signature:       "sig8",
				NativeTransfers: []helius.NativeTransfer{{ToUserAccount: "B", Amount: lamports(2_000_000_000_000)}},
			},
			wantErr: helius.ErrIncompletePayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, skipped, err := tr.Apply(&tt.n)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, out, tt.wantRecords)
			assert.Equal(t, tt.wantSkipped, skipped)
		})
	}
}

func TestTransferTransform_RecordFields(t *testing.T) {
	tr := TransferTransform{Threshold: DefaultWhaleThresholdSOL}
	out, _, err := tr.Apply(&helius.Notification{
		Signature: "sig1",
		NativeTransfers: []helius.NativeTransfer{
			{FromUserAccount: "A", ToUserAccount: "B", Amount: lamports(2_000_000_000_000)},
		},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "sig1", out[0].Signature)
	assert.Equal(t, "A", out[0].Sender)
	assert.Equal(t, "B", out[0].Receiver)
	assert.True(t, decimal.NewFromInt(2000).Equal(out[0].AmountSOL))
}

func TestTransferTransform_CustomThreshold(t *testing.T) {
	tr := TransferTransform{Threshold: decimal.RequireFromString("0.5")}
	out, skipped, err := tr.Apply(&helius.Notification{
		Signature: "sig",
		NativeTransfers: []helius.NativeTransfer{
			{FromUserAccount: "A", ToUserAccount: "B", Amount: lamports(500_000_000)},
			{FromUserAccount: "A", ToUserAccount: "B", Amount: lamports(499_999_999)},
		},
	})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 1, skipped)
}

func saleNotification(mints ...string) helius.Notification {
	nfts := make([]helius.NFT, 0, len(mints))
	for _, m := range mints {
		nfts = append(nfts, helius.NFT{Mint: m})
	}
	return helius.Notification{
		Signature: "saleSig",
		Events: helius.Events{NFT: &helius.NFTEvent{
			Seller: "S",
			Buyer:  "B",
			Amount: lamports(12_500_000_000),
			NFTs:   nfts,
		}},
	}
}

func TestSaleTransform_FirstNFT(t *testing.T) {
	n := saleNotification("X", "Y")
	out, skipped, err := SaleTransform{Selection: SelectFirst}.Apply(&n)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, skipped)

	sale := out[0]
	assert.Equal(t, "saleSig", sale.Signature)
	assert.Equal(t, "X", sale.MintAddress)
	assert.Equal(t, "B", sale.Buyer)
	assert.Equal(t, "S", sale.Seller)
	assert.Equal(t, UnknownCollection, sale.Collection)
	assert.True(t, decimal.RequireFromString("12.5").Equal(sale.PriceSOL))
}

func TestSaleTransform_AllNFTs(t *testing.T) {
	n := saleNotification("X", "Y")
	out, skipped, err := SaleTransform{Selection: SelectAll}.Apply(&n)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, "X", out[0].MintAddress)
	assert.Equal(t, "Y", out[1].MintAddress)
	assert.True(t, out[0].PriceSOL.Equal(out[1].PriceSOL))
}

func TestSaleTransform_Collection(t *testing.T) {
	n := saleNotification("X")
	n.Collection = "TopLevel"
	out, _, err := SaleTransform{}.Apply(&n)
	require.NoError(t, err)
	assert.Equal(t, "TopLevel", out[0].Collection)

	n.Events.NFT.Collection = "FromEvent"
	out, _, err = SaleTransform{}.Apply(&n)
	require.NoError(t, err)
	assert.Equal(t, "FromEvent", out[0].Collection)
}

func TestSaleTransform_Incomplete(t *testing.T) {
	noEvent := helius.Notification{Signature: "s"}
	_, _, err := SaleTransform{}.Apply(&noEvent)
	require.ErrorIs(t, err, helius.ErrIncompletePayload)

	noNFTs := saleNotification()
	_, _, err = SaleTransform{}.Apply(&noNFTs)
	require.ErrorIs(t, err, helius.ErrIncompletePayload)

	noBuyer := saleNotification("X")
	noBuyer.Events.NFT.Buyer = ""
	_, _, err = SaleTransform{}.Apply(&noBuyer)
	require.ErrorIs(t, err, helius.ErrIncompletePayload)
	assert.Contains(t, err.Error(), "events.nft.buyer")
}

func tokenNotification(transfers ...helius.TokenTransfer) helius.Notification {
	return helius.Notification{Signature: "tokSig", TokenTransfers: transfers}
}

func TestTokenTransform_FirstRecognized(t *testing.T) {
	tr := TokenTransform{Tokens: DefaultTokenTable(), Selection: SelectFirst}
	n := tokenNotification(
		helius.TokenTransfer{FromUserAccount: "A", ToUserAccount: "B", Mint: "So11111111111111111111111111111111111111112", TokenAmount: lamports(1)},
		helius.TokenTransfer{FromUserAccount: "C", ToUserAccount: "D", Mint: usdc, TokenAmount: lamports(1_500_000)},
		helius.TokenTransfer{FromUserAccount: "E", ToUserAccount: "F", Mint: usdt, TokenAmount: lamports(2_000_000)},
	)

	out, skipped, err := tr.Apply(&n)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, skipped)

	rec := out[0]
	assert.Equal(t, "tokSig", rec.Signature)
	assert.Equal(t, usdc, rec.TokenMint)
	assert.Equal(t, "USDC", rec.TokenSymbol)
	assert.Equal(t, "C", rec.Sender)
	assert.Equal(t, "D", rec.Receiver)
	assert.True(t, decimal.RequireFromString("1.5").Equal(rec.Amount))
}

func TestTokenTransform_AllRecognized(t *testing.T) {
	tr := TokenTransform{Tokens: DefaultTokenTable(), Selection: SelectAll}
	n := tokenNotification(
		helius.TokenTransfer{FromUserAccount: "A", ToUserAccount: "B", Mint: "unknown", TokenAmount: lamports(1)},
		helius.TokenTransfer{FromUserAccount: "C", ToUserAccount: "D", Mint: usdc, TokenAmount: lamports(1)},
		helius.TokenTransfer{FromUserAccount: "E", ToUserAccount: "F", Mint: usdt, TokenAmount: lamports(2)},
	)

	out, skipped, err := tr.Apply(&n)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "USDC", out[0].TokenSymbol)
	assert.Equal(t, "USDT", out[1].TokenSymbol)
	assert.Equal(t, "0.000002", out[1].Amount.String())
}

func TestTokenTransform_NoneRecognized(t *testing.T) {
	tr := TokenTransform{Tokens: DefaultTokenTable()}
	n := tokenNotification(
		helius.TokenTransfer{FromUserAccount: "A", ToUserAccount: "B", Mint: "unknown", TokenAmount: lamports(1)},
	)
	out, skipped, err := tr.Apply(&n)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, skipped)
}

func TestTokenTransform_EmptyList(t *testing.T) {
	tr := TokenTransform{Tokens: DefaultTokenTable()}
	n := tokenNotification()
	_, _, err := tr.Apply(&n)
	require.ErrorIs(t, err, helius.ErrIncompletePayload)
}

func TestTokenTransform_StrictAddresses(t *testing.T) {
	tr := TokenTransform{Tokens: DefaultTokenTable(), Strict: true}
	n := tokenNotification(
		helius.TokenTransfer{FromUserAccount: "A", ToUserAccount: "B", Mint: usdc, TokenAmount: lamports(1)},
	)
	_, _, err := tr.Apply(&n)
	require.ErrorIs(t, err, helius.ErrIncompletePayload)

	n = tokenNotification(
		helius.TokenTransfer{FromUserAccount: usdt, ToUserAccount: usdc, Mint: usdc, TokenAmount: lamports(1)},
	)
	out, _, err := tr.Apply(&n)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestTransforms_AmountOverflow(t *testing.T) {
	t.Run("token amount beyond column", func(t *testing.T) {
		tr := TokenTransform{Tokens: DefaultTokenTable()}
		n := tokenNotification(
			helius.TokenTransfer{FromUserAccount: "A", ToUserAccount: "B", Mint: usdc, TokenAmount: decimal.New(1, 20)},
		)
		_, _, err := tr.Apply(&n)
		require.ErrorIs(t, err, helius.ErrIncompletePayload)
		assert.Contains(t, err.Error(), "tokenTransfers[0].tokenAmount exceeds the maximum storable amount")
	})

	t.Run("token amount just below limit", func(t *testing.T) {
		tr := TokenTransform{Tokens: DefaultTokenTable()}
		n := tokenNotification(
			helius.TokenTransfer{FromUserAccount: "A", ToUserAccount: "B", Mint: usdc, TokenAmount: decimal.New(1, 17).Sub(decimal.NewFromInt(1))},
		)
		out, _, err := tr.Apply(&n)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "99999999999.999999", out[0].Amount.String())
	})

	t.Run("native transfer beyond column", func(t *testing.T) {
		n := helius.Notification{Signature: "big", NativeTransfers: []helius.NativeTransfer{
			{FromUserAccount: "A", ToUserAccount: "B", Amount: decimal.New(1, 20)},
		}}
		_, _, err := TransferTransform{Threshold: DefaultWhaleThresholdSOL}.Apply(&n)
		require.ErrorIs(t, err, helius.ErrIncompletePayload)
		assert.Contains(t, err.Error(), "nativeTransfers[0].amount")
	})

	t.Run("sale price beyond column", func(t *testing.T) {
		n := saleNotification("X")
		n.Events.NFT.Amount = decimal.New(1, 21)
		_, _, err := SaleTransform{}.Apply(&n)
		require.ErrorIs(t, err, helius.ErrIncompletePayload)
		assert.Contains(t, err.Error(), "events.nft.amount")
	})
}
