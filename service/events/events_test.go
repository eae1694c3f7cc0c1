package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/brojonat/solhook/service/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestFromSolTransfers(t *testing.T) {
	got, err := FromSolTransfers([]db.SolTransfer{
		{Signature: "sig1", Sender: "A", Receiver: "B", AmountSOL: decimal.NewFromInt(2000)},
		{Signature: "sig1", Sender: "C", Receiver: "D", AmountSOL: decimal.NewFromInt(3000)},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, db.KindSolTransfer, got[0].Kind)
	assert.Equal(t, "sig1", got[0].Signature)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.False(t, got[0].PublishedAt.IsZero())

	var record db.SolTransfer
	require.NoError(t, json.Unmarshal(got[0].Record, &record))
	assert.Equal(t, "A", record.Sender)
	assert.True(t, decimal.NewFromInt(2000).Equal(record.AmountSOL))
}

func TestFromNFTSalesAndTokenTransfers(t *testing.T) {
	sales, err := FromNFTSales([]db.NFTSale{{Signature: "sale", MintAddress: "X", Collection: "Unknown"}})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, db.KindNFTSale, sales[0].Kind)
	assert.Contains(t, string(sales[0].Record), `"mint_address":"X"`)

	tokens, err := FromTokenTransfers([]db.TokenTransfer{{Signature: "tok", TokenSymbol: "USDC"}})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, db.KindTokenTransfer, tokens[0].Kind)
	assert.Contains(t, string(tokens[0].Record), `"token_symbol":"USDC"`)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "records.sol_transfer", Subject(db.KindSolTransfer))
	assert.Equal(t, "records.nft_sale", Subject(db.KindNFTSale))
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event RecordEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Signature != "sig1" {
			return errors.New("unexpected signature " + event.Signature)
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	p := newKafkaPublisher(producer, "solhook-records", discardLogger())

	evs, err := FromSolTransfers([]db.SolTransfer{
		{Signature: "sig1", Sender: "A", Receiver: "B"},
		{Signature: "sig1", Sender: "C", Receiver: "D"},
	})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), evs))
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newKafkaPublisher(producer, "solhook-records", discardLogger())

	evs, err := FromNFTSales([]db.NFTSale{{Signature: "sale"}})
	require.NoError(t, err)

	err = p.Publish(context.Background(), evs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka publish failed")
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_EmptyBatch(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newKafkaPublisher(producer, "solhook-records", discardLogger())

	require.NoError(t, p.Publish(context.Background(), nil))
	require.NoError(t, p.Close())
}

func TestFanout(t *testing.T) {
	a := NewMockPublisher()
	b := NewMockPublisher()
	b.SetPublishError(errors.New("broker down"))

	f := Fanout{a, b}
	evs, err := FromTokenTransfers([]db.TokenTransfer{{Signature: "tok"}})
	require.NoError(t, err)

	err = f.Publish(context.Background(), evs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, 1, a.GetPublishedEventCount())
	assert.Equal(t, 0, b.GetPublishedEventCount())

	require.NoError(t, f.Close())
	assert.True(t, a.IsClosed())
	assert.True(t, b.IsClosed())
}

func TestDefaultKafkaConfig(t *testing.T) {
	cfg := DefaultKafkaConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Producer.Retry.Max)
	assert.Equal(t, 2*time.Second, cfg.Producer.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Net.DialTimeout)
	assert.Equal(t, "solhook-publisher", cfg.ClientID)
}
