package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brojonat/solhook/service/db"
	"github.com/google/uuid"
)

// RecordEvent announces a record that has just been persisted.
// It is published to the subject "records.{kind}".
type RecordEvent struct {
	// ID is unique per event and doubles as the JetStream dedup id.
	ID        string  `json:"id"`
	Kind      db.Kind `json:"kind"`
	Signature string  `json:"signature"`

	// Record is the persisted row as JSON.
	Record json.RawMessage `json:"record"`

	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the NATS subject for a record kind.
func Subject(kind db.Kind) string {
	return SubjectPrefix + string(kind)
}

// FromSolTransfers converts persisted whale transfers to events.
func FromSolTransfers(transfers []db.SolTransfer) ([]*RecordEvent, error) {
	out := make([]*RecordEvent, 0, len(transfers))
	for _, t := range transfers {
		event, err := newRecordEvent(db.KindSolTransfer, t.Signature, t)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

// FromNFTSales converts persisted sales to events.
func FromNFTSales(sales []db.NFTSale) ([]*RecordEvent, error) {
	out := make([]*RecordEvent, 0, len(sales))
	for _, s := range sales {
		event, err := newRecordEvent(db.KindNFTSale, s.Signature, s)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

// FromTokenTransfers converts persisted token transfers to events.
func FromTokenTransfers(transfers []db.TokenTransfer) ([]*RecordEvent, error) {
	out := make([]*RecordEvent, 0, len(transfers))
	for _, t := range transfers {
		event, err := newRecordEvent(db.KindTokenTransfer, t.Signature, t)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

func newRecordEvent(kind db.Kind, signature string, record any) (*RecordEvent, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s record: %w", kind, err)
	}
	return &RecordEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		Signature:   signature,
		Record:      data,
		PublishedAt: time.Now().UTC(),
	}, nil
}
