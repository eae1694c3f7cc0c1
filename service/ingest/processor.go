package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solhook/service/db"
	"github.com/brojonat/solhook/service/events"
	"github.com/brojonat/solhook/service/helius"
	"github.com/brojonat/solhook/service/metrics"
	"github.com/shopspring/decimal"
)

// ErrPersistence wraps any error returned by the Sink.
var ErrPersistence = errors.New("persistence failure")

// Sink is the append-only store the processor writes to. *db.Store
// implements it. Inserts are not idempotent and are never retried here.
type Sink interface {
	InsertSolTransfers(ctx context.Context, transfers []db.SolTransfer) (int64, error)
	InsertNFTSales(ctx context.Context, sales []db.NFTSale) (int64, error)
	InsertTokenTransfers(ctx context.Context, transfers []db.TokenTransfer) (int64, error)
}

// DefaultPublishTimeout bounds how long a delivery waits on event publishing.
const DefaultPublishTimeout = 2 * time.Second

// Options configures the transforms. Zero values fall back to defaults.
type Options struct {
	Tokens          *TokenTable
	WhaleThreshold  decimal.Decimal
	Envelope        EnvelopePolicy
	Selection       SelectionPolicy
	StrictAddresses bool
	PublishTimeout  time.Duration
}

// Result summarizes one webhook delivery. Skipped counts both filtered
// sub-items and Rejected notifications.
type Result struct {
	Kind          db.Kind
	Notifications int
	Rejected      int
	Records       int
	Skipped       int
}

// Empty reports whether nothing qualified for persistence.
func (r Result) Empty() bool {
	return r.Records == 0
}

// Processor runs webhook bodies through parse, validate, transform, persist
// and publish. It holds no per-request state and is safe for concurrent use.
type Processor struct {
	sink           Sink
	publisher      events.Publisher
	publishTimeout time.Duration
	envelope       EnvelopePolicy
	transfers TransferTransform
	sales     SaleTransform
	tokens    TokenTransform
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewProcessor creates a Processor. The publisher and metrics are optional.
func NewProcessor(sink Sink, opts Options, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if opts.Tokens == nil {
		opts.Tokens = DefaultTokenTable()
	}
	if opts.WhaleThreshold.IsZero() {
		opts.WhaleThreshold = DefaultWhaleThresholdSOL
	}
	if opts.Envelope == "" {
		opts.Envelope = EnvelopeAll
	}
	if opts.Selection == "" {
		opts.Selection = SelectFirst
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		sink:           sink,
		publisher:      publisher,
		publishTimeout: opts.PublishTimeout,
		envelope:       opts.Envelope,
		transfers: TransferTransform{Threshold: opts.WhaleThreshold, Strict: opts.StrictAddresses},
		sales:     SaleTransform{Selection: opts.Selection, Strict: opts.StrictAddresses},
		tokens:    TokenTransform{Tokens: opts.Tokens, Selection: opts.Selection, Strict: opts.StrictAddresses},
		metrics:   m,
		logger:    logger.With("component", "processor"),
	}
}

// Tokens returns the token table used by the token transform.
func (p *Processor) Tokens() *TokenTable {
	return p.tokens.Tokens
}

// ProcessSolTransfers handles a native-transfer webhook body.
func (p *Processor) ProcessSolTransfers(ctx context.Context, body []byte) (Result, error) {
	return process(ctx, p, db.KindSolTransfer, body,
		p.transfers.Apply, p.sink.InsertSolTransfers, events.FromSolTransfers)
}

// ProcessNFTSales handles an NFT sale webhook body.
func (p *Processor) ProcessNFTSales(ctx context.Context, body []byte) (Result, error) {
	return process(ctx, p, db.KindNFTSale, body,
		p.sales.Apply, p.sink.InsertNFTSales, events.FromNFTSales)
}

// ProcessTokenTransfers handles a token transfer webhook body.
func (p *Processor) ProcessTokenTransfers(ctx context.Context, body []byte) (Result, error) {
	return process(ctx, p, db.KindTokenTransfer, body,
		p.tokens.Apply, p.sink.InsertTokenTransfers, events.FromTokenTransfers)
}

// process is the pipeline shared by every kind. Each notification is
// validated on its own: an invalid one is rejected and counted while the
// rest are still stored. The delivery fails only when every notification
// is invalid, in which case the sink is not called.
func process[R any](
	ctx context.Context,
	p *Processor,
	kind db.Kind,
	body []byte,
	transform func(*helius.Notification) ([]R, int, error),
	insert func(context.Context, []R) (int64, error),
	toEvents func([]R) ([]*events.RecordEvent, error),
) (Result, error) {
	res := Result{Kind: kind}

	notifications, err := helius.ParseEnvelope(body)
	if err != nil {
		p.recordOutcome(kind, "malformed")
		return res, err
	}
	if p.envelope == EnvelopeFirst && len(notifications) > 1 {
		p.logger.Debug("dropping trailing notifications", "kind", kind, "dropped", len(notifications)-1)
		notifications = notifications[:1]
	}
	res.Notifications = len(notifications)

	var (
		records  []R
		filtered int
		firstErr error
	)
	for i := range notifications {
		out, skipped, err := transform(&notifications[i])
		if err != nil {
			if len(notifications) > 1 {
				err = fmt.Errorf("notification %d: %w", i, err)
			}
			if firstErr == nil {
				firstErr = err
			}
			res.Rejected++
			p.logger.Warn("rejected notification",
				"kind", kind,
				"index", i,
				"signature", notifications[i].Signature,
				"error", err,
			)
			continue
		}
		records = append(records, out...)
		filtered += skipped
	}
	res.Skipped = filtered + res.Rejected

	if res.Rejected == res.Notifications {
		p.recordOutcome(kind, "incomplete")
		return res, firstErr
	}

	if p.metrics != nil {
		p.metrics.RecordNotifications(string(kind), res.Notifications-res.Rejected)
		p.metrics.RecordRecordsNormalized(string(kind), len(records))
		p.metrics.RecordRecordsSkipped(string(kind), "filtered", filtered)
		if res.Rejected > 0 {
			p.metrics.RecordRecordsSkipped(string(kind), "invalid", res.Rejected)
		}
	}

	if len(records) == 0 {
		p.recordOutcome(kind, "no_data")
		p.logger.Info("no qualifying records",
			"kind", kind,
			"notifications", res.Notifications,
			"rejected", res.Rejected,
			"skipped", res.Skipped,
		)
		return res, nil
	}

	start := time.Now()
	n, err := insert(ctx, records)
	if p.metrics != nil {
		p.metrics.RecordDBQuery("copy", kind.Table(), time.Since(start).Seconds(), err)
	}
	if err != nil {
		p.recordOutcome(kind, "persistence_error")
		p.logger.Error("failed to persist records", "kind", kind, "count", len(records), "error", err)
		return res, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	res.Records = len(records)
	if p.metrics != nil {
		p.metrics.RecordRecordsPersisted(string(kind), int(n))
	}
	p.recordOutcome(kind, "persisted")

	p.logger.Info("records persisted",
		"kind", kind,
		"count", res.Records,
		"notifications", res.Notifications,
		"rejected", res.Rejected,
		"skipped", res.Skipped,
	)

	publish(ctx, p, kind, records, toEvents)
	return res, nil
}

// publish announces persisted records. The wait is bounded by the publish
// timeout and detached from request cancellation; a backend that is still
// busy when the timeout fires finishes on its own goroutine. Failures are
// logged and counted but never change the outcome of the delivery.
func publish[R any](ctx context.Context, p *Processor, kind db.Kind, records []R, toEvents func([]R) ([]*events.RecordEvent, error)) {
	if p.publisher == nil {
		return
	}

	evs, err := toEvents(records)
	if err != nil {
		p.logger.Error("failed to build record events", "kind", kind, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.publishTimeout)
	defer cancel()
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- p.publisher.Publish(pubCtx, evs)
	}()

	status := "success"
	select {
	case err = <-done:
		if err != nil {
			status = "error"
			p.logger.Error("failed to publish record events", "kind", kind, "count", len(evs), "error", err)
		}
	case <-pubCtx.Done():
		status = "timeout"
		p.logger.Warn("record event publish timed out",
			"kind", kind,
			"count", len(evs),
			"timeout", p.publishTimeout,
		)
	}
	if p.metrics != nil {
		p.metrics.RecordEventsPublished(events.Subject(kind), status, len(evs), time.Since(start).Seconds())
	}
}

func (p *Processor) recordOutcome(kind db.Kind, outcome string) {
	if p.metrics != nil {
		p.metrics.RecordWebhookOutcome(string(kind), outcome)
	}
}
