package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

// Publisher defines the interface for announcing persisted records.
type Publisher interface {
	// Publish sends every event. It attempts all of them and returns the
	// joined errors of those that failed.
	Publish(ctx context.Context, events []*RecordEvent) error

	// Close releases the underlying connection.
	Close() error
}

// JetStreamPublisher publishes record events to NATS JetStream.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for records.
	StreamName = "SOLHOOK_RECORDS"

	// SubjectPrefix prefixes every record subject.
	SubjectPrefix = "records."

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectPrefix + "*"

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour

	// DuplicateWindow is how long JetStream remembers message ids.
	DuplicateWindow = 2 * time.Minute
)

// NewPublisher connects to NATS and ensures the record stream exists.
func NewPublisher(natsURL string, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("solhook-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Records persisted from indexer webhooks",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Duplicates:  DuplicateWindow,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// Publish publishes each event to records.{kind}.
func (p *JetStreamPublisher) Publish(ctx context.Context, events []*RecordEvent) error {
	var errs []error
	for _, event := range events {
		subject := Subject(event.Kind)

		data, err := json.Marshal(event)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to marshal record event: %w", err))
			continue
		}

		if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
			p.logger.Error("failed to publish record event",
				"subject", subject,
				"signature", event.Signature,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("failed to publish %s: %w", event.Signature, err))
			continue
		}

		p.logger.Debug("published record event",
			"subject", subject,
			"signature", event.Signature,
		)
	}
	return errors.Join(errs...)
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}

// Fanout publishes to several backends concurrently. Every backend is
// attempted; one failing does not cancel the others.
type Fanout []Publisher

// Publish sends the events to every backend and joins their errors.
func (f Fanout) Publish(ctx context.Context, events []*RecordEvent) error {
	errs := make([]error, len(f))
	var g errgroup.Group
	for i, p := range f {
		g.Go(func() error {
			errs[i] = p.Publish(ctx, events)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

// Close closes every backend.
func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
