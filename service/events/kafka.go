package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// KafkaPublisher publishes record events to a single Kafka topic, keyed by
// transaction signature so records of one transaction share a partition.
type KafkaPublisher struct {
	topic    string
	producer sarama.SyncProducer
	logger   *slog.Logger
}

// NewKafkaPublisher creates a synchronous producer for the given brokers.
// A nil cfg uses DefaultKafkaConfig.
func NewKafkaPublisher(brokers []string, topic string, cfg *sarama.Config, logger *slog.Logger) (*KafkaPublisher, error) {
	if cfg == nil {
		cfg = DefaultKafkaConfig()
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.Info("Kafka publisher initialized", "brokers", brokers, "topic", topic)
	return newKafkaPublisher(producer, topic, logger), nil
}

// DefaultKafkaConfig keeps a single SendMessages call short: one retry and
// second-scale network and broker timeouts instead of sarama's 30s defaults.
func DefaultKafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "solhook-publisher"
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Net.ReadTimeout = 3 * time.Second
	cfg.Net.WriteTimeout = 3 * time.Second
	cfg.Producer.Timeout = 2 * time.Second
	cfg.Producer.Retry.Max = 1
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Metadata.Retry.Max = 1
	return cfg
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		topic:    topic,
		producer: producer,
		logger:   logger,
	}
}

// Publish sends all events in one SendMessages call.
func (p *KafkaPublisher) Publish(ctx context.Context, events []*RecordEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal record event: %w", err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(event.Signature),
			Value: sarama.ByteEncoder(data),
			Headers: []sarama.RecordHeader{
				{Key: []byte("kind"), Value: []byte(event.Kind)},
				{Key: []byte("event_id"), Value: []byte(event.ID)},
			},
		})
	}

	if err := p.producer.SendMessages(msgs); err != nil {
		var perrs sarama.ProducerErrors
		if errors.As(err, &perrs) {
			p.logger.Error("failed to publish record events to kafka",
				"topic", p.topic,
				"failed", len(perrs),
				"total", len(msgs),
			)
		}
		return fmt.Errorf("kafka publish failed: %w", err)
	}

	p.logger.Debug("published record events to kafka", "topic", p.topic, "count", len(msgs))
	return nil
}

// Close closes the producer.
func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
