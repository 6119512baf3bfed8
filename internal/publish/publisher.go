package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
)

// ErrEmptyPayload is returned when there is nothing to publish.
var ErrEmptyPayload = errors.New("payload is empty")

// Publisher ships finished order labels to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close()
}

// KafkaPublisher writes labels to a single topic.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New returns a Kafka publisher when brokers are configured and a no-op otherwise.
func New(cfg common.KafkaConfig, logger *slog.Logger) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return NopPublisher{}, nil
	}
	return NewKafkaPublisher(cfg, logger)
}

func NewKafkaPublisher(cfg common.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LabelTopic == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "KAFKA_LABEL_TOPIC is required", common.ErrInvalidInput)
	}
	logger.Info("publish.kafka.connecting", "brokers", cfg.Brokers, "topic", cfg.LabelTopic)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.LabelTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		logger.Error("publish.kafka.client_error", "error", err)
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaPublisher{client: client, topic: cfg.LabelTopic, logger: logger}, nil
}

// Publish writes one record synchronously. key is usually the order id so all
// updates for an order land on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	rec := &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(key),
		Value:     payload,
		Timestamp: time.Now().UTC(),
	}
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: "request_id", Value: []byte(rid)})
	}

	start := time.Now()
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		p.logger.Error("publish.kafka.failed", "topic", p.topic, "key", key, "bytes", len(payload), "error", err)
		return fmt.Errorf("publish to kafka topic %s: %w", p.topic, err)
	}
	p.logger.Debug("publish.kafka.ok", "topic", p.topic, "key", key, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *KafkaPublisher) Close() {
	p.logger.Info("publish.kafka.closing", "topic", p.topic)
	p.client.Close()
}

// NopPublisher drops everything. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

func (NopPublisher) Close() {}
