package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"demand-pipeline/internal/models"
	"demand-pipeline/pkg/logging"
	"demand-pipeline/pkg/metrics"
)

// Producer publishes JSON messages to a single Kafka topic, keyed by
// region so per-region ordering is preserved across partitions.
type Producer struct {
	writer  *kafka.Writer
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewProducer creates a producer for the given topic.
func NewProducer(brokers []string, topic string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same key, same partition
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Compression:  kafka.Snappy,
	}

	return &Producer{
		writer:  writer,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Publish marshals message to JSON and writes it with the given key.
func (p *Producer) Publish(ctx context.Context, key string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		p.metrics.RecordKafkaError("publish_error")
		return fmt.Errorf("failed to publish to %s: %w", p.writer.Topic, err)
	}

	p.metrics.KafkaMessagesPublished.Inc()
	return nil
}

// Emit publishes an enriched reading keyed by region, satisfying the
// pipeline's Sink interface.
func (p *Producer) Emit(ctx context.Context, reading *models.EnrichedReading) error {
	return p.Publish(ctx, reading.Region, reading)
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// MessageHandler processes one raw message value from the input topic.
type MessageHandler func(ctx context.Context, key, value []byte) error

// Consumer reads the input topic within a consumer group and dispatches
// records to a handler one at a time, preserving partition order.
type Consumer struct {
	reader  *kafka.Reader
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewConsumer creates a consumer. Historical replays rely on the earliest
// start offset so the whole topic is reprocessed under a fresh group.
func NewConsumer(brokers []string, topic, groupID string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(context.Background(), "[KAFKA_READER_ERROR] "+fmt.Sprintf(msg, args...), logging.Fields{
				"topic": topic,
			}, nil)
		}),
	})

	return &Consumer{
		reader:  reader,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Run consumes until ctx is cancelled or the reader is closed. Handler
// errors are logged and counted; consumption continues so one bad record
// cannot stall the stream.
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			c.metrics.RecordKafkaError("read_error")
			return fmt.Errorf("failed to read message: %w", err)
		}

		c.metrics.KafkaMessagesConsumed.Inc()

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			c.metrics.RecordKafkaError("handler_error")
			c.logger.Error(ctx, "[KAFKA_HANDLER_ERROR] Message handler failed", logging.Fields{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
				"key":       string(msg.Key),
			}, err)
		}
	}
}

// Close closes the underlying reader, unblocking Run.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
