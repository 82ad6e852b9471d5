package syncbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const defaultKafkaTopic = "cnw.entitlement.sync"

// KafkaConfig configures a KafkaBus.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// GroupID must be unique per instance so every instance reads every
	// message.
	GroupID string
	Logger  *zap.Logger
}

// KafkaBus implements Bus over a Kafka topic.
type KafkaBus struct {
	writer *kafka.Writer
	reader *kafka.Reader
	logger *zap.Logger
}

// NewKafkaBus creates a bus on cfg.Topic.
func NewKafkaBus(cfg KafkaConfig) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka bus requires at least one broker")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka bus requires group id")
	}
	if cfg.Topic == "" {
		cfg.Topic = defaultKafkaTopic
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &KafkaBus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
		}),
		logger: cfg.Logger,
	}, nil
}

func (b *KafkaBus) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Origin),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (b *KafkaBus) Subscribe(ctx context.Context, h Handler) error {
	for {
		m, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read sync message: %w", err)
		}
		var msg Message
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			b.logger.Warn("drop undecodable sync message", zap.Error(err))
			continue
		}
		h(ctx, msg)
	}
}

func (b *KafkaBus) Close() error {
	return errors.Join(b.writer.Close(), b.reader.Close())
}
