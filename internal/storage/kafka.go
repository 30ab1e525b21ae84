package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/IshaanNene/TableScout/internal/types"
)

// KafkaStorage publishes each record as a JSON message on the topic
// TopicPrefix + FileBase(kind), keyed by restaurant id so that all records
// of one restaurant land on the same partition.
type KafkaStorage struct {
	writer *kafka.Writer
	prefix string
	count  int
	logger *slog.Logger
}

func NewKafkaStorage(brokers []string, topicPrefix string, logger *slog.Logger) (*KafkaStorage, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaStorage{
		writer: w,
		prefix: topicPrefix,
		logger: logger.With("component", "kafka_storage"),
	}, nil
}

func (s *KafkaStorage) Name() string { return "kafka" }

// Topic returns the topic records of kind are published on.
func (s *KafkaStorage) Topic(kind types.RecordKind) string {
	return s.prefix + FileBase(kind)
}

func recordMessage(topic string, rec types.Record) (kafka.Message, error) {
	value, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshaling %s record: %w", rec.Kind(), err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(rec.EntityID(), 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(rec.Kind())},
		},
	}, nil
}

func (s *KafkaStorage) Store(recs []types.Record) error {
	msgs := make([]kafka.Message, 0, len(recs))
	for _, rec := range recs {
		msg, err := recordMessage(s.Topic(rec.Kind()), rec)
		if err != nil {
			s.logger.Warn("record skipped", "kind", rec.Kind(), "id", rec.EntityID(), "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}

	if len(msgs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		s.logger.Error("failed to publish batch", "count", len(msgs), "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	s.count += len(msgs)
	s.logger.Debug("batch published", "count", len(msgs), "total", s.count)
	return nil
}

func (s *KafkaStorage) Close() error {
	s.logger.Info("kafka storage closing", "total_records", s.count)
	return s.writer.Close()
}
