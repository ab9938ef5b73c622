package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka topics for published events.
const (
	TopicNotifications = "storefront.notifications"
	TopicActivity      = "storefront.activity"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON payload published to Kafka.
type Event struct {
	UserID     uint64         `json:"userId"`
	Kind       string         `json:"kind"`
	Message    string         `json:"message"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// KafkaSink publishes notifications and activity entries as JSON events keyed
// by user id, so one user's events stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaSink returns a sink producing to brokers.
func NewKafkaSink(brokers []string) *KafkaSink {
	cleaned := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			cleaned = append(cleaned, b)
		}
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cleaned...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

// Notify implements Notifier.
func (s *KafkaSink) Notify(ctx context.Context, userID uint64, message, kind string) error {
	return s.publish(ctx, TopicNotifications, Event{UserID: userID, Kind: kind, Message: message})
}

// LogActivity implements ActivityLogger.
func (s *KafkaSink) LogActivity(ctx context.Context, userID uint64, kind, message string, metadata map[string]any) error {
	return s.publish(ctx, TopicActivity, Event{UserID: userID, Kind: kind, Message: message, Metadata: metadata})
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

func (s *KafkaSink) publish(ctx context.Context, topic string, ev Event) error {
	ev.OccurredAt = s.now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatUint(ev.UserID, 10)),
		Value: data,
		Time:  ev.OccurredAt,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", topic, err)
	}
	return nil
}
