package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"tea_refill/internal/domain"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaEventLog appends every dispatched notification to a topic keyed by request id,
// so one request's events stay ordered on one partition.
type KafkaEventLog struct {
	writer *kafka.Writer
}

func NewKafkaEventLog(brokers []string, topic string) *KafkaEventLog {
	return &KafkaEventLog{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion:   logDeliveryFailure,
	}}
}

// logDeliveryFailure reports batches the async writer could not deliver, since
// WriteMessages returns before the broker acknowledges them.
func logDeliveryFailure(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		log.Printf("KafkaEventLog: delivery of event for %s failed: %v", m.Key, err)
	}
}

func (l *KafkaEventLog) PublishRequestEvent(ctx context.Context, event domain.RequestEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("KafkaEventLog: marshal: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.RequestID),
		Value: data,
		Time:  event.Timestamp,
	}
	if err := l.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("KafkaEventLog: write: %w", err)
	}
	return nil
}

func (l *KafkaEventLog) Close() error {
	return l.writer.Close()
}
