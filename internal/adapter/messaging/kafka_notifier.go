package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

// EventNotification announces that an event was appended to an
// organization's log. Consumers re-read the log; the payload is not carried.
type EventNotification struct {
	EventID        string    `json:"event_id"`
	OrganizationID int64     `json:"organization_id"`
	Kind           string    `json:"kind"`
	EventableType  string    `json:"eventable_type"`
	EventableID    int64     `json:"eventable_id"`
	EventTime      time.Time `json:"event_time"`
}

func NewEventNotification(event domain.Event) EventNotification {
	return EventNotification{
		EventID:        event.EventID.String(),
		OrganizationID: event.OrganizationID,
		Kind:           string(event.Kind),
		EventableType:  event.EventableType,
		EventableID:    event.EventableID,
		EventTime:      event.EventTime,
	}
}

type KafkaNotifier struct {
	producer Producer
	logger   *zap.Logger
}

func NewKafkaNotifier(producer Producer, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, logger: logger}
}

// Notify publishes keyed by organization so one organization's notifications
// stay ordered within a partition.
func (n *KafkaNotifier) Notify(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(NewEventNotification(event))
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrganizationID, 10)),
		Value: payload,
	}
	if err := n.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	n.logger.Debug("sent event notification",
		zap.String("event_id", event.EventID.String()),
		zap.Int64("organization_id", event.OrganizationID),
	)
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

// NopNotifier is used when no brokers are configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, domain.Event) error { return nil }
