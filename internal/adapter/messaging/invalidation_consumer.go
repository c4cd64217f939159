package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/port"
)

// InvalidationConsumer drops cached snapshots for organizations whose log
// grew, including appends made by upstream workflows that bypass this service.
type InvalidationConsumer struct {
	consumer Consumer
	cache    port.CacheRepository
	logger   *zap.Logger
}

func NewInvalidationConsumer(consumer Consumer, cache port.CacheRepository, logger *zap.Logger) *InvalidationConsumer {
	return &InvalidationConsumer{
		consumer: consumer,
		cache:    cache,
		logger:   logger,
	}
}

// Start reads until ctx is done. Malformed messages are logged and skipped.
func (c *InvalidationConsumer) Start(ctx context.Context) error {
	c.logger.Info("invalidation consumer started")

	for {
		msg, err := c.consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.logger.Info("context done, exiting kafka read loop", zap.Error(err))
				break
			}
			c.logger.Error("error reading from kafka", zap.Error(err))
			continue
		}

		if err := c.Handle(ctx, *msg); err != nil {
			c.logger.Warn("failed to handle event notification",
				zap.Error(err),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		}
	}

	c.logger.Info("invalidation consumer finished")
	return nil
}

func (c *InvalidationConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	ctx = extractTraceContext(ctx, msg.Headers)

	var notification EventNotification
	if err := json.Unmarshal(msg.Value, &notification); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	if notification.OrganizationID <= 0 {
		return fmt.Errorf("notification %s has no organization", notification.EventID)
	}

	if err := c.cache.InvalidateSnapshot(ctx, notification.OrganizationID); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	c.logger.Debug("invalidated snapshot",
		zap.Int64("organization_id", notification.OrganizationID),
		zap.String("event_id", notification.EventID),
	)
	return nil
}

func (c *InvalidationConsumer) Close() error {
	return c.consumer.Close()
}

func extractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		carrier[string(header.Key)] = string(header.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
