package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	"github.com/carusalgiz/shop-cloudfront/pkg/outbox/utils"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Consumer feeds cart_events into the local cart service. Every instance
// must see every event, so the deduplication key and the consumer group
// are both scoped to the instance origin.
type Consumer struct {
	service *Service
	pool    *pgxpool.Pool
	logger  *zap.Logger
}

func NewConsumer(service *Service, pool *pgxpool.Pool, logger *zap.Logger) *Consumer {
	return &Consumer{service: service, pool: pool, logger: logger}
}

// Name is the deduplication key of this consumer.
func (c *Consumer) Name() string {
	return "storefront-cart-" + c.service.Origin()
}

// GroupID derives the per-instance consumer group from base.
func (c *Consumer) GroupID(base string) string {
	return base + "-" + c.service.Origin()
}

func (c *Consumer) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var envelope domain.EventWrapper
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		mylogger.Warn(ctx, c.logger, "skipping malformed cart message", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	if envelope.Event != domain.EventCartChanged {
		return nil
	}

	var event domain.CartChangedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		mylogger.Warn(ctx, c.logger, "skipping malformed cart payload", zap.Int64("event_id", envelope.EventID), zap.Error(err))
		return nil
	}

	if event.Origin == c.service.Origin() {
		return nil
	}

	if envelope.EventID == 0 {
		c.service.ApplyRemote(ctx, event)
		return nil
	}

	err := utils.ProcessWithDeduplication(ctx, c.pool, c.logger, c.Name(), envelope.EventID, func(ctx context.Context) error {
		c.service.ApplyRemote(ctx, event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error applying cart event: %w", err)
	}

	return nil
}
