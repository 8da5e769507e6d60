package kafkamiddleware

import (
	"context"
	"time"

	"carrental/pkg/kafka"
	"carrental/pkg/logger"
)

func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"request_id", msg.GetRequestID(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Error("Failed to publish event", append(attrs, "error", err)...)
		} else {
			log.Debug("Event published", attrs...)
		}
		return err
	}
}

func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Warn("Failed to process event", append(attrs, "error", err)...)
		} else {
			log.Debug("Event processed", attrs...)
		}
		return err
	}
}
