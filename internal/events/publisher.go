package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"carrental/pkg/kafka"
	"carrental/pkg/logger"
	"carrental/pkg/middleware"
)

// Publisher emits one domain event. key selects the partition, so events of
// the same car or room stay ordered.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

func build(ctx context.Context, source, eventType, key string, payload any) (kafka.Message, error) {
	msg, err := kafka.NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventType(eventType).
		WithRequestID(middleware.RequestIDFromContext(ctx)).
		WithSource(source).
		Build()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	return msg, nil
}

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) Publisher {
	return &kafkaPublisher{producer: producer, source: source}
}

func (p *kafkaPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	msg, err := build(ctx, p.source, eventType, key, payload)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

// Dispatcher delivers events synchronously to in-process subscribers. It
// stands in for the Kafka bus when EVENTS_BACKEND=inline.
type Dispatcher struct {
	mu          sync.RWMutex
	source      string
	handlers    map[string][]kafka.MessageHandler
	middlewares []kafka.ConsumerMiddleware
	log         *logger.Logger
}

func NewDispatcher(source string, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		source:   source,
		handlers: make(map[string][]kafka.MessageHandler),
		log:      log,
	}
}

func (d *Dispatcher) Use(mw kafka.ConsumerMiddleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, mw)
}

func (d *Dispatcher) Subscribe(eventType string, handler kafka.MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

func (d *Dispatcher) Publish(ctx context.Context, eventType, key string, payload any) error {
	msg, err := build(ctx, d.source, eventType, key, payload)
	if err != nil {
		return err
	}

	d.mu.RLock()
	handlers := d.handlers[eventType]
	middlewares := d.middlewares
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		wrapped := h
		for i := len(middlewares) - 1; i >= 0; i-- {
			mw, next := middlewares[i], wrapped
			wrapped = func(ctx context.Context, m kafka.Message) error {
				return mw(ctx, m, next)
			}
		}
		if err := wrapped(ctx, msg); err != nil {
			d.log.Warn("Inline event handler failed",
				"event_type", eventType,
				"event_id", msg.GetEventID(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopPublisher struct{}

// NewNoopPublisher drops every event.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, string, any) error {
	return nil
}
