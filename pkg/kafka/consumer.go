package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kafkaconfig "carrental/pkg/kafka/config"
	"carrental/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader       messageReader
	dlqWriter    messageWriter
	topic        string
	groupID      string
	maxRetries   int
	retryBackoff time.Duration
	handler      MessageHandler
	middleware   []ConsumerMiddleware
	log          *logger.Logger
	closed       bool
	mu           sync.RWMutex
	wg           sync.WaitGroup
}

type ConsumerMiddleware func(ctx context.Context, msg Message, next MessageHandler) error

func NewConsumer(cfg *kafkaconfig.Config, log *logger.Logger, handler MessageHandler) (*Consumer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if cfg.ConsumerGroup == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.EventsTopic,
		GroupID:        cfg.ConsumerGroup,
		MaxWait:        cfg.ConsumerMaxWait,
		CommitInterval: cfg.ConsumerCommitInterval,
		SessionTimeout: cfg.ConsumerSessionTimeout,
		StartOffset:    cfg.ConsumerStartOffset,
		ErrorLogger:    errorLogger(log),
	})

	var dlqWriter messageWriter
	if cfg.EventsDLQ != "" {
		dlqWriter = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.EventsDLQ,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			ErrorLogger:  errorLogger(log),
		}
	}

	c := newConsumer(reader, dlqWriter, cfg.EventsTopic, cfg.ConsumerGroup, log, handler)
	c.maxRetries = cfg.ConsumerMaxRetries
	c.retryBackoff = cfg.ConsumerRetryBackoff
	return c, nil
}

func newConsumer(reader messageReader, dlqWriter messageWriter, topic, groupID string, log *logger.Logger, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:    reader,
		dlqWriter: dlqWriter,
		topic:     topic,
		groupID:   groupID,
		handler:   handler,
		log:       log,
	}
}

func (c *Consumer) Use(middleware ConsumerMiddleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, middleware)
}

// Name identifies the consumer when it runs as a background worker.
func (c *Consumer) Name() string {
	return "kafka-consumer:" + c.topic
}

// Start blocks, consuming until ctx is cancelled. Offsets are committed only
// after the handler succeeded or the message was parked in the DLQ.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConsumerClosed
	}
	c.wg.Add(1)
	c.mu.RUnlock()
	defer c.wg.Done()

	c.log.Info("Kafka consumer started", "topic", c.topic, "group", c.groupID)

	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrConsumerClosed
			}
			c.log.Error("Failed to fetch message", "topic", c.topic, "error", err)
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		msg := fromKafkaMessage(km)
		if err := c.processMessage(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("Failed to process message",
				"topic", c.topic,
				"offset", km.Offset,
				"event_type", msg.GetEventType(),
				"error", err,
			)
		}

		if err := c.reader.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
			c.log.Error("Failed to commit offset", "topic", c.topic, "offset", km.Offset, "error", err)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg Message) error {
	c.mu.RLock()
	chain := c.middleware
	c.mu.RUnlock()

	handler := c.handler
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i]
		next := handler
		handler = func(ctx context.Context, m Message) error {
			return mw(ctx, m, next)
		}
	}

	for {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}

		retries := msg.GetRetryCount()
		if ShouldRetry(err, retries, c.maxRetries) {
			msg.IncrementRetryCount()
			c.log.Warn("Retrying message",
				"attempt", retries+1,
				"max_retries", c.maxRetries,
				"event_type", msg.GetEventType(),
				"error", err,
			)
			if !sleep(ctx, c.retryBackoff*time.Duration(retries+1)) {
				return ctx.Err()
			}
			continue
		}

		if c.dlqWriter != nil {
			if dlqErr := c.sendToDLQ(ctx, msg, err); dlqErr != nil {
				return errors.Join(err, fmt.Errorf("failed to send to DLQ: %w", dlqErr))
			}
			c.log.Warn("Message sent to DLQ",
				"retries", retries,
				"event_type", msg.GetEventType(),
				"error_type", ClassifyError(err).String(),
				"error", err,
			)
		}
		return err
	}
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg Message, originalErr error) error {
	msg.Headers[HeaderOriginalTopic] = c.topic
	msg.Headers[HeaderDLQError] = originalErr.Error()
	msg.Headers["dlq-consumer-group"] = c.groupID
	msg.Timestamp = time.Now().UTC()

	return c.dlqWriter.WriteMessages(ctx, toKafkaMessage(msg))
}

// Close waits for Start to return; cancel its context first.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.reader.Close()
	c.wg.Wait()

	if c.dlqWriter != nil {
		err = errors.Join(err, c.dlqWriter.Close())
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
