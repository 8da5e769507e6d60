package kafkamiddleware

import (
	"context"
	"time"

	"carrental/pkg/kafka"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrental_events_published_total",
		Help: "Domain events handed to the event bus, by type and outcome",
	}, []string{"event_type", "status"})

	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrental_events_consumed_total",
		Help: "Domain events processed by consumers, by type and outcome",
	}, []string{"event_type", "status"})

	eventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrental_event_duration_seconds",
		Help:    "Time spent publishing or handling one event",
		Buckets: prometheus.DefBuckets,
	}, []string{"direction"})
)

func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		eventDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())
		eventsPublished.WithLabelValues(msg.GetEventType(), outcome(err)).Inc()
		return err
	}
}

func MetricsConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		eventDuration.WithLabelValues("consume").Observe(time.Since(start).Seconds())
		eventsConsumed.WithLabelValues(msg.GetEventType(), outcome(err)).Inc()
		return err
	}
}

func outcome(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}
