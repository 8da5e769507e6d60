// Package metrics holds the Prometheus collectors for the availability ledger,
// the booking coordinator and the chat relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK          = "ok"
	ResultConflict    = "conflict"
	ResultNotFound    = "not_found"
	ResultInvalid     = "invalid"
	ResultError       = "error"
	ResultCompensated = "compensated"

	TriggerBackground = "background"
	TriggerRead       = "read"
)

var (
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrental_reservations_total",
		Help: "Reserve attempts on the availability ledger, by result",
	}, []string{"result"})

	Releases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrental_releases_total",
		Help: "Reservations returned to free, by reason",
	}, []string{"reason"})

	SweptCars = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrental_swept_cars_total",
		Help: "Cars released because their reservation window lapsed",
	}, []string{"trigger"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrental_sweep_duration_seconds",
		Help:    "Duration of one sweep pass",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})

	Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrental_bookings_total",
		Help: "Booking attempts, by result",
	}, []string{"result"})

	ChatConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "carrental_chat_connections",
		Help: "Open chat connections",
	})

	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrental_chat_messages_total",
		Help: "Chat sends, by result",
	}, []string{"result"})

	ChatDroppedPeers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carrental_chat_dropped_peers_total",
		Help: "Connections dropped because their outbound queue was full or closed",
	})

	ListingCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrental_listing_cache_total",
		Help: "Listing cache lookups, by outcome",
	}, []string{"outcome"})
)
