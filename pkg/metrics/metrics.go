package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished counts device events accepted and durably committed.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_events_published_total",
			Help: "Total number of device events committed",
		},
		[]string{"type"},
	)

	// FanoutSize observes the number of inbox entries written per event.
	FanoutSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_event_fanout_size",
			Help:    "Inbox entries created per published event",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// LiveDeliveries counts live pushes by outcome (sent|dropped).
	LiveDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_live_deliveries_total",
			Help: "Live push deliveries attempted, labelled by outcome",
		},
		[]string{"outcome"},
	)

	// OpenStreams tracks currently registered live channels.
	OpenStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_open_streams",
			Help: "Number of currently open live delivery channels",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
