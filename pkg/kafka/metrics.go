package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish outcomes used as the result label.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_publish_total",
			Help: "Kafka publish attempts by topic and result",
		},
		[]string{"topic", "result"},
	)

	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"topic"},
	)

	messageBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_message_bytes",
			Help:    "Size of published event payloads",
			Buckets: prometheus.ExponentialBuckets(256, 2, 8),
		},
		[]string{"topic"},
	)
)
