package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "contactbook"

// Consumer outcomes recorded by consumerMessages.
const (
	outcomeReceived     = "received"
	outcomeProcessed    = "processed"
	outcomeFailed       = "failed"
	outcomeDeadLettered = "dead_lettered"
)

// Producer outcomes recorded by producerMessages.
const (
	outcomePublished = "published"
	outcomeError     = "error"
)

var (
	// consumerMessages counts consumed messages by topic, group and outcome.
	consumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "kafka",
			Name:      "consumer_messages_total",
			Help:      "Kafka messages seen by consumers, by outcome",
		},
		[]string{"topic", "consumer_group", "outcome"},
	)

	// duplicateEvents counts events skipped by IdempotentHandler.
	duplicateEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "kafka",
			Name:      "duplicate_events_total",
			Help:      "Kafka events skipped because their ID was already handled",
		},
		[]string{"event_type"},
	)

	// consumerDuration observes handler time including retries.
	consumerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "kafka",
			Name:      "consumer_processing_duration_seconds",
			Help:      "Time spent handling one Kafka message, retries included",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic", "consumer_group"},
	)

	// producerMessages counts publish attempts by topic and outcome.
	producerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "kafka",
			Name:      "producer_messages_total",
			Help:      "Kafka publish attempts, by outcome",
		},
		[]string{"topic", "outcome"},
	)

	// producerDuration observes the latency of a single publish.
	producerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "kafka",
			Name:      "producer_publish_duration_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
