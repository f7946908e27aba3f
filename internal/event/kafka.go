package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/contactbook/internal/domain"
	pkgkafka "github.com/utafrali/contactbook/pkg/kafka"
	"github.com/utafrali/contactbook/pkg/logger"
)

// EventTypeMailRequested is the event type of queued mail requests.
const EventTypeMailRequested = "mail.requested"

// SourceContactbook identifies events published by this service.
const SourceContactbook = "contactbook"

// Publisher publishes events to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// KafkaDispatcher queues mail requests on a Kafka topic for MailConsumerHandler.
type KafkaDispatcher struct {
	publisher Publisher
	topic     string
	logger    *slog.Logger
}

// NewKafkaDispatcher creates a dispatcher publishing to topic.
func NewKafkaDispatcher(publisher Publisher, topic string, logger *slog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{publisher: publisher, topic: topic, logger: logger}
}

// Dispatch publishes req keyed by recipient, so mails to one account stay ordered.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, req domain.MailRequest) error {
	kind := string(req.Kind)

	evt, err := pkgkafka.NewEvent(EventTypeMailRequested, req.Email, SourceContactbook, req)
	if err != nil {
		mailDispatched.WithLabelValues("kafka", kind, outcomeFailed).Inc()
		return fmt.Errorf("build mail event: %w", err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).WithMetadata("kind", kind)

	if err := d.publisher.Publish(ctx, d.topic, evt); err != nil {
		mailDispatched.WithLabelValues("kafka", kind, outcomeFailed).Inc()
		return fmt.Errorf("publish mail event: %w", err)
	}

	mailDispatched.WithLabelValues("kafka", kind, outcomeQueued).Inc()
	d.logger.DebugContext(ctx, "mail request queued",
		slog.String("event_id", evt.EventID),
		slog.String("kind", kind),
	)
	return nil
}
