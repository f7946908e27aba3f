package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/contactbook/internal/domain"
	pkgkafka "github.com/utafrali/contactbook/pkg/kafka"
)

// MailConsumerGroup is the consumer group delivering queued mail.
const MailConsumerGroup = "contactbook-mailer"

// idempotencyTTL is how long delivered event IDs are remembered.
const idempotencyTTL = 24 * time.Hour

// MailConsumerHandler delivers mail.requested events.
type MailConsumerHandler struct {
	deliverer Deliverer
	logger    *slog.Logger
}

// NewMailConsumerHandler creates a new mail consumer handler.
func NewMailConsumerHandler(deliverer Deliverer, logger *slog.Logger) *MailConsumerHandler {
	return &MailConsumerHandler{deliverer: deliverer, logger: logger}
}

// Handle delivers a mail request event. Malformed requests are dropped since
// retrying cannot fix them; delivery errors are returned so the consumer
// retries and eventually dead-letters the message.
func (h *MailConsumerHandler) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	if evt.EventType != EventTypeMailRequested {
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", evt.EventType),
			slog.String("event_id", evt.EventID),
		)
		return nil
	}

	req, err := pkgkafka.Decode[domain.MailRequest](evt)
	if err != nil || !req.Valid() {
		h.logger.ErrorContext(ctx, "dropping malformed mail request",
			slog.String("event_id", evt.EventID),
		)
		return nil
	}

	if err = h.deliverer.Deliver(ctx, req); err != nil {
		mailDispatched.WithLabelValues("kafka", string(req.Kind), outcomeFailed).Inc()
		return fmt.Errorf("deliver %s mail: %w", req.Kind, err)
	}

	mailDispatched.WithLabelValues("kafka", string(req.Kind), outcomeSent).Inc()
	return nil
}

// MailConsumerConfig configures NewMailConsumer.
type MailConsumerConfig struct {
	Brokers []string
	Topic   string
}

// NewMailConsumer builds the consumer that delivers queued mail. Event IDs are
// tracked in Redis so redelivered events are not mailed twice, and messages
// that keep failing go to the dead-letter topic.
func NewMailConsumer(
	cfg MailConsumerConfig,
	handler *MailConsumerHandler,
	client redis.UniversalClient,
	dlq pkgkafka.DeadLetterPublisher,
	logger *slog.Logger,
) *pkgkafka.Consumer {
	store := pkgkafka.NewRedisIdempotencyStore(client, "contactbook:mail:seen:", idempotencyTTL)

	return pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.Brokers,
		GroupID:  MailConsumerGroup,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(store, handler.Handle, logger), logger, pkgkafka.WithDeadLetter(dlq))
}
