package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix is the prefix of dead-letter topics.
const DLQTopicPrefix = TopicPrefix + ".dlq"

const (
	dlqHeaderPrefix = "dlq."
	// maxDLQErrorLen caps the error header; handler errors can embed whole
	// SMTP transcripts.
	maxDLQErrorLen = 1024
)

// DLQProducer copies messages that could not be processed to a dead-letter
// topic for later inspection or replay.
type DLQProducer struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewDLQProducer creates a DLQ producer writing synchronously, one message at
// a time, and keyed like the source so replays keep their ordering.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           100 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &DLQProducer{writer: w, logger: logger, now: time.Now}
}

// DLQTopic constructs the DLQ topic name for a given source topic.
func DLQTopic(originalTopic string) string {
	return DLQTopicPrefix + "." + originalTopic
}

// Publish copies msg to its dead-letter topic with headers recording where it
// came from, when and why it failed. Headers left by an earlier dead-lettering
// are replaced rather than repeated.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, lastErr error, consumerGroup string) error {
	topic := DLQTopic(msg.Topic)

	headers := make([]kafka.Header, 0, len(msg.Headers)+6)
	for _, h := range msg.Headers {
		if !strings.HasPrefix(h.Key, dlqHeaderPrefix) {
			headers = append(headers, h)
		}
	}
	now := time.Now
	if d.now != nil {
		now = d.now
	}
	headers = append(headers,
		dlqHeader("original_topic", msg.Topic),
		dlqHeader("original_partition", strconv.Itoa(msg.Partition)),
		dlqHeader("original_offset", strconv.FormatInt(msg.Offset, 10)),
		dlqHeader("consumer_group", consumerGroup),
		dlqHeader("failed_at", now().UTC().Format(time.RFC3339)),
	)
	if lastErr != nil {
		reason := lastErr.Error()
		if len(reason) > maxDLQErrorLen {
			reason = reason[:maxDLQErrorLen]
		}
		headers = append(headers, dlqHeader("error", reason))
	}

	err := d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to publish message to DLQ",
			slog.String("dlq_topic", topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish to DLQ %s: %w", topic, err)
	}

	d.logger.WarnContext(ctx, "message sent to DLQ",
		slog.String("dlq_topic", topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("consumer_group", consumerGroup),
	)
	return nil
}

func dlqHeader(name, value string) kafka.Header {
	return kafka.Header{Key: dlqHeaderPrefix + name, Value: []byte(value)}
}

func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
