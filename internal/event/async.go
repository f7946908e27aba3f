// Package event moves mail requests from request handlers to the mailer,
// either in-process or through Kafka.
package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/contactbook/internal/domain"
)

// DefaultDeliveryTimeout bounds a single background delivery.
const DefaultDeliveryTimeout = 30 * time.Second

// Deliverer renders and sends a mail request.
type Deliverer interface {
	Deliver(ctx context.Context, req domain.MailRequest) error
}

// AsyncDispatcher delivers mail in background goroutines. Deliveries are
// detached from the request context so they outlive the response, and each
// is bounded by a timeout.
type AsyncDispatcher struct {
	deliverer Deliverer
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewAsyncDispatcher creates an in-process dispatcher. A non-positive timeout
// falls back to DefaultDeliveryTimeout.
func NewAsyncDispatcher(deliverer Deliverer, timeout time.Duration, logger *slog.Logger) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &AsyncDispatcher{deliverer: deliverer, timeout: timeout, logger: logger}
}

// Dispatch starts delivery and returns immediately.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, req domain.MailRequest) error {
	kind := string(req.Kind)
	mailDispatched.WithLabelValues("async", kind, outcomeQueued).Inc()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.deliverer.Deliver(ctx, req); err != nil {
			mailDispatched.WithLabelValues("async", kind, outcomeFailed).Inc()
			d.logger.ErrorContext(ctx, "background mail delivery failed",
				slog.String("kind", kind),
				slog.String("email", req.Email),
				slog.String("error", err.Error()),
			)
			return
		}
		mailDispatched.WithLabelValues("async", kind, outcomeSent).Inc()
	}()

	return nil
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *AsyncDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
