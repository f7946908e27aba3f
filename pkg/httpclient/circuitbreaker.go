package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// Doer executes HTTP requests. *http.Client and the AWS SDK's HTTPClient
// option both use this shape.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CircuitBreakerConfig configures a breaker. The breaker opens once at least
// MinRequests were seen in the current Interval and FailureRatio of them
// failed; it stays open for Timeout and then lets MaxRequests probes through.
type CircuitBreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration // 0 keeps closed-state counts forever
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultCircuitBreakerConfig opens after half of at least five requests fail
// within a minute and probes again after 30s.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

func (c CircuitBreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

var (
	// circuitBreakerState mirrors gobreaker.State: 0 closed, 1 half-open, 2 open.
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "contactbook",
		Subsystem: "httpclient",
		Name:      "circuit_breaker_state",
		Help:      "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})

	circuitBreakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contactbook",
		Subsystem: "httpclient",
		Name:      "circuit_breaker_rejections_total",
		Help:      "Requests rejected without being sent because the breaker was open.",
	}, []string{"name"})
)

// ErrCircuitOpen is returned when the breaker rejects a request.
var ErrCircuitOpen = gobreaker.ErrOpenState

// failedResponse carries a response that counts against the remote through
// the breaker, so the caller still receives it.
type failedResponse struct {
	resp *http.Response
}

func (e *failedResponse) Error() string {
	return fmt.Sprintf("remote failure: status %d", e.resp.StatusCode)
}

// remoteFailure reports whether resp says the remote is unhealthy. S3 answers
// overload with 503 SlowDown and some gateways with 429.
func remoteFailure(resp *http.Response) bool {
	return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
}

// CircuitBreakerClient wraps a Doer with circuit breaker protection. Transport
// errors, 5xx and 429 responses count as failures; caller cancellation does not.
type CircuitBreakerClient struct {
	next    Doer
	breaker *gobreaker.CircuitBreaker[*http.Response]
	name    string
}

// NewCircuitBreakerClient wraps next with a circuit breaker.
func NewCircuitBreakerClient(next Doer, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	logger = logger.With(slog.String("breaker", cfg.Name))
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.readyToTrip,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			circuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	}

	circuitBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return &CircuitBreakerClient{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		name:    cfg.Name,
	}
}

// Do executes req through the circuit breaker.
func (c *CircuitBreakerClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.next.Do(req)
		if err != nil {
			return nil, err
		}
		if remoteFailure(resp) {
			return nil, &failedResponse{resp: resp}
		}
		return resp, nil
	})

	var failed *failedResponse
	switch {
	case err == nil:
		return resp, nil
	case errors.As(err, &failed):
		return failed.resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		circuitBreakerRejections.WithLabelValues(c.name).Inc()
	}
	return nil, fmt.Errorf("%s: %w", c.name, err)
}

// State returns the current state of the circuit breaker.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
