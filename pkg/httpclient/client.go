// Package httpclient builds the outbound HTTP clients used for object storage:
// a pooled, traced and metered transport plus an optional circuit breaker.
package httpclient

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/contactbook/pkg/httpclient"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contactbook",
		Subsystem: "httpclient",
		Name:      "requests_total",
		Help:      "Outbound HTTP requests by client, method and status code.",
	}, []string{"client", "method", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "contactbook",
		Subsystem: "httpclient",
		Name:      "request_duration_seconds",
		Help:      "Outbound HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"client", "method"})
)

// Config holds HTTP client configuration.
type Config struct {
	// Name labels the client's spans and metrics.
	Name            string
	Timeout         time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns defaults for a client called name.
func DefaultConfig(name string) Config {
	return Config{
		Name:            name,
		Timeout:         30 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// New creates a pooled *http.Client whose requests carry W3C trace headers and
// are counted per status code. Retries are left to the caller; the AWS SDK
// brings its own retryer.
func New(cfg Config) *http.Client {
	def := DefaultConfig(cfg.Name)
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: NewTransport(cfg.Name, base),
		Timeout:   cfg.Timeout,
	}
}

// Transport wraps a RoundTripper with a client span and request metrics.
type Transport struct {
	name string
	base http.RoundTripper
}

// NewTransport instruments base, or http.DefaultTransport when base is nil.
func NewTransport(name string, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{name: name, base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.ServerAddress(req.URL.Hostname()),
			semconv.URLFull(req.URL.Redacted()),
		),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	requestDuration.WithLabelValues(t.name, req.Method).Observe(time.Since(start).Seconds())

	if err != nil {
		requestsTotal.WithLabelValues(t.name, req.Method, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	requestsTotal.WithLabelValues(t.name, req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}
