// Package logger builds JSON slog loggers that annotate every record logged
// with a context with the request's correlation ID, account and trace IDs.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const (
	fieldsKey contextKey = iota
	loggerKey
)

// requestFields are shared by every context derived from the request, so an
// account set deep in the middleware chain is visible to the access log.
type requestFields struct {
	mu            sync.RWMutex
	correlationID string
	account       string
}

// New creates a JSON logger on stdout for the given service and level.
func New(serviceName, level string) *slog.Logger {
	return NewWithWriter(serviceName, level, os.Stdout)
}

// NewWithWriter creates a JSON logger writing to w. Unknown levels fall back
// to info.
func NewWithWriter(serviceName, level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	})

	return slog.New(contextHandler{handler}).With(
		slog.String("service", serviceName),
	)
}

// ParseLevel maps names such as "debug" or "WARN" to a slog level.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// contextHandler adds request fields from the record's context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(Attrs(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// Attrs returns the correlation_id, account, trace_id and span_id carried by
// ctx. Absent values are omitted.
func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if id := CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	if account := AccountFromContext(ctx); account != "" {
		attrs = append(attrs, slog.String("account", account))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

func fieldsFrom(ctx context.Context) *requestFields {
	f, _ := ctx.Value(fieldsKey).(*requestFields)
	return f
}

// WithCorrelationID starts a new set of request fields carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, fieldsKey, &requestFields{correlationID: id})
}

// CorrelationIDFromContext extracts the correlation ID from the context.
func CorrelationIDFromContext(ctx context.Context) string {
	f := fieldsFrom(ctx)
	if f == nil {
		return ""
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.correlationID
}

// WithAccount records the authenticated account email. When ctx already
// carries request fields they are updated in place.
func WithAccount(ctx context.Context, email string) context.Context {
	if f := fieldsFrom(ctx); f != nil {
		f.mu.Lock()
		f.account = email
		f.mu.Unlock()
		return ctx
	}
	return context.WithValue(ctx, fieldsKey, &requestFields{account: email})
}

// AccountFromContext returns the account email recorded by WithAccount.
func AccountFromContext(ctx context.Context) string {
	f := fieldsFrom(ctx)
	if f == nil {
		return ""
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.account
}

// NewContext returns a new context with the given logger stored in it.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the request-scoped logger stored in context, or
// slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
