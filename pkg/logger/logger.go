package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	JSONFormat    = "json"
	ConsoleFormat = "console"

	ContextKeyRequestID contextKey = "requestID"
)

// Logger wraps zerolog so call sites depend on one type across the module.
type Logger struct {
	zerolog.Logger
}

// New builds a logger writing to stdout.
func New(level, format string) Logger {
	return NewWithWriter(level, format, os.Stdout)
}

// NewWithWriter builds a logger with an explicit sink. Unknown levels fall
// back to info; any format other than "json" gets the console writer.
func NewWithWriter(level, format string, w io.Writer) Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	if format == JSONFormat {
		logger = zerolog.New(w)
	}

	logger = logger.Level(parsed).With().Timestamp().Logger()

	return Logger{Logger: logger}
}

// WithComponent tags every record with the emitting component's name.
func (l Logger) WithComponent(name string) Logger {
	return Logger{Logger: l.Logger.With().Str("component", name).Logger()}
}

// WithContext folds the request id and any active trace span into the
// returned logger.
func (l Logger) WithContext(ctx context.Context) zerolog.Logger {
	logger := l.Logger

	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		logger = logger.With().Str("request_id", requestID).Logger()
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return logger
}

// WithRequestID returns a context carrying the request id WithContext reads.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, id)
}
