package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span represents a logical unit of work tied to a request trace.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	err    error
}

type spanBaseKey struct{}

// StartSpan derives a child span from the provided context, enriching the logger
// with tracing metadata. It returns the derived context and the span handle.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Span attributes are layered on the logger the outermost span started from so nested
	// spans do not repeat span_id and span_name.
	logger, ok := ctx.Value(spanBaseKey{}).(*slog.Logger)
	if !ok {
		logger = FromContext(ctx)
	}
	parent := ScopeFrom(ctx)
	spanID := uuid.NewString()

	traceID := parent.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
		logger = logger.With(slog.String("trace_id", traceID))
	}
	ctx = context.WithValue(ctx, spanBaseKey{}, logger)

	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parent.SpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parent.SpanID))
	}

	ctx = withScope(ctx, func(s *Scope) {
		s.TraceID = traceID
		s.SpanID = spanID
	})
	ctx = WithLogger(ctx, logger)

	span := &Span{
		name:   name,
		logger: logger,
		start:  time.Now(),
	}

	return ctx, span
}

// Fail marks the span as failed; End then logs at error level with err attached.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End finalizes the span and emits a completion log entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	if s.err != nil {
		s.logger.Error("span failed", slog.Duration("duration", time.Since(s.start)), slog.Any("error", s.err))
		return
	}
	s.logger.Debug("span completed", slog.Duration("duration", time.Since(s.start)))
}
