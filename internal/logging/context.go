package logging

import (
	"context"
	"log/slog"
)

// Scope identifies the work a log line belongs to: the HTTP request, its trace, the current
// span and the authenticated caller. Empty fields are unknown.
type Scope struct {
	RequestID string
	TraceID   string
	SpanID    string
	CallerID  string
}

type loggerKey struct{}

type scopeKey struct{}

// WithLogger stores the provided logger on the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the request-scoped logger or falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// ScopeFrom returns the scope recorded on ctx.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

func withScope(ctx context.Context, edit func(*Scope)) context.Context {
	s := ScopeFrom(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithRequest starts the scope of an HTTP request. The request id doubles as the trace id and
// both are attached to the context logger.
func WithRequest(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	ctx = withScope(ctx, func(s *Scope) {
		s.RequestID = requestID
		s.TraceID = requestID
	})
	return WithLogger(ctx, FromContext(ctx).With(
		slog.String("request_id", requestID),
		slog.String("trace_id", requestID),
	))
}

// WithCaller records the authenticated user on the scope and the context logger.
func WithCaller(ctx context.Context, userID string) context.Context {
	if ctx == nil || userID == "" {
		return ctx
	}
	ctx = withScope(ctx, func(s *Scope) { s.CallerID = userID })
	return WithLogger(ctx, FromContext(ctx).With(slog.String("caller_id", userID)))
}
