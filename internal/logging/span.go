package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one multi-step operation. A request's spans share its request id
// as trace id so their log lines can be grouped.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	err    error
}

// StartSpan derives a child span from ctx and returns a context whose logger
// carries the span metadata.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	if TraceIDFromContext(ctx) == "" {
		traceID := RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parent := SpanIDFromContext(ctx); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}

	ctx = WithSpanID(WithLogger(ctx, logger), spanID)
	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Fail records err as the outcome of the span. The last non-nil error wins.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End emits the completion entry, at warn level when the span failed.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Warn("span failed", elapsed, slog.Any("error", s.err))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
