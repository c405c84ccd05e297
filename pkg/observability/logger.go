package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Log attribute keys.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"
	KeyService = "service"
	KeyEnv     = "env"
	KeyMode    = "mode"
	KeyPhase   = "phase"
	KeyUnit    = "unit"
)

type scopeKey struct{}

// scope is the migration position a context carries into log records.
type scope struct {
	phase string
	unit  string
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)

	return s
}

// WithPhase marks records logged under ctx as belonging to a pipeline phase.
func WithPhase(ctx context.Context, phase string) context.Context {
	s := scopeFrom(ctx)
	s.phase = phase

	return context.WithValue(ctx, scopeKey{}, s)
}

// WithUnit marks records logged under ctx as concerning the unit with the given ID.
func WithUnit(ctx context.Context, id string) context.Context {
	s := scopeFrom(ctx)
	s.unit = id

	return context.WithValue(ctx, scopeKey{}, s)
}

// RunHandler decorates records with the run's identity and the position carried by
// the record's context: the active span, the pipeline phase and the unit being migrated.
// Identity attributes live on the inner handler so groups opened later do not nest them.
type RunHandler struct {
	next slog.Handler
}

// NewRunHandler wraps next with the identity described by cfg.
func NewRunHandler(next slog.Handler, cfg Config) *RunHandler {
	identity := make([]slog.Attr, 0, 3)
	identity = append(identity, slog.String(KeyService, cfg.ServiceName), slog.String(KeyMode, string(cfg.Mode)))

	if cfg.Environment != "" {
		identity = append(identity, slog.String(KeyEnv, cfg.Environment))
	}

	return &RunHandler{next: next.WithAttrs(identity)}
}

// Enabled reports whether the inner handler accepts level.
func (h *RunHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle appends the context's position to record and passes it on.
func (h *RunHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(slog.String(KeyTraceID, sc.TraceID().String()), slog.String(KeySpanID, sc.SpanID().String()))
	}

	s := scopeFrom(ctx)
	if s.phase != "" {
		record.AddAttrs(slog.String(KeyPhase, s.phase))
	}

	if s.unit != "" {
		record.AddAttrs(slog.String(KeyUnit, s.unit))
	}

	if err := h.next.Handle(ctx, record); err != nil {
		return fmt.Errorf("run handler: %w", err)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (h *RunHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (h *RunHandler) WithGroup(name string) slog.Handler {
	return &RunHandler{next: h.next.WithGroup(name)}
}
