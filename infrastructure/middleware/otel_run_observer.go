package middleware

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

const tracerName = "github.com/ahrav/go-vidrank/engine"

var _ ports.RunObserver = (*OTelRunObserver)(nil)

// OTelRunObserver opens one span per orchestration stage. Failures recorded
// by the stage become span events; a fatal stage error sets the span status.
type OTelRunObserver struct {
	tracer trace.Tracer
	logger *slog.Logger
}

// NewOTelRunObserver creates an observer. A nil tracer uses the global
// provider; a nil logger discards stage logs.
func NewOTelRunObserver(tracer trace.Tracer, logger *slog.Logger) *OTelRunObserver {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OTelRunObserver{tracer: tracer, logger: logger}
}

// StageStarted implements ports.RunObserver.
func (o *OTelRunObserver) StageStarted(ctx context.Context, runID, stage string, items int) context.Context {
	ctx, _ = o.tracer.Start(ctx, "vidrank."+stage,
		trace.WithAttributes(
			attribute.String("vidrank.run_id", runID),
			attribute.String("vidrank.stage", stage),
			attribute.Int("vidrank.items", items),
		),
	)
	o.logger.Debug("stage started", "run_id", runID, "stage", stage, "items", items)
	return ctx
}

// StageFinished implements ports.RunObserver.
func (o *OTelRunObserver) StageFinished(ctx context.Context, stage string, failures []domain.Failure, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(attribute.Int("vidrank.failures", len(failures)))
	for _, f := range failures {
		span.AddEvent("vidrank.failure", trace.WithAttributes(
			attribute.String("kind", string(f.Kind)),
			attribute.String("item_id", f.ItemID),
			attribute.String("locator", f.Locator),
			attribute.String("dimension", string(f.Dimension)),
			attribute.Int("attempts", f.Attempts),
			attribute.String("message", f.Message),
		))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Debug("stage failed", "stage", stage, "err", err)
		return
	}
	span.SetStatus(codes.Ok, "")
	o.logger.Debug("stage finished", "stage", stage, "failures", len(failures))
}
