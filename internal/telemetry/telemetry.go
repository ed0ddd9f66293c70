// Package telemetry wires OpenTelemetry tracing around the analysis
// pipeline: one span per pipeline stage boundary. HTTP handlers (such
// as the metrics endpoint) are not instrumented.
package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"

	"github.com/aptgraph/aptgraph/internal/metrics"
)

const pipelineTracerName = "aptgraph.pipeline"

// NewStdoutProvider builds a TracerProvider that writes spans as JSON
// to w. Intended for local runs and tests; production deployments can
// swap in an OTLP exporter without changing StageHook or its callers.
func NewStdoutProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// StageHook wraps every pipeline stage boundary in a span named after
// the stage, tagging it "cached" true/false. It implements
// pipeline.StageHook structurally (see internal/pipeline).
type StageHook struct{}

// Start opens a span for stage, returning the span-carrying context
// and a closer that ends it. Cached stages still get a (near
// zero-length) span, so a trace shows every stage Analyze walked.
func (StageHook) Start(ctx context.Context, stage int, cached bool) (context.Context, func()) {
	label := metrics.StageLabel(stage)
	// Looked up per call, so spans go to the provider installed most
	// recently by NewStdoutProvider.
	spanCtx, span := otel.Tracer(pipelineTracerName).Start(ctx, "pipeline."+label,
		trace.WithAttributes(attribute.Bool("cached", cached)))
	return spanCtx, func() { span.End() }
}

// RecordError marks the current span (if any) as failed. Stage
// functions that return an error can call this before propagating it.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
