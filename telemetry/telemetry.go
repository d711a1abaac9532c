// Package telemetry wraps OpenTelemetry tracing around the
// Executor/Processor/Orchestrator control flow named in spec.md §5's
// scheduling model, as the ambient observability layer the expanded spec
// carries regardless of spec.md's feature-level Non-goals. Grounded on
// itsneelabh-gomind/telemetry/otel.go's OTelProvider (resource +
// TracerProvider setup, span-per-operation helper shape), narrowed from
// its OTLP/HTTP exporter pair to the stdout trace exporter — this kernel
// has no collector endpoint configured anywhere in config.Config, and a
// stdout exporter is the pack's own fallback idiom for "tracing without
// infrastructure" rather than a silently dropped feature.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process-wide TracerProvider and the tracer every
// Executor/Processor/Orchestrator span is created from.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init sets up tracing for serviceName. Pass enabled=false to install a
// no-op tracer (the default in tests and non-interactive runs that don't
// want the stdout exporter's console noise).
func Init(serviceName string, enabled bool) (*Provider, error) {
	if !enabled {
		return &Provider{tracer: otel.Tracer(serviceName)}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to create stdout exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(serviceName)}, nil
}

// Shutdown flushes and stops the exporter, a no-op for the disabled
// provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartSpan opens a span named for one kernel operation
// ("executor.execute_block", "processor.run", "orchestrator.run").
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// BlockAttrs builds the common attribute set attached to every
// per-ProtoBlock span.
func BlockAttrs(blockID string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("tac.block_id", blockID),
		attribute.Int("tac.attempt", attempt),
	}
}
