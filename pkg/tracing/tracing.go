// Package tracing wires OpenTelemetry spans around each domain agent's
// Handle call and the Script Executor's subprocess run, per SPEC_FULL.md
// §8's domain-stack entry for go.opentelemetry.io/otel.
//
// Grounded on nevindra-oasis's observer package: a package-level Init that
// builds an OTLP-HTTP trace exporter and sdktrace.TracerProvider from
// standard OTEL_EXPORTER_OTLP_* env vars, installs it as the global
// provider, and returns a shutdown func; callers elsewhere just call
// otel.Tracer(name).Start like any other instrumented package. Metrics and
// log providers are not wired — this repo already has pkg/agent/metrics.go
// and log/slog for those concerns, so only the tracing half of observer.go
// earns its keep here.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ShutdownFunc flushes and stops the trace provider. Safe to call even if
// Init failed to reach the network — the exporter buffers rather than
// dialing eagerly.
type ShutdownFunc func(context.Context) error

// Init builds and installs a global TracerProvider exporting spans via
// OTLP/HTTP. serviceName is attached to every span's resource attributes.
// Configuration (endpoint, headers, TLS) comes entirely from the standard
// OTEL_EXPORTER_OTLP_* environment variables, matching observer.Init's
// "standard OTEL env vars" contract.
func Init(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracing: build otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resourceFor(serviceName)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns a named tracer from the globally installed provider (a
// no-op tracer before Init is called, matching otel's documented
// zero-value behaviour).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartAgentSpan starts a span around one domain agent's Handle call,
// tagged with the agent type and session id for correlation.
func StartAgentSpan(ctx context.Context, agentType, sessionID string) (context.Context, trace.Span) {
	ctx, span := Tracer("github.com/pipelinecore/orchestrator/pkg/agent").Start(ctx, "agent."+agentType)
	span.SetAttributes(
		attrString("agent.type", agentType),
		attrString("session.id", sessionID),
	)
	return ctx, span
}

// StartExecutionSpan starts a span around one Script Executor subprocess
// run, tagged with the execution id and script id.
func StartExecutionSpan(ctx context.Context, executionID, scriptID string) (context.Context, trace.Span) {
	ctx, span := Tracer("github.com/pipelinecore/orchestrator/pkg/executor").Start(ctx, "executor.run")
	span.SetAttributes(
		attrString("execution.id", executionID),
		attrString("script.id", scriptID),
	)
	return ctx, span
}

// EndSpan records err on span (if non-nil) and ends it, the same
// record-then-end sequence observer.go's otelSpan.Error/End pair applies.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func attrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func resourceFor(serviceName string) *resource.Resource {
	r, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)))
	if err != nil {
		return resource.Default()
	}
	return r
}
