package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracingConfig selects the OTLP HTTP collector that receives startup and
// deep-link spans.
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
}

// TracingManager hands out spans. A nil or disabled manager hands out the
// no-op span already in the context.
type TracingManager struct {
	logger   *zap.SugaredLogger
	tracer   oteltrace.Tracer
	provider *sdktrace.TracerProvider
}

// NewTracingManager exports spans when cfg.Enabled is set.
func NewTracingManager(logger *zap.SugaredLogger, cfg TracingConfig) (*TracingManager, error) {
	tm := &TracingManager{logger: logger}
	if !cfg.Enabled {
		return tm, nil
	}

	provider, err := newTracerProvider(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tm.provider = provider
	tm.tracer = provider.Tracer(cfg.ServiceName)
	logger.Infow("OpenTelemetry tracing initialized",
		"endpoint", cfg.OTLPEndpoint,
		"sample_rate", cfg.SampleRate)
	return tm, nil
}

func newTracerProvider(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	), nil
}

// IsEnabled reports whether spans are exported.
func (tm *TracingManager) IsEnabled() bool {
	return tm != nil && tm.tracer != nil
}

// StartSpan starts a span named name under ctx.
func (tm *TracingManager) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	if !tm.IsEnabled() {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	return tm.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// TraceStartupStep starts the span of one startup step.
func (tm *TracingManager) TraceStartupStep(ctx context.Context, step string) (context.Context, oteltrace.Span) {
	return tm.StartSpan(ctx, "startup.step", attribute.String("startup.step", step))
}

// TraceDeepLink starts the span of one deep-link delivery.
func (tm *TracingManager) TraceDeepLink(ctx context.Context, key string) (context.Context, oteltrace.Span) {
	return tm.StartSpan(ctx, "deeplink.deliver", attribute.String("deeplink.key", key))
}

// EndSpan marks span failed when err is set, then ends it.
func EndSpan(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Close flushes pending spans.
func (tm *TracingManager) Close(ctx context.Context) error {
	if tm == nil || tm.provider == nil {
		return nil
	}
	tm.logger.Info("Shutting down OpenTelemetry tracing")
	return tm.provider.Shutdown(ctx)
}
