package tracing

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

type ProviderConfig struct {
	ServiceName string
	// Exporter is "console", "otlp" or "none".
	Exporter string
	OTLP     exporters.OTLPConfig
}

// NewProvider builds the SDK tracer provider, registers it globally and points StartSpan at it.
// The returned provider must be shut down to flush pending spans.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger ectologger.Logger) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	}

	switch cfg.Exporter {
	case "", "none":
	case "console":
		opts = append(opts, sdktrace.WithSyncer(exporters.NewConsoleExporter(logger)))
	case "otlp":
		exp, err := exporters.NewOTLPExporter(ctx, cfg.OTLP)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	SetTracer(provider.Tracer(cfg.ServiceName))

	return provider, nil
}
