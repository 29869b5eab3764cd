package exporters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Protocol is the OTLP transport spans are shipped with.
type Protocol string

const (
	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http"
)

const defaultOTLPTimeout = 10 * time.Second

// defaultEndpoints are the collector's standard local listeners per transport.
var defaultEndpoints = map[Protocol]string{
	ProtocolGRPC: "localhost:4317",
	ProtocolHTTP: "localhost:4318",
}

// OTLPConfig describes where the dedup service ships its spans.
type OTLPConfig struct {
	// Endpoint is the collector address as host:port. An http:// or https:// prefix is
	// accepted and decides Insecure.
	Endpoint string

	// Protocol defaults to grpc.
	Protocol Protocol

	// Insecure disables TLS (for local collectors)
	Insecure bool

	// Headers are sent with every export, typically collector auth.
	Headers map[string]string

	Timeout time.Duration
}

// DefaultOTLPConfig returns a configuration for a collector on localhost.
func DefaultOTLPConfig() OTLPConfig {
	return OTLPConfig{
		Endpoint: defaultEndpoints[ProtocolGRPC],
		Protocol: ProtocolGRPC,
		Insecure: true,
		Timeout:  defaultOTLPTimeout,
	}
}

// normalize fills unset fields and resolves a scheme-prefixed endpoint.
func (c OTLPConfig) normalize() (OTLPConfig, error) {
	c.Protocol = Protocol(strings.ToLower(strings.TrimSpace(string(c.Protocol))))
	if c.Protocol == "" {
		c.Protocol = ProtocolGRPC
	}
	if _, ok := defaultEndpoints[c.Protocol]; !ok {
		return c, fmt.Errorf("unsupported OTLP protocol: %s (use 'grpc' or 'http')", c.Protocol)
	}

	endpoint := strings.TrimSpace(c.Endpoint)
	if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		endpoint, c.Insecure = rest, false
	} else if rest, ok := strings.CutPrefix(endpoint, "http://"); ok {
		endpoint, c.Insecure = rest, true
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoints[c.Protocol]
	}
	c.Endpoint = endpoint

	if c.Timeout <= 0 {
		c.Timeout = defaultOTLPTimeout
	}
	return c, nil
}

// NewOTLPExporter creates the span exporter for the configured transport.
func NewOTLPExporter(ctx context.Context, config OTLPConfig) (*otlptrace.Exporter, error) {
	config, err := config.normalize()
	if err != nil {
		return nil, err
	}

	if config.Protocol == ProtocolHTTP {
		return newHTTPExporter(ctx, config)
	}
	return newGRPCExporter(ctx, config)
}

func newGRPCExporter(ctx context.Context, config OTLPConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.Endpoint),
		otlptracegrpc.WithTimeout(config.Timeout),
		otlptracegrpc.WithHeaders(config.Headers),
	}
	if config.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	return otlptracegrpc.New(ctx, opts...)
}

func newHTTPExporter(ctx context.Context, config OTLPConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithTimeout(config.Timeout),
		otlptracehttp.WithHeaders(config.Headers),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	return otlptracehttp.New(ctx, opts...)
}
