package observability

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"
)

const tracerName = "github.com/aristath/trainqueue"

// TracingConfig selects a span exporter.
type TracingConfig struct {
	Exporter string    // "none" (default), "stdout", "otlphttp", or "otlpgrpc"
	Endpoint string    // OTLP endpoint; defaults to http://localhost:4318 (HTTP) or localhost:4317 (gRPC)
	Insecure bool      // Plain HTTP / no TLS for OTLP
	Writer   io.Writer // stdout exporter target, default os.Stderr
}

// Tracing owns a tracer and its shutdown hook. The zero value is unusable;
// use NewTracing or Noop.
type Tracing struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Noop returns a Tracing that records nothing.
func Noop() *Tracing {
	return &Tracing{
		tracer:   noop.NewTracerProvider().Tracer(tracerName),
		shutdown: func(context.Context) error { return nil },
	}
}

// NewTracing builds a tracer for service according to cfg.
func NewTracing(ctx context.Context, service string, cfg TracingConfig) (*Tracing, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if name == "" || name == "none" {
		return Noop(), nil
	}

	exp, err := buildExporter(ctx, name, cfg)
	if err != nil {
		return nil, fmt.Errorf("building %s exporter: %w", name, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(service)),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	// Jobs run for hours; a synchronous processor keeps spans from sitting in a batch buffer
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	return &Tracing{
		tracer:   tp.Tracer(tracerName),
		shutdown: tp.Shutdown,
	}, nil
}

// StartSpan starts a span named name with attrs.
func (t *Tracing) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return Noop().StartSpan(ctx, name, attrs...)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes and stops the exporter.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.shutdown(ctx)
}

func buildExporter(ctx context.Context, name string, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case "otlp", "otlphttp", "http":
		endpoint := strings.TrimSpace(cfg.Endpoint)
		if endpoint == "" {
			endpoint = "http://localhost:4318"
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpointURL(endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case "otlpgrpc", "grpc":
		endpoint := strings.TrimSpace(cfg.Endpoint)
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{})))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", name)
	}
}

// InjectEnv returns the W3C trace context of the span in ctx as KEY=VALUE
// environment entries (TRACEPARENT, TRACESTATE), so a training job can
// continue the trace. It returns nil when ctx carries no sampled span.
func (t *Tracing) InjectEnv(ctx context.Context) []string {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)

	keys := carrier.Keys()
	sort.Strings(keys)

	var env []string
	for _, k := range keys {
		env = append(env, strings.ToUpper(k)+"="+carrier.Get(k))
	}
	return env
}
