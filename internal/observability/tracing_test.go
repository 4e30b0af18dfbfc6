package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestNewTracing_NoneIsNoop(t *testing.T) {
	for _, exporter := range []string{"", "none", " NONE "} {
		tr, err := NewTracing(context.Background(), "trainqueue", TracingConfig{Exporter: exporter})
		if err != nil {
			t.Fatalf("exporter %q: unexpected error: %v", exporter, err)
		}
		_, span := tr.StartSpan(context.Background(), "job")
		if span.SpanContext().IsValid() {
			t.Errorf("exporter %q: expected non-recording span", exporter)
		}
		span.End()
		if err := tr.Shutdown(context.Background()); err != nil {
			t.Errorf("exporter %q: shutdown failed: %v", exporter, err)
		}
	}
}

func TestNewTracing_StdoutWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tr, err := NewTracing(context.Background(), "trainqueue", TracingConfig{Exporter: "stdout", Writer: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, span := tr.StartSpan(context.Background(), "trainqueue.job", attribute.String("trainqueue.entry", "exp-1"))
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "trainqueue.job") || !strings.Contains(out, "exp-1") {
		t.Errorf("expected span in exporter output, got: %s", out)
	}
}

func TestNewTracing_UnknownExporter(t *testing.T) {
	if _, err := NewTracing(context.Background(), "trainqueue", TracingConfig{Exporter: "zipkin"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestNilTracingIsSafe(t *testing.T) {
	var tr *Tracing
	_, span := tr.StartSpan(context.Background(), "x")
	span.End()
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("nil shutdown: %v", err)
	}
}

func TestNewTracing_OTLPGRPCBuildsLazily(t *testing.T) {
	// The gRPC exporter connects on first export, so nothing needs to listen
	tr, err := NewTracing(context.Background(), "trainqueue", TracingConfig{
		Exporter: "otlpgrpc",
		Endpoint: "127.0.0.1:1",
		Insecure: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = tr.Shutdown(ctx)
}

func TestInjectEnv(t *testing.T) {
	var buf bytes.Buffer
	tr, err := NewTracing(context.Background(), "trainqueue", TracingConfig{Exporter: "stdout", Writer: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Shutdown(context.Background())

	if env := tr.InjectEnv(context.Background()); len(env) != 0 {
		t.Errorf("no span in context, expected no env, got %v", env)
	}

	ctx, span := tr.StartSpan(context.Background(), "trainqueue.job")
	defer span.End()

	env := tr.InjectEnv(ctx)
	want := "TRACEPARENT=00-" + span.SpanContext().TraceID().String() + "-" + span.SpanContext().SpanID().String()
	found := false
	for _, kv := range env {
		if strings.HasPrefix(kv, want) {
			found = true
		}
	}
	if !found {
		t.Errorf("env %v missing %q", env, want)
	}
}
