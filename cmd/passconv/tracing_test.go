package main

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/walletpass/passconv/internal/config"
)

func TestSetupTracing(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	tp, err := setupTracing(context.Background(), config.TracingConfig{ServiceName: "passconv-test", SampleRatio: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	if otel.GetTracerProvider() != trace.TracerProvider(tp) {
		t.Fatal("Expected tracer provider to be installed globally")
	}

	h := http.Header{}
	h.Set("X-B3-TraceId", "8a3c416a54a04ae6830de2f4f6dd4aef")
	h.Set("X-B3-SpanId", "3f6a0b6d9d5f4b45")
	h.Set("X-B3-Sampled", "1")

	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(h))
	sc := trace.SpanContextFromContext(ctx)
	if got := sc.TraceID().String(); got != "8a3c416a54a04ae6830de2f4f6dd4aef" {
		t.Fatalf("Expected b3 trace id to be extracted but got %s", got)
	}

	_, span := tp.Tracer("test").Start(ctx, "child")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Fatal("Expected child of a sampled parent to be sampled")
	}
}
