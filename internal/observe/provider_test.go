package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitProviderRegistersGlobals(t *testing.T) {
	// Swaps the global OTel providers, so this test must not run in parallel.
	shutdown, err := InitProvider(ProviderConfig{ServiceName: "voicescreen-test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	if _, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); !ok {
		t.Fatalf("global meter provider not registered, got %T", otel.GetMeterProvider())
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("global tracer provider not registered, got %T", otel.GetTracerProvider())
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
