package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsCreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"voicescreen.turn.duration", m.TurnDuration},
		{"voicescreen.backend.duration", m.BackendDuration},
		{"voicescreen.synthesis.duration", m.SynthesisDuration},
	}
	for _, h := range histograms {
		h.h.Record(ctx, 0.2)
	}

	rm := collect(t, reader)
	for _, h := range histograms {
		if findMetric(rm, h.name) == nil {
			t.Errorf("metric %q not found after recording", h.name)
		}
	}
}

func TestCounterAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCrisis(ctx, "CRITICAL")
	m.RecordCrisis(ctx, "CRITICAL")
	m.RecordCrisis(ctx, "WARNING")
	m.RecordFallback(ctx, "network_error")
	m.RecordSpeechRequest(ctx, "high", "ok")
	m.RecordRecognitionAttempt(ctx, "network", "retry")

	rm := collect(t, reader)

	crisis := findMetric(rm, "voicescreen.crisis.detections")
	if crisis == nil {
		t.Fatal("crisis detections metric not found")
	}
	sum, ok := crisis.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", crisis.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Fatalf("want 3 crisis detections, got %d", total)
	}

	for _, name := range []string{
		"voicescreen.fallback.requests",
		"voicescreen.speech.requests",
		"voicescreen.recognition.attempts",
	} {
		if findMetric(rm, name) == nil {
			t.Errorf("metric %q not found after recording", name)
		}
	}
}

func TestQueueDepthUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SpeechQueueDepth.Add(ctx, 3)
	m.SpeechQueueDepth.Add(ctx, -2)

	rm := collect(t, reader)
	depth := findMetric(rm, "voicescreen.speech.queue_depth")
	if depth == nil {
		t.Fatal("queue depth metric not found")
	}
	sum, ok := depth.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", depth.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("want depth 1, got %+v", sum.DataPoints)
	}
}
