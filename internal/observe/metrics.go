// Package observe provides observability primitives for voicescreen:
// OpenTelemetry metrics, tracing helpers, and structured-logging glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the admin endpoint. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicescreen metrics.
const meterName = "github.com/mindline/voicescreen"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TurnDuration tracks end-to-end processing time for one user turn.
	TurnDuration metric.Float64Histogram

	// BackendDuration tracks conversational backend request latency.
	BackendDuration metric.Float64Histogram

	// SynthesisDuration tracks playback time per speech request.
	SynthesisDuration metric.Float64Histogram

	// --- Counters ---

	// CrisisDetections counts assessments by severity. Use with attribute:
	//   attribute.String("level", ...)
	CrisisDetections metric.Int64Counter

	// RecognitionAttempts counts capture attempts by outcome. Use with
	// attributes: attribute.String("class", ...), attribute.String("outcome", ...)
	RecognitionAttempts metric.Int64Counter

	// FallbackRequests counts text-input fallbacks by reason. Use with
	// attribute: attribute.String("reason", ...)
	FallbackRequests metric.Int64Counter

	// SpeechRequests counts synthesis requests by priority and outcome. Use
	// with attributes: attribute.String("priority", ...), attribute.String("outcome", ...)
	SpeechRequests metric.Int64Counter

	// --- Gauges ---

	// SpeechQueueDepth tracks the number of queued-but-unplayed requests.
	SpeechQueueDepth metric.Int64UpDownCounter

	// ActiveSessions tracks the number of live screening sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for conversational latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("voicescreen.turn.duration",
		metric.WithDescription("End-to-end processing time for one user turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackendDuration, err = m.Float64Histogram("voicescreen.backend.duration",
		metric.WithDescription("Conversational backend request latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("voicescreen.synthesis.duration",
		metric.WithDescription("Playback time per speech request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CrisisDetections, err = m.Int64Counter("voicescreen.crisis.detections",
		metric.WithDescription("Total crisis assessments by severity level."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionAttempts, err = m.Int64Counter("voicescreen.recognition.attempts",
		metric.WithDescription("Total capture attempts by error class and outcome."),
	); err != nil {
		return nil, err
	}
	if met.FallbackRequests, err = m.Int64Counter("voicescreen.fallback.requests",
		metric.WithDescription("Total text-input fallbacks by reason."),
	); err != nil {
		return nil, err
	}
	if met.SpeechRequests, err = m.Int64Counter("voicescreen.speech.requests",
		metric.WithDescription("Total synthesis requests by priority and outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.SpeechQueueDepth, err = m.Int64UpDownCounter("voicescreen.speech.queue_depth",
		metric.WithDescription("Number of queued-but-unplayed speech requests."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voicescreen.active_sessions",
		metric.WithDescription("Number of live screening sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCrisis records one crisis assessment with its severity level.
func (m *Metrics) RecordCrisis(ctx context.Context, level string) {
	m.CrisisDetections.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

// RecordRecognitionAttempt records one capture attempt with its error class
// ("" for success) and outcome ("ok", "retry", "fallback").
func (m *Metrics) RecordRecognitionAttempt(ctx context.Context, class, outcome string) {
	m.RecognitionAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("class", class),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordFallback records one text-input fallback with its reason.
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	m.FallbackRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordSpeechRequest records one synthesis request with its priority and
// outcome ("ok", "interrupted", "error").
func (m *Metrics) RecordSpeechRequest(ctx context.Context, priority, outcome string) {
	m.SpeechRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("priority", priority),
			attribute.String("outcome", outcome),
		),
	)
}
