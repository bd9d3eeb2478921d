// Package observe provides application-wide observability primitives for
// voxime: OpenTelemetry metrics, distributed tracing, structured logging,
// HTTP middleware and the dictation event log.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxime metrics.
const meterName = "github.com/MrWong99/voxime"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// RecognitionDuration tracks the time from stream start to delivered
	// result. Use with attribute:
	//   attribute.String("provider", ...)
	RecognitionDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts STT stream starts. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Recognitions counts finished recognitions by outcome
	// ("delivered", "empty", "failed", "cancelled").
	Recognitions metric.Int64Counter

	// DictationEvents counts logged dictation events. Use with attribute:
	//   attribute.String("event", ...)
	DictationEvents metric.Int64Counter

	// Corrections counts post-voice edits. Use with attribute:
	//   attribute.String("kind", "insert"|"delete"|"punctuation")
	Corrections metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes: attribute.String("provider", ...), attribute.String("to", ...)
	BreakerTransitions metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRecognitions tracks the number of in-flight recognitions.
	ActiveRecognitions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// dictation turnarounds, which span from sub-second to tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RecognitionDuration, err = m.Float64Histogram("voxime.recognition.duration",
		metric.WithDescription("Time from stream start to delivered recognition result."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("voxime.provider.requests",
		metric.WithDescription("Total STT stream starts by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.Recognitions, err = m.Int64Counter("voxime.recognitions",
		metric.WithDescription("Total finished recognitions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.DictationEvents, err = m.Int64Counter("voxime.dictation.events",
		metric.WithDescription("Total dictation events by event name."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("voxime.dictation.corrections",
		metric.WithDescription("Characters edited after voice input by kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voxime.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by provider and target state."),
	); err != nil {
		return nil, err
	}

	if met.ProviderErrors, err = m.Int64Counter("voxime.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRecognitions, err = m.Int64UpDownCounter("voxime.active_recognitions",
		metric.WithDescription("Number of in-flight recognitions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voxime.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// RecordProviderRequest records a stream start with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordRecognition records a finished recognition.
func (m *Metrics) RecordRecognition(ctx context.Context, outcome string) {
	m.Recognitions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordEvent records a dictation event.
func (m *Metrics) RecordEvent(ctx context.Context, event string) {
	m.DictationEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// RecordCorrections adds n edited characters of the given kind. Zero is a no-op.
func (m *Metrics) RecordCorrections(ctx context.Context, kind string, n int) {
	if n == 0 {
		return
	}
	m.Corrections.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("to", to),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
