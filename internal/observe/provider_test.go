package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// retainingExporter keeps its spans across Shutdown so they can be inspected.
type retainingExporter struct{ *tracetest.InMemoryExporter }

func (retainingExporter) Shutdown(context.Context) error { return nil }

func TestInitProvider_InstallsGlobals(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	reader := sdkmetric.NewManualReader()
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		ServiceVersion:    "test",
		TraceExporter:     retainingExporter{exp},
		MetricReaders:     []sdkmetric.Reader{reader},
		DisablePrometheus: true,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordRecognition(context.Background(), "delivered")
	rm := collect(t, reader)
	if findMetric(rm, "voxime.recognitions") == nil {
		t.Error("metric recorded on the global provider did not reach the reader")
	}
	var service string
	for _, kv := range rm.Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	if service != "voxime" {
		t.Errorf("service.name = %q, want voxime", service)
	}

	_, span := StartSpan(context.Background(), "op")
	span.End()
	if !span.SpanContext().IsSampled() {
		t.Error("span not sampled with the default ratio")
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := len(exp.GetSpans()); got != 1 {
		t.Errorf("exported %d spans after shutdown, want 1", got)
	}
}

func TestInitProvider_RejectsBadRatio(t *testing.T) {
	t.Parallel()
	for _, r := range []float64{-0.1, 1.5} {
		if _, err := InitProvider(context.Background(), ProviderConfig{SampleRatio: r, DisablePrometheus: true}); err == nil {
			t.Errorf("SampleRatio %v: expected error", r)
		}
	}
}
