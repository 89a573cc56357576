package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/tokengate"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot tokengate.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() tokengate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := tokengate.MetricsSnapshot{
		Counters:   make(map[tokengate.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[tokengate.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestExporterCollectsCountersAndBuckets(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: tokengate.MetricsSnapshot{
			Counters: map[tokengate.MetricID]uint64{
				tokengate.MetricLoginSuccess:    3,
				tokengate.MetricValidateRevoked: 2,
			},
			Histograms: map[tokengate.MetricID][]uint64{
				tokengate.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("tokengate-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	got := collect(t, reader)

	sum, ok := got["tokengate_validate_revoked_total"].(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Fatalf("unexpected validate_revoked data %#v", got["tokengate_validate_revoked_total"])
	}

	buckets, ok := got["tokengate_validate_latency_seconds_bucket"].(metricdata.Gauge[int64])
	if !ok || len(buckets.DataPoints) != 8 {
		t.Fatalf("expected 8 bucket points, got %#v", got["tokengate_validate_latency_seconds_bucket"])
	}
	for _, dp := range buckets.DataPoints {
		le, _ := dp.Attributes.Value("le")
		if le.AsString() == "+Inf" && dp.Value != 8 {
			t.Fatalf("expected +Inf bucket 8, got %d", dp.Value)
		}
	}

	count, ok := got["tokengate_validate_latency_seconds_count"].(metricdata.Gauge[int64])
	if !ok || count.DataPoints[0].Value != 8 {
		t.Fatalf("unexpected count %#v", got["tokengate_validate_latency_seconds_count"])
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newReader()

	if _, err := NewExporterFromSource(provider.Meter("tokengate-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: tokengate.MetricsSnapshot{
			Counters:   map[tokengate.MetricID]uint64{tokengate.MetricLoginSuccess: 1},
			Histograms: map[tokengate.MetricID][]uint64{},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("tokengate-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[tokengate.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
