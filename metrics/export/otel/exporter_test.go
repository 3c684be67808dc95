package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ironhall/gymauth"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot gymauth.MetricsSnapshot
	dropped  uint64
	status   gymauth.Status
}

func (f *fakeSource) MetricsSnapshot() gymauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := gymauth.MetricsSnapshot{
		Counters:   make(map[gymauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[gymauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) Status() gymauth.Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Value
				}
			}
		}
	}
	return out
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gymauth-test")

	src := &fakeSource{
		snapshot: gymauth.MetricsSnapshot{
			Counters: map[gymauth.MetricID]uint64{
				gymauth.MetricLoginSuccess: 3,
				gymauth.MetricPollDrift:    1,
			},
			Histograms: map[gymauth.MetricID][]uint64{
				gymauth.MetricFetchLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
		status:  gymauth.Status{Authenticated: true, Polling: true},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)
	want := map[string]int64{
		"gymauth_login_success_total":                              3,
		"gymauth_poll_drift_total":                                 1,
		"gymauth_audit_dropped_total":                              1,
		"gymauth_permission_fetch_latency_seconds_bucket_le_inf":   8,
		"gymauth_permission_fetch_latency_seconds_bucket_le_0_005": 1,
		"gymauth_permission_fetch_latency_seconds_count":           8,
		"gymauth_session_authenticated":                            1,
		"gymauth_polling_active":                                   1,
		"gymauth_permissions_stale":                                0,
	}
	for name, v := range want {
		if got[name] != v {
			t.Fatalf("%s: expected %d, got %d (all: %v)", name, v, got[name], got)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gymauth-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gymauth-test")

	src := &fakeSource{
		snapshot: gymauth.MetricsSnapshot{
			Counters: map[gymauth.MetricID]uint64{
				gymauth.MetricLoginSuccess: 1,
			},
			Histograms: map[gymauth.MetricID][]uint64{
				gymauth.MetricFetchLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[gymauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
