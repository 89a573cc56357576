package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/tokengate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot tokengate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() tokengate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: tokengate.MetricsSnapshot{
			Counters:   map[tokengate.MetricID]uint64{},
			Histograms: map[tokengate.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(c); n != 0 {
		t.Fatalf("expected no metrics for disabled source, got %d", n)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: tokengate.MetricsSnapshot{
			Counters: map[tokengate.MetricID]uint64{
				tokengate.MetricLoginSuccess:    7,
				tokengate.MetricValidateRevoked: 3,
			},
			Histograms: map[tokengate.MetricID][]uint64{
				tokengate.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	values := map[string]float64{}
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetHistogram() != nil:
			h := m.GetHistogram()
			if h.GetSampleCount() != 36 {
				t.Fatalf("expected 36 samples, got %d", h.GetSampleCount())
			}
			first := h.GetBucket()[0]
			if first.GetUpperBound() != 0.005 || first.GetCumulativeCount() != 1 {
				t.Fatalf("unexpected first bucket %v", first)
			}
		}
	}

	if values["tokengate_login_success_total"] != 7 {
		t.Fatalf("expected login_success 7, got %v", values["tokengate_login_success_total"])
	}
	if values["tokengate_validate_revoked_total"] != 3 {
		t.Fatalf("expected validate_revoked 3, got %v", values["tokengate_validate_revoked_total"])
	}
	if values["tokengate_audit_dropped_total"] != 2 {
		t.Fatalf("expected audit_dropped 2, got %v", values["tokengate_audit_dropped_total"])
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: tokengate.MetricsSnapshot{
			Counters:   map[tokengate.MetricID]uint64{tokengate.MetricLogout: 1},
			Histograms: map[tokengate.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "tokengate_logout_total 1") {
		t.Fatalf("expected logout counter in output, got:\n%s", body)
	}
}

func BenchmarkCollect(b *testing.B) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: tokengate.MetricsSnapshot{
			Counters: map[tokengate.MetricID]uint64{
				tokengate.MetricLoginSuccess:    1000,
				tokengate.MetricValidateSuccess: 90000,
				tokengate.MetricValidateRevoked: 20,
			},
			Histograms: map[tokengate.MetricID][]uint64{
				tokengate.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = registry.Gather()
	}
}
