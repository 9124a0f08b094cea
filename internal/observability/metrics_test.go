package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMissionCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewMissionCollector(reg)
	if err != nil {
		t.Fatalf("NewMissionCollector: %v", err)
	}

	c.ObserveTask("COMPLETED")
	c.ObserveTask("COMPLETED")
	c.ObserveTask("FAILED")
	c.ObserveHop()
	c.ObserveFrame(FrameCorrected)
	c.ObserveBlock(1500 * time.Millisecond)
	c.ObserveRoute(4, time.Millisecond)
	c.SetPending(2)

	if got := testutil.ToFloat64(c.TasksTotal.WithLabelValues("COMPLETED")); got != 2 {
		t.Fatalf("mission_tasks_total{COMPLETED} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.TelemetryFrames.WithLabelValues(FrameCorrected)); got != 1 {
		t.Fatalf("mission_telemetry_frames_total{corrected} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.TasksPending); got != 2 {
		t.Fatalf("mission_tasks_pending = %v, want 2", got)
	}
	if got := histogramSampleCount(t, reg, "mission_hazard_delay_seconds", nil); got != 1 {
		t.Fatalf("mission_hazard_delay_seconds sample_count = %d, want 1", got)
	}
	if got := histogramSampleCount(t, reg, "mission_route_length_nodes", nil); got != 1 {
		t.Fatalf("mission_route_length_nodes sample_count = %d, want 1", got)
	}
}

func TestMissionCollectorReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMissionCollector(reg)
	if err != nil {
		t.Fatalf("NewMissionCollector: %v", err)
	}
	second, err := NewMissionCollector(reg)
	if err != nil {
		t.Fatalf("second NewMissionCollector: %v", err)
	}
	first.ObserveHop()
	second.ObserveHop()
	if got := testutil.ToFloat64(first.HopsTotal); got != 2 {
		t.Fatalf("mission_hops_total = %v, want 2 (shared collector)", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *MissionCollector
	c.ObserveTask("COMPLETED")
	c.ObserveHop()
	c.ObserveFrame(FrameClean)
	c.ObserveBlock(time.Second)
	c.ObserveRoute(3, time.Millisecond)
	c.SetPending(1)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector should have nil gatherer")
	}
}

func TestMetricsHandlerExposesMissionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewMissionCollector(reg)
	if err != nil {
		t.Fatalf("NewMissionCollector: %v", err)
	}
	c.ObserveTask("COMPLETED")
	c.ObserveFrame(FrameClean)
	c.ObserveBlock(time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"mission_tasks_total",
		"mission_tasks_pending",
		"mission_telemetry_frames_total",
		"mission_hazard_blocks_total",
		"mission_hazard_delay_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
