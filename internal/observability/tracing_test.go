package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/signalsfoundry/rescue-mission-sim/internal/logging"
)

func TestStartTracingDisabled(t *testing.T) {
	tr, err := StartTracing(context.Background(), TracingConfig{Enabled: false}, logging.Noop())
	if err != nil {
		t.Fatalf("StartTracing: %v", err)
	}
	defer tr.Shutdown(context.Background(), nil)

	_, span := tr.Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatalf("disabled tracing should produce non-recording spans")
	}
	span.End()
}

func TestStartTracingStdoutExportsSpans(t *testing.T) {
	var out bytes.Buffer
	tr, err := StartTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "mission-sim-test",
		Exporter:    ExporterStdout,
		SampleRatio: 1,
		RunID:       "run-1",
		Output:      &out,
	}, nil)
	if err != nil {
		t.Fatalf("StartTracing: %v", err)
	}

	_, span := tr.Tracer().Start(context.Background(), "mission.task")
	if !span.SpanContext().IsValid() {
		t.Fatalf("expected a recording span")
	}
	span.End()
	tr.Shutdown(context.Background(), nil)

	got := out.String()
	if !strings.Contains(got, "mission.task") || !strings.Contains(got, "run-1") {
		t.Fatalf("exported spans missing name or run id: %s", got)
	}

	// Leave the global provider inert for other tests.
	if _, err := StartTracing(context.Background(), TracingConfig{}, nil); err != nil {
		t.Fatalf("reset tracing: %v", err)
	}
}

func TestStartTracingUnsupportedExporter(t *testing.T) {
	if _, err := StartTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestSamplerFor(t *testing.T) {
	cases := map[float64]string{
		1:    "AlwaysOnSampler",
		0:    "AlwaysOffSampler",
		0.25: "ParentBased",
	}
	for ratio, prefix := range cases {
		if got := samplerFor(ratio).Description(); !strings.HasPrefix(got, prefix) {
			t.Fatalf("samplerFor(%v) = %q, want prefix %q", ratio, got, prefix)
		}
	}
}

func TestNilTracingIsSafe(t *testing.T) {
	var tr *Tracing
	tr.Shutdown(context.Background(), nil)
	if tr.Tracer() == nil {
		t.Fatalf("nil Tracing should fall back to the global tracer")
	}
}
