package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "create_trek", true, 20*time.Millisecond)
	rec.Observe(ctx, "create_trek", true, 30*time.Millisecond)
	rec.Observe(ctx, "create_trek", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	snap := rec.Snapshot()
	if got := snap.DurationsMS["create_trek"]; got < 54 || got > 56 {
		t.Fatalf("durations = %v", got)
	}
	if snap.Results["create_trek"]["success"] != 2 || snap.Results["create_trek"]["error"] != 1 {
		t.Fatalf("results = %+v", snap.Results)
	}
	if !strings.HasPrefix(rec.Name(), "trekcore_service_metrics_") {
		t.Fatalf("generated name = %q", rec.Name())
	}
}

func TestPrometheusMetricsRecorderRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe(context.Background(), "create_booking", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "create_booking", false, 10*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["trekcore_service_operations_total"] {
		t.Fatalf("counter not gathered: %v", names)
	}
	if !names["trekcore_service_operation_duration_seconds"] {
		t.Fatalf("histogram not gathered: %v", names)
	}

	// Double registration against the same registry fails.
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestJSONTracerEmitsEntries(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)

	_, span := tracer.Start(context.Background(), "export_reports")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "export_reports")
	span.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Fatalf("entries = %+v", entries)
	}
	if lines := strings.Count(strings.TrimSpace(buf.String()), "\n") + 1; lines != 2 {
		t.Fatalf("encoded lines = %d, want 2", lines)
	}
}
