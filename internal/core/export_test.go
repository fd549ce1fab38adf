package core

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"trekcore/internal/blob"
)

func TestExportWritesAllReports(t *testing.T) {
	svc := seedQueryFixture(t)
	blobs := blob.NewMemory()
	exporter := NewReportExporter(svc, blobs)
	exporter.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }

	infos, err := exporter.Export(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(infos) != 4 {
		t.Fatalf("reports = %d, want 4", len(infos))
	}
	for _, info := range infos {
		if !strings.HasPrefix(info.Key, "reports/2026-09-01/") {
			t.Fatalf("key = %q", info.Key)
		}
		if info.ContentType != "application/json" {
			t.Fatalf("content type = %q", info.ContentType)
		}
	}

	// Report documents are well formed and carry the payload.
	_, rc, err := blobs.Get(context.Background(), "reports/2026-09-01/totals.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc struct {
		Report      string          `json:"report"`
		GeneratedAt time.Time       `json:"generated_at"`
		Data        DashboardTotals `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Report != "totals" {
		t.Fatalf("report = %q", doc.Report)
	}
	if doc.Data.Bookings != 3 {
		t.Fatalf("totals payload = %+v", doc.Data)
	}
}

func TestExportSameDayTwiceFails(t *testing.T) {
	svc := seedQueryFixture(t)
	blobs := blob.NewMemory()
	exporter := NewReportExporter(svc, blobs)
	exporter.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }

	if _, err := exporter.Export(context.Background()); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if _, err := exporter.Export(context.Background()); err == nil {
		t.Fatal("second export on same day must fail (create-only keys)")
	}
}
