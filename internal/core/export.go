package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trekcore/internal/blob"
)

// ReportExporter materializes the dashboard aggregates as JSON documents in a
// blob store under reports/<date>/<name>.json. Keys are create-only, so
// exporting the same report twice on one day fails.
type ReportExporter struct {
	svc   *Service
	blobs blob.Store
	now   func() time.Time
}

// NewReportExporter wires an exporter to a service and a blob backend.
func NewReportExporter(svc *Service, blobs blob.Store) *ReportExporter {
	return &ReportExporter{svc: svc, blobs: blobs, now: time.Now}
}

// reportDocument wraps a report payload with generation metadata.
type reportDocument struct {
	Report      string    `json:"report"`
	GeneratedAt time.Time `json:"generated_at"`
	Data        any       `json:"data"`
}

// Export writes all standard reports and returns the stored blob metadata in
// export order.
func (x *ReportExporter) Export(ctx context.Context) ([]blob.Info, error) {
	type report struct {
		name string
		data any
	}
	reports := []report{
		{name: "totals", data: x.svc.Totals()},
		{name: "nationality-distribution", data: x.svc.NationalityDistribution()},
		{name: "bookings-per-attraction", data: x.svc.BookingsPerAttraction(0)},
		{name: "emergency-counts", data: map[string]any{
			"by_severity": x.svc.EmergencyCountBySeverity(),
			"by_status":   x.svc.EmergencyCountByStatus(),
		}},
	}
	infos := make([]blob.Info, 0, len(reports))
	for _, r := range reports {
		info, err := x.export(ctx, r.name, r.data)
		if err != nil {
			return infos, fmt.Errorf("export %s: %w", r.name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (x *ReportExporter) export(ctx context.Context, name string, data any) (blob.Info, error) {
	now := x.now().UTC()
	doc := reportDocument{Report: name, GeneratedAt: now, Data: data}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, err
	}
	key := fmt.Sprintf("reports/%s/%s.json", now.Format("2006-01-02"), name)
	return x.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"report": name},
	})
}
