package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/battery-insight/backend/internal/models"
)

func testReport(base time.Time, levels []int, drains map[string]float64) *models.ParsedReport {
	report := models.NewParsedReport()
	for i, lvl := range levels {
		report.BatteryEvents = append(report.BatteryEvents, models.BatteryEvent{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Level:     lvl,
			Line:      i + 1,
		})
	}
	rank := 1
	for name, mah := range drains {
		report.PowerRecords = append(report.PowerRecords, models.PowerRecord{
			Entity: &models.EntityIdentity{
				CanonicalID: name,
				UID:         models.NoUID,
				DisplayName: name,
			},
			MilliampHours: mah,
			Rank:          rank,
		})
		rank++
	}
	if len(report.BatteryEvents) > 0 {
		report.TimeRange = &models.TimeRange{
			Start: report.BatteryEvents[0].Timestamp,
			End:   report.BatteryEvents[len(report.BatteryEvents)-1].Timestamp,
		}
	}
	return report
}

func newTestArchive(t *testing.T) *TrendArchive {
	t.Helper()
	a, err := New(filepath.Join(t.TempDir(), "trends.duckdb"), Options{})
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestTrendArchive_AppendAndTrend(t *testing.T) {
	a := newTestArchive(t)

	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	id, err := a.AppendReport("dump-1.txt", testReport(base, []int{100, 99, 98}, nil))
	if err != nil {
		t.Fatalf("AppendReport failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a dump id")
	}

	points, err := a.LevelTrend(base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("LevelTrend failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}
	if points[0].Level != 100 || points[2].Level != 98 {
		t.Errorf("points out of order: %+v", points)
	}

	// Sub-window query.
	points, err = a.LevelTrend(base.Add(30*time.Second), base.Add(90*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 || points[0].Level != 99 {
		t.Errorf("windowed points = %+v", points)
	}
}

func TestTrendArchive_TopConsumersAcrossDumps(t *testing.T) {
	a := newTestArchive(t)

	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if _, err := a.AppendReport("d1.txt", testReport(base, []int{90},
		map[string]float64{"Screen": 40, "Maps": 10})); err != nil {
		t.Fatal(err)
	}
	if _, err := a.AppendReport("d2.txt", testReport(base.Add(24*time.Hour), []int{80},
		map[string]float64{"Maps": 35})); err != nil {
		t.Fatal(err)
	}

	totals, err := a.TopConsumers(10)
	if err != nil {
		t.Fatalf("TopConsumers failed: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("totals = %d, want 2", len(totals))
	}
	if totals[0].DisplayName != "Maps" || totals[0].MilliampHours != 45 {
		t.Errorf("top consumer = %+v, want Maps with 45 mAh", totals[0])
	}
	if totals[0].DumpCount != 2 {
		t.Errorf("Maps dump count = %d, want 2", totals[0].DumpCount)
	}
}

func TestTrendArchive_ListDumps(t *testing.T) {
	a := newTestArchive(t)

	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	older := testReport(base, []int{90}, nil)
	older.Metadata.CollectionTimestamp = base
	newer := testReport(base.Add(24*time.Hour), []int{80}, nil)
	newer.Metadata.CollectionTimestamp = base.Add(24 * time.Hour)
	newer.Metadata.DeviceModel = "Pixel 8"

	if _, err := a.AppendReport("older.txt", older); err != nil {
		t.Fatal(err)
	}
	if _, err := a.AppendReport("newer.txt", newer); err != nil {
		t.Fatal(err)
	}

	dumps, err := a.ListDumps(10)
	if err != nil {
		t.Fatalf("ListDumps failed: %v", err)
	}
	if len(dumps) != 2 {
		t.Fatalf("dumps = %d, want 2", len(dumps))
	}
	if dumps[0].FileName != "newer.txt" {
		t.Errorf("newest first: got %q", dumps[0].FileName)
	}
	if dumps[0].DeviceModel != "Pixel 8" {
		t.Errorf("device model = %q", dumps[0].DeviceModel)
	}
	if dumps[1].EventCount != 1 {
		t.Errorf("event count = %d, want 1", dumps[1].EventCount)
	}
}
