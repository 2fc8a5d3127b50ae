package api

import (
	"testing"

	"safecar-edge/internal/model"
)

func f(v float64) *float64 { return &v }

func TestBuildDeviceStats(t *testing.T) {
	recent := []model.LedgerRecord{
		{ID: 3, Reading: model.RawReading{EngineTempC: f(100), CurrentA: f(3)}},
		{ID: 2, Reading: model.RawReading{EngineTempC: f(90)}},
		{ID: 1, Reading: model.RawReading{EngineTempC: f(95), CurrentA: f(1)}},
	}
	stats := buildDeviceStats("device-001", recent)

	if stats.TotalReadings != 3 {
		t.Fatalf("wrong total: %d", stats.TotalReadings)
	}
	if stats.LatestReading == nil || stats.LatestReading.ID != 3 {
		t.Fatalf("latest reading wrong: %+v", stats.LatestReading)
	}
	if stats.EngineTempStats == nil {
		t.Fatalf("engine temperature stats missing")
	}
	if stats.EngineTempStats.Min != 90 || stats.EngineTempStats.Max != 100 || stats.EngineTempStats.Avg != 95 || stats.EngineTempStats.Count != 3 {
		t.Fatalf("wrong engine temperature stats: %+v", stats.EngineTempStats)
	}
	if stats.CurrentStats == nil || stats.CurrentStats.Count != 2 || stats.CurrentStats.Avg != 2 {
		t.Fatalf("wrong current stats: %+v", stats.CurrentStats)
	}
	if stats.CabinTempStats != nil || stats.GasStats != nil {
		t.Fatalf("unreported quantities must be omitted")
	}
}

func TestBuildDeviceStatsEmpty(t *testing.T) {
	stats := buildDeviceStats("device-001", nil)
	if stats.TotalReadings != 0 || stats.LatestReading != nil {
		t.Fatalf("empty history misreported: %+v", stats)
	}
	if stats.CabinTempStats != nil || stats.EngineTempStats != nil || stats.GasStats != nil || stats.CurrentStats != nil {
		t.Fatalf("empty history produced stats")
	}
}
