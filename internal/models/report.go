// Package models contains domain types for the Battery Insight backend.
package models

import "time"

// BatteryEvent is one decoded sample from the battery history section.
// Fields not present on the source line are inherited from the previous
// event, so every emitted event carries a complete level/charging state.
type BatteryEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Level     int       `json:"level"` // 0-100
	Charging  bool      `json:"charging"`
	Line      int       `json:"line"` // source line number in the dump
}

// PowerRecord is the estimated consumption attributed to one entity,
// summed across all rows the dump carried for it.
type PowerRecord struct {
	Entity        *EntityIdentity `json:"entity"`
	MilliampHours float64         `json:"milliampHours"`
	Rank          int             `json:"rank"` // 1 = highest consumer
}

// WakelockRecord is the cumulative wakelock hold stats for one
// (entity, lock name) pair.
type WakelockRecord struct {
	Entity          *EntityIdentity `json:"entity"`
	LockName        string          `json:"lockName"`
	HoldCount       int             `json:"holdCount"`
	TotalHeldMillis int64           `json:"totalHeldMillis"`
}

// WakeSpan is one long-held wakelock interval reconstructed from paired
// +longwake/-longwake markers in the battery history.
type WakeSpan struct {
	Entity *EntityIdentity `json:"entity"`
	Tag    string          `json:"tag"`
	Start  time.Time       `json:"start"`
	End    time.Time       `json:"end"`
}

// DurationMillis returns the span length in milliseconds.
func (s WakeSpan) DurationMillis() int64 {
	return s.End.Sub(s.Start).Milliseconds()
}

// ReportMetadata carries device context and dump-level figures.
// DeviceModel/AndroidVersion come from the debugging client that
// collected the dump, not from the dump text itself.
type ReportMetadata struct {
	DeviceModel         string    `json:"deviceModel,omitempty"`
	AndroidVersion      string    `json:"androidVersion,omitempty"`
	CollectionTimestamp time.Time `json:"collectionTimestamp"`
	BatteryLevel        int       `json:"batteryLevel"` // -1 when the dump has no level line
	CapacityMAh         float64   `json:"capacityMAh,omitempty"`
	ComputedDrainMAh    float64   `json:"computedDrainMAh,omitempty"`
	HealthPercent       float64   `json:"healthPercent,omitempty"` // capacity vs design capacity
}

// TimeRange is the window covered by the battery history.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParsedReport is the structured result of one parse pass over one dump.
// It is built once and read-only afterwards; a new dump produces a new
// independent report.
type ParsedReport struct {
	BatteryEvents   []BatteryEvent    `json:"batteryEvents"`
	PowerRecords    []PowerRecord     `json:"powerRecords"`
	WakelockRecords []WakelockRecord  `json:"wakelockRecords"`
	Longwakes       []WakeSpan        `json:"longwakes,omitempty"`
	Entities        []*EntityIdentity `json:"entities"`
	Metadata        ReportMetadata    `json:"metadata"`
	TimeRange       *TimeRange        `json:"timeRange,omitempty"`
}

// NewParsedReport creates an empty report.
func NewParsedReport() *ParsedReport {
	return &ParsedReport{
		BatteryEvents:   make([]BatteryEvent, 0),
		PowerRecords:    make([]PowerRecord, 0),
		WakelockRecords: make([]WakelockRecord, 0),
		Entities:        make([]*EntityIdentity, 0),
		Metadata:        ReportMetadata{BatteryLevel: -1},
	}
}
