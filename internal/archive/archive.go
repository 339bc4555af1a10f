// Package archive keeps a cross-dump trend database: every parsed
// report is appended once, then battery-level history and per-app drain
// can be queried across all dumps of a device.
package archive

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"

	"github.com/battery-insight/backend/internal/models"
)

// Options tunes the archive's DuckDB instance.
type Options struct {
	Threads     int
	MemoryLimit string
}

// TrendArchive is a DuckDB-backed archive of parsed dumps.
type TrendArchive struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// LevelPoint is one battery-level sample in a trend query result.
type LevelPoint struct {
	DumpID    string    `json:"dumpId"`
	Timestamp time.Time `json:"timestamp"`
	Level     int       `json:"level"`
	Charging  bool      `json:"charging"`
}

// ConsumerTotal is the drain of one app summed across all archived dumps.
type ConsumerTotal struct {
	DisplayName   string  `json:"displayName"`
	UID           int     `json:"uid"`
	MilliampHours float64 `json:"milliampHours"`
	DumpCount     int     `json:"dumpCount"`
}

// DumpSummary describes one archived dump.
type DumpSummary struct {
	ID            string    `json:"id"`
	FileName      string    `json:"fileName"`
	DeviceModel   string    `json:"deviceModel,omitempty"`
	CollectedAt   time.Time `json:"collectedAt"`
	BatteryLevel  int       `json:"batteryLevel"`
	HealthPercent float64   `json:"healthPercent,omitempty"`
	EventCount    int       `json:"eventCount"`
}

// New opens (or creates) the trend archive at dbPath.
func New(dbPath string, opts Options) (*TrendArchive, error) {
	if opts.Threads <= 0 {
		opts.Threads = 4
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "512MB"
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS dumps (
			id             VARCHAR PRIMARY KEY,
			file_name      VARCHAR NOT NULL,
			device_model   VARCHAR,
			collected_at   TIMESTAMP,
			battery_level  INTEGER,
			capacity_mah   DOUBLE,
			drain_mah      DOUBLE,
			health_percent DOUBLE,
			event_count    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS battery_levels (
			dump_id   VARCHAR NOT NULL,
			ts        TIMESTAMP NOT NULL,
			level     INTEGER NOT NULL,
			charging  BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS power_totals (
			dump_id      VARCHAR NOT NULL,
			uid          INTEGER NOT NULL,
			display_name VARCHAR NOT NULL,
			mah          DOUBLE NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &TrendArchive{db: db, dbPath: dbPath}, nil
}

// AppendReport stores one parsed report and returns its archive ID.
func (a *TrendArchive) AppendReport(fileName string, report *models.ParsedReport) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.New().String()

	tx, err := a.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning archive transaction: %w", err)
	}
	defer tx.Rollback()

	meta := report.Metadata
	collected := meta.CollectionTimestamp
	if collected.IsZero() && report.TimeRange != nil {
		collected = report.TimeRange.End
	}

	if _, err := tx.Exec(
		`INSERT INTO dumps VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, fileName, meta.DeviceModel, collected, meta.BatteryLevel,
		meta.CapacityMAh, meta.ComputedDrainMAh, meta.HealthPercent,
		len(report.BatteryEvents),
	); err != nil {
		return "", fmt.Errorf("inserting dump row: %w", err)
	}

	for _, ev := range report.BatteryEvents {
		if _, err := tx.Exec(
			`INSERT INTO battery_levels VALUES (?, ?, ?, ?)`,
			id, ev.Timestamp, ev.Level, ev.Charging,
		); err != nil {
			return "", fmt.Errorf("inserting battery level: %w", err)
		}
	}

	for _, rec := range report.PowerRecords {
		if _, err := tx.Exec(
			`INSERT INTO power_totals VALUES (?, ?, ?, ?)`,
			id, rec.Entity.UID, rec.Entity.DisplayName, rec.MilliampHours,
		); err != nil {
			return "", fmt.Errorf("inserting power total: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing archive transaction: %w", err)
	}
	return id, nil
}

// LevelTrend returns all archived battery-level samples within [from, to],
// ordered by timestamp.
func (a *TrendArchive) LevelTrend(from, to time.Time) ([]LevelPoint, error) {
	rows, err := a.db.Query(
		`SELECT dump_id, ts, level, charging
		 FROM battery_levels
		 WHERE ts >= ? AND ts <= ?
		 ORDER BY ts`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("querying level trend: %w", err)
	}
	defer rows.Close()

	points := make([]LevelPoint, 0)
	for rows.Next() {
		var p LevelPoint
		if err := rows.Scan(&p.DumpID, &p.Timestamp, &p.Level, &p.Charging); err != nil {
			return nil, fmt.Errorf("scanning level row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// TopConsumers sums per-app drain across all archived dumps and
// returns the heaviest consumers first.
func (a *TrendArchive) TopConsumers(limit int) ([]ConsumerTotal, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := a.db.Query(
		`SELECT display_name, uid, SUM(mah), COUNT(DISTINCT dump_id)
		 FROM power_totals
		 GROUP BY display_name, uid
		 ORDER BY SUM(mah) DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying top consumers: %w", err)
	}
	defer rows.Close()

	totals := make([]ConsumerTotal, 0, limit)
	for rows.Next() {
		var t ConsumerTotal
		if err := rows.Scan(&t.DisplayName, &t.UID, &t.MilliampHours, &t.DumpCount); err != nil {
			return nil, fmt.Errorf("scanning consumer row: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// ListDumps returns the archived dump summaries, newest first.
func (a *TrendArchive) ListDumps(limit int) ([]DumpSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.Query(
		`SELECT id, file_name, COALESCE(device_model, ''), collected_at,
		        battery_level, COALESCE(health_percent, 0), event_count
		 FROM dumps
		 ORDER BY collected_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying dumps: %w", err)
	}
	defer rows.Close()

	summaries := make([]DumpSummary, 0, limit)
	for rows.Next() {
		var s DumpSummary
		if err := rows.Scan(&s.ID, &s.FileName, &s.DeviceModel, &s.CollectedAt,
			&s.BatteryLevel, &s.HealthPercent, &s.EventCount); err != nil {
			return nil, fmt.Errorf("scanning dump row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close closes the underlying database.
func (a *TrendArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Close()
}
