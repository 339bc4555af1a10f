package parser

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/battery-insight/backend/internal/models"
)

// sectionLine is one classified line queued for a section extractor.
type sectionLine struct {
	num  int
	text string // surrounding whitespace trimmed
}

// anomalySink accumulates the non-fatal anomalies of one parse pass.
type anomalySink struct {
	anomalies []models.Anomaly
}

func (s *anomalySink) add(a models.Anomaly) {
	s.anomalies = append(s.anomalies, a)
}

func (s *anomalySink) rowSkipped(section LineTag, ln sectionLine, reason string) {
	s.add(models.Anomaly{
		Kind:    models.AnomalyRowSkipped,
		Line:    ln.num,
		Content: ln.text,
		Section: section.String(),
		Reason:  reason,
	})
}

// PassState tracks one parse pass through its lifecycle. Done and
// Failed are terminal.
type PassState int

const (
	PassStart PassState = iota
	PassScanningSections
	PassExtracting
	PassMergingResults
	PassDone
	PassFailed
)

// String returns a human-readable representation of the pass state.
func (s PassState) String() string {
	switch s {
	case PassStart:
		return "Start"
	case PassScanningSections:
		return "ScanningSections"
	case PassExtracting:
		return "Extracting"
	case PassMergingResults:
		return "MergingResults"
	case PassDone:
		return "Done"
	case PassFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// maxScannerBuffer bounds a single dump line (1MB).
const maxScannerBuffer = 1024 * 1024

// BatteryStatsParser parses the plain-text "dumpsys batterystats"
// format. One Parse call is one independent pass: no state survives
// between calls, so passes may run concurrently without coordination.
type BatteryStatsParser struct{}

// NewBatteryStatsParser creates the batterystats text parser.
func NewBatteryStatsParser() *BatteryStatsParser {
	return &BatteryStatsParser{}
}

func (p *BatteryStatsParser) Name() string {
	return "batterystats"
}

// CanParse looks for any of the known section markers.
func (p *BatteryStatsParser) CanParse(text string) bool {
	return strings.Contains(text, historyMarker) ||
		strings.Contains(text, powerMarker) ||
		strings.Contains(text, wakelockMarker)
}

// pass holds the per-call state of one assembly run.
type pass struct {
	state  PassState
	sink   anomalySink
	intern *StringIntern

	historyLines  []sectionLine
	powerLines    []sectionLine
	wakelockLines []sectionLine
	packages      PackageMap
}

func (ps *pass) transition(next PassState) {
	if ps.state == PassDone || ps.state == PassFailed {
		return
	}
	ps.state = next
}

// Parse drives the full pass: stream lines through the classifier,
// buffer per-section runs, dispatch them to the extractors, merge the
// results, and resolve cross-section identities. Only an empty or
// undecodable input is fatal; everything else degrades to anomalies.
func (p *BatteryStatsParser) Parse(text string, opts Options) (*models.ParsedReport, []models.Anomaly, error) {
	ps := &pass{state: PassStart, intern: NewStringIntern()}

	if !validText(text) {
		ps.transition(PassFailed)
		return nil, nil, ErrEmptyInput
	}
	text = strings.TrimPrefix(text, "\xEF\xBB\xBF")

	ps.packages = make(PackageMap, len(opts.Packages))
	for uid, name := range opts.Packages {
		ps.packages[uid] = name
	}

	report := models.NewParsedReport()

	ps.transition(PassScanningSections)
	if err := ps.scan(text, report); err != nil {
		ps.transition(PassFailed)
		return nil, nil, err
	}

	ps.transition(PassExtracting)
	events, marks := extractHistory(ps.historyLines, &ps.sink)
	powerRows := extractPower(ps.powerLines, &ps.sink)
	wakelockRows := extractWakelocks(ps.wakelockLines, &ps.sink)

	ps.transition(PassMergingResults)
	resolver := NewIdentityResolver(ps.packages, &ps.sink)

	report.BatteryEvents = events
	report.PowerRecords = ps.mergePower(powerRows, resolver)
	report.WakelockRecords = ps.mergeWakelocks(wakelockRows, resolver)
	report.Longwakes = ps.pairLongwakes(marks, resolver)
	report.Entities = resolver.Entities()

	if len(events) > 0 {
		report.TimeRange = &models.TimeRange{
			Start: events[0].Timestamp,
			End:   events[len(events)-1].Timestamp,
		}
	}

	meta := &report.Metadata
	meta.DeviceModel = opts.DeviceModel
	meta.AndroidVersion = opts.AndroidVersion
	meta.CollectionTimestamp = opts.CollectedAt
	if opts.DesignCapacityMAh > 0 && meta.CapacityMAh > 0 {
		meta.HealthPercent = meta.CapacityMAh / opts.DesignCapacityMAh * 100
	}

	ps.crossCheckDrain(report, opts)

	ps.transition(PassDone)
	return report, ps.sink.anomalies, nil
}

// scan classifies every line, buffering section rows and folding
// metadata lines into the report as they appear.
func (ps *pass) scan(text string, report *models.ParsedReport) error {
	classifier := NewClassifier()
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, maxScannerBuffer), maxScannerBuffer)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		tag := classifier.Classify(line)
		trimmed := strings.TrimSpace(line)
		ln := sectionLine{num: lineNum, text: trimmed}

		switch tag {
		case TagHistoryEvent:
			ps.historyLines = append(ps.historyLines, ln)
		case TagPowerRow:
			ps.powerLines = append(ps.powerLines, ln)
		case TagWakelockRow:
			ps.wakelockLines = append(ps.wakelockLines, ln)
		case TagMetadata:
			ps.applyMetadata(ln, &report.Metadata)
		case TagNoise:
			if trimmed != "" && LooksLikeSectionHeader(line) {
				ps.sink.add(models.Anomaly{
					Kind:    models.AnomalyUnknownSection,
					Line:    lineNum,
					Content: trimmed,
					Reason:  "line looks like a section header but matches no known marker",
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning dump: %w", err)
	}
	return nil
}

// applyMetadata folds one Metadata-tagged line into the report.
func (ps *pass) applyMetadata(ln sectionLine, meta *models.ReportMetadata) {
	if name, uid, ok := parsePackageLine(ln.text); ok {
		ps.packages[uid] = name
		return
	}

	if v, ok := strings.CutPrefix(ln.text, "level:"); ok {
		lvl, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || lvl < 0 || lvl > 100 {
			ps.sink.rowSkipped(TagMetadata, ln, "invalid battery level")
			return
		}
		meta.BatteryLevel = lvl
		return
	}

	// "Capacity: 4500, Computed drain: 1288, actual drain: ..."
	for _, part := range strings.Split(ln.text, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "Capacity:"); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				meta.CapacityMAh = f
			}
		} else if v, ok := strings.CutPrefix(part, "Computed drain:"); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				meta.ComputedDrainMAh = f
			}
		}
	}
}

// mergePower deduplicates power rows by resolved entity, summing
// duplicate rows (the format legitimately repeats an entity across
// per-component sub-entries), then ranks by descending consumption
// with ties broken by first appearance.
func (ps *pass) mergePower(rows []powerRow, resolver *IdentityResolver) []models.PowerRecord {
	records := make([]models.PowerRecord, 0, len(rows))
	index := make(map[*models.EntityIdentity]int)

	for _, row := range rows {
		entity := resolver.ResolveNamed(ps.intern.Intern(row.token), row.friendly)
		if i, ok := index[entity]; ok {
			records[i].MilliampHours += row.mah
			continue
		}
		index[entity] = len(records)
		records = append(records, models.PowerRecord{
			Entity:        entity,
			MilliampHours: row.mah,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].MilliampHours > records[j].MilliampHours
	})
	for i := range records {
		records[i].Rank = i + 1
	}
	return records
}

// mergeWakelocks deduplicates wakelock rows by (entity, lock name),
// summing counts and durations, preserving first-seen order.
func (ps *pass) mergeWakelocks(rows []wakelockRow, resolver *IdentityResolver) []models.WakelockRecord {
	type key struct {
		entity *models.EntityIdentity
		name   string
	}
	records := make([]models.WakelockRecord, 0, len(rows))
	index := make(map[key]int)

	for _, row := range rows {
		entity := resolver.Resolve(ps.intern.Intern(row.token))
		name := ps.intern.Intern(row.name)
		k := key{entity, name}
		if i, ok := index[k]; ok {
			records[i].HoldCount += row.count
			records[i].TotalHeldMillis += row.millis
			continue
		}
		index[k] = len(records)
		records = append(records, models.WakelockRecord{
			Entity:          entity,
			LockName:        name,
			HoldCount:       row.count,
			TotalHeldMillis: row.millis,
		})
	}
	return records
}

// pairLongwakes matches +longwake/-longwake markers per (uid, tag),
// each close consuming the earliest unmatched open. Unmatched markers
// become informational anomalies, never spans.
func (ps *pass) pairLongwakes(marks []longwakeMark, resolver *IdentityResolver) []models.WakeSpan {
	type key struct{ token, tag string }
	open := make(map[key][]int)
	matched := make([]bool, len(marks))
	spans := make([]models.WakeSpan, 0)

	for i, m := range marks {
		k := key{m.token, m.tag}
		if m.open {
			open[k] = append(open[k], i)
			continue
		}
		matched[i] = true
		queue := open[k]
		if len(queue) == 0 {
			ps.sink.add(models.Anomaly{
				Kind:    models.AnomalyUnmatchedLongwake,
				Line:    m.line,
				Content: m.token + ":" + m.tag,
				Reason:  "longwake close without a matching open",
			})
			continue
		}
		j := queue[0]
		open[k] = queue[1:]
		matched[j] = true
		if m.ts.Before(marks[j].ts) {
			// Negative span, most likely a clock shift between markers.
			ps.sink.add(models.Anomaly{
				Kind:    models.AnomalyUnmatchedLongwake,
				Line:    m.line,
				Content: m.token + ":" + m.tag,
				Reason:  "longwake close precedes its open",
			})
			continue
		}
		spans = append(spans, models.WakeSpan{
			Entity: resolver.Resolve(ps.intern.Intern(m.token)),
			Tag:    m.tag,
			Start:  marks[j].ts,
			End:    m.ts,
		})
	}

	for i, m := range marks {
		if m.open && !matched[i] {
			ps.sink.add(models.Anomaly{
				Kind:    models.AnomalyUnmatchedLongwake,
				Line:    m.line,
				Content: m.token + ":" + m.tag,
				Reason:  "longwake open without a matching close",
			})
		}
	}
	return spans
}

// crossCheckDrain compares the summed per-entity consumption with the
// dump's stated computed drain, when present.
func (ps *pass) crossCheckDrain(report *models.ParsedReport, opts Options) {
	drain := report.Metadata.ComputedDrainMAh
	if drain <= 0 {
		return
	}
	tolerance := opts.DrainTolerance
	if tolerance <= 0 {
		tolerance = DefaultDrainTolerance
	}

	var sum float64
	for _, rec := range report.PowerRecords {
		sum += rec.MilliampHours
	}
	if diff := sum - drain; diff > tolerance*drain || -diff > tolerance*drain {
		ps.sink.add(models.Anomaly{
			Kind: models.AnomalyDrainMismatch,
			Reason: fmt.Sprintf("per-entity sum %.1f mAh disagrees with stated computed drain %.1f mAh",
				sum, drain),
		})
	}
}
