package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/battery-insight/backend/internal/models"
)

// historyBaseLayout is the wall-clock format of RESET:TIME markers,
// e.g. "2023-04-01-10-00-00".
const historyBaseLayout = "2006-01-02-15-04-05"

// longwakeRegex matches ±longwake=<uid>:"<tag>" markers; the tag may
// contain spaces.
var longwakeRegex = regexp.MustCompile(`([+-])longwake=([^:\s]+):"([^"]*)"`)

// longwakeMark is one +longwake/-longwake marker lifted from a history
// line, paired into WakeSpans by the assembler.
type longwakeMark struct {
	line  int
	ts    time.Time
	open  bool
	token string
	tag   string
}

// historyState is the running accumulator for the delta encoding: each
// history line carries only the fields that changed, so decoding
// overlays them onto the last known state. The accumulator is local to
// one parse pass.
type historyState struct {
	base     time.Time
	haveBase bool
	level    int // -1 until the first level is seen
	charging bool
	lastTS   time.Time
	haveTS   bool
}

// extractHistory decodes HistoryEvent lines into BatteryEvents and
// longwake markers. Malformed lines are skipped with an anomaly.
func extractHistory(lines []sectionLine, sink *anomalySink) ([]models.BatteryEvent, []longwakeMark) {
	events := make([]models.BatteryEvent, 0, len(lines))
	var marks []longwakeMark

	st := historyState{
		// Without a RESET:TIME marker timestamps stay device-relative
		// against the epoch.
		base:  time.Unix(0, 0).UTC(),
		level: -1,
	}

	for _, ln := range lines {
		fields := strings.Fields(ln.text)
		if len(fields) < 2 {
			sink.rowSkipped(TagHistoryEvent, ln, "history line too short")
			continue
		}

		offset, err := parseHistoryOffset(fields[0])
		if err != nil {
			sink.rowSkipped(TagHistoryEvent, ln, "invalid time offset: "+err.Error())
			continue
		}

		// Detail is everything after the "(n)" command-count anchor;
		// keep the raw text so quoted wakelock tags survive intact.
		anchorEnd := strings.Index(ln.text, ")")
		if anchorEnd < 0 {
			sink.rowSkipped(TagHistoryEvent, ln, "missing command-count anchor")
			continue
		}
		detail := strings.TrimSpace(ln.text[anchorEnd+1:])

		// Wall-clock base markers reset the offset origin.
		if strings.HasPrefix(detail, "RESET:TIME:") || strings.HasPrefix(detail, "TIME:") {
			stamp := strings.TrimSpace(detail[strings.Index(detail, "TIME:")+len("TIME:"):])
			base, err := time.Parse(historyBaseLayout, stamp)
			if err != nil {
				sink.rowSkipped(TagHistoryEvent, ln, "invalid RESET:TIME value: "+err.Error())
				continue
			}
			st.base = base.UTC()
			st.haveBase = true
			continue
		}

		ts := st.base.Add(offset)
		for _, m := range longwakeRegex.FindAllStringSubmatch(detail, -1) {
			marks = append(marks, longwakeMark{
				line:  ln.num,
				ts:    ts,
				open:  m[1] == "+",
				token: m[2],
				tag:   m[3],
			})
		}

		tokens := strings.Fields(detail)
		badLevel := false
		for i, tok := range tokens {
			if i == 0 && len(tok) <= 3 && isDigits(tok) {
				lvl, _ := strconv.Atoi(tok)
				if lvl > 100 {
					sink.rowSkipped(TagHistoryEvent, ln, "battery level out of range: "+tok)
					badLevel = true
					break
				}
				st.level = lvl
				continue
			}
			if v, ok := strings.CutPrefix(tok, "status="); ok {
				switch v {
				case "charging", "full":
					st.charging = true
				case "discharging", "not-charging":
					st.charging = false
				}
			}
		}
		if badLevel {
			continue
		}

		// Until the first level is known there is no complete state to
		// overlay, so nothing is emitted.
		if st.level < 0 {
			continue
		}

		if st.haveTS && ts.Before(st.lastTS) {
			sink.add(models.Anomaly{
				Kind:    models.AnomalyTimestampOrder,
				Line:    ln.num,
				Content: ln.text,
				Section: TagHistoryEvent.String(),
				Reason:  "timestamp went backwards relative to previous event",
			})
		}
		st.lastTS = ts
		st.haveTS = true

		events = append(events, models.BatteryEvent{
			Timestamp: ts,
			Level:     st.level,
			Charging:  st.charging,
			Line:      ln.num,
		})
	}

	return events, marks
}

// parseHistoryOffset parses the leading offset token: "0" or a
// "+1h2m3s4ms"-style delta against the section base time.
func parseHistoryOffset(tok string) (time.Duration, error) {
	if tok == "0" {
		return 0, nil
	}
	ms, err := ParseDurationMillis(strings.TrimPrefix(tok, "+"))
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
