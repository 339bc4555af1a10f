package parser

import (
	"regexp"
	"strconv"
)

// wakelockRowRegex matches summary rows like
// "Wake lock u0a47 NlpCollectorWakeLock: 8m 13s 203ms (1015 times) realtime".
var wakelockRowRegex = regexp.MustCompile(`^Wake lock (\S+)\s+(.+?):\s*(.+?)\s*\((\d+) times\)`)

// wakelockRow is one parsed wakelock summary row before identity
// resolution.
type wakelockRow struct {
	line   int
	token  string
	name   string
	count  int
	millis int64
}

// extractWakelocks parses WakelockRow lines, normalizing mixed-unit
// durations to milliseconds. A corrupted row is skipped with an anomaly
// and does not affect the remaining rows.
func extractWakelocks(lines []sectionLine, sink *anomalySink) []wakelockRow {
	rows := make([]wakelockRow, 0, len(lines))

	for _, ln := range lines {
		m := wakelockRowRegex.FindStringSubmatch(ln.text)
		if m == nil {
			sink.rowSkipped(TagWakelockRow, ln, "row does not match wakelock summary shape")
			continue
		}

		millis, err := ParseDurationMillis(m[3])
		if err != nil {
			sink.rowSkipped(TagWakelockRow, ln, "invalid duration: "+err.Error())
			continue
		}

		count, err := strconv.Atoi(m[4])
		if err != nil {
			sink.rowSkipped(TagWakelockRow, ln, "invalid hold count: "+err.Error())
			continue
		}

		// A lock that was never held cannot have accumulated time.
		if count == 0 && millis != 0 {
			sink.rowSkipped(TagWakelockRow, ln, "zero hold count with non-zero duration; duration dropped")
			millis = 0
		}

		rows = append(rows, wakelockRow{
			line:   ln.num,
			token:  m[1],
			name:   m[2],
			count:  count,
			millis: millis,
		})
	}

	return rows
}
