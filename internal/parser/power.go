package parser

import (
	"regexp"
	"strings"
)

// powerRowRegex captures "<label>: <number>" with any per-component
// breakdown ("( cpu=... wake=... )") left in the remainder.
var powerRowRegex = regexp.MustCompile(`^(.+?):\s*([0-9.]+)`)

// parenLabelRegex lifts a friendly name out of a parenthesized label,
// e.g. "Uid u0a123 (Maps)".
var parenLabelRegex = regexp.MustCompile(`\(([^)]+)\)`)

// uidLabelRegex lifts the UID token out of "Uid <tok>" labels.
var uidLabelRegex = regexp.MustCompile(`(?i)\buid\s+(\S+)`)

// powerRow is one parsed power-summary row before identity resolution.
type powerRow struct {
	line     int
	token    string // entity token: UID token or system-bucket label
	friendly string // parenthesized display name, if the label carried one
	mah      float64
}

// extractPower parses PowerSummaryRow lines into entity tokens and
// milliamp-hour values. A numeric failure discards that row only.
func extractPower(lines []sectionLine, sink *anomalySink) []powerRow {
	rows := make([]powerRow, 0, len(lines))

	for _, ln := range lines {
		m := powerRowRegex.FindStringSubmatch(ln.text)
		if m == nil {
			sink.rowSkipped(TagPowerRow, ln, "row does not match \"label: value\" shape")
			continue
		}

		label := strings.TrimSpace(m[1])
		mah, err := parseMAh(m[2])
		if err != nil {
			sink.rowSkipped(TagPowerRow, ln, "invalid mAh value: "+err.Error())
			continue
		}

		token, friendly := powerEntityToken(label)
		rows = append(rows, powerRow{
			line:     ln.num,
			token:    token,
			friendly: friendly,
			mah:      mah,
		})
	}

	return rows
}

// powerEntityToken narrows a raw row label to the entity token plus an
// optional friendly name: a "Uid <tok>" reference becomes the token
// with any parenthesized name kept as friendly; a parenthesized name
// without a UID stands alone; otherwise the label itself is the entity
// (system buckets like "Screen" or "Cell standby").
func powerEntityToken(label string) (token, friendly string) {
	if m := parenLabelRegex.FindStringSubmatch(label); m != nil {
		friendly = strings.TrimSpace(m[1])
	}
	if m := uidLabelRegex.FindStringSubmatch(label); m != nil {
		return m[1], friendly
	}
	if friendly != "" {
		return friendly, ""
	}
	return label, ""
}
