package parser

import "strings"

// LineTag identifies which logical section a dump line belongs to.
type LineTag int

const (
	TagNoise LineTag = iota
	TagMetadata
	TagHistoryHeader
	TagHistoryEvent
	TagPowerHeader
	TagPowerRow
	TagWakelockHeader
	TagWakelockRow
)

// String returns a human-readable representation of the tag.
func (t LineTag) String() string {
	switch t {
	case TagMetadata:
		return "Metadata"
	case TagHistoryHeader:
		return "HistoryHeader"
	case TagHistoryEvent:
		return "HistoryEvent"
	case TagPowerHeader:
		return "PowerSummaryHeader"
	case TagPowerRow:
		return "PowerSummaryRow"
	case TagWakelockHeader:
		return "WakelockHeader"
	case TagWakelockRow:
		return "WakelockRow"
	default:
		return "Noise"
	}
}

// Fixed textual markers for the known section headers.
const (
	historyMarker  = "Battery History"
	powerMarker    = "Estimated power use (mAh)"
	wakelockMarker = "All partial wake locks:"

	// powerTerminator ends the power section early, before any blank line.
	powerTerminator = "Per-app mobile ms per packet"
)

// Classifier tags one line at a time. Its only cross-line state is the
// most recently seen section header: after a header, lines are
// tentatively classified as rows of that section until a blank line or
// the next header ends it.
type Classifier struct {
	section LineTag // TagHistoryHeader, TagPowerHeader, TagWakelockHeader, or TagNoise
}

// NewClassifier creates a classifier with no section open.
func NewClassifier() *Classifier {
	return &Classifier{section: TagNoise}
}

// Section returns the currently open section header tag, or TagNoise.
func (c *Classifier) Section() LineTag {
	return c.section
}

// Classify tags a single line and updates the section-boundary state.
func (c *Classifier) Classify(line string) LineTag {
	trimmed := strings.TrimSpace(line)

	// A blank or separator line ends the open section.
	if trimmed == "" {
		c.section = TagNoise
		return TagNoise
	}

	switch {
	case strings.Contains(line, historyMarker):
		c.section = TagHistoryHeader
		return TagHistoryHeader
	case strings.Contains(line, powerMarker):
		c.section = TagPowerHeader
		return TagPowerHeader
	case strings.Contains(line, wakelockMarker):
		c.section = TagWakelockHeader
		return TagWakelockHeader
	}

	if isMetadataLine(trimmed) {
		return TagMetadata
	}

	switch c.section {
	case TagHistoryHeader:
		if isHistoryEventLine(trimmed) {
			return TagHistoryEvent
		}
	case TagPowerHeader:
		if trimmed == powerTerminator || strings.HasPrefix(trimmed, powerTerminator) {
			c.section = TagNoise
			return TagNoise
		}
		if isPowerRowLine(trimmed) {
			return TagPowerRow
		}
	case TagWakelockHeader:
		if strings.HasPrefix(trimmed, "Wake lock ") {
			return TagWakelockRow
		}
	}

	// A header-looking line for a section we do not know ends the open
	// section; the assembler records it as an unknown_section anomaly.
	if LooksLikeSectionHeader(line) {
		c.section = TagNoise
	}
	return TagNoise
}

// LooksLikeSectionHeader reports whether an unrecognized line has the
// shape of a section header: unindented, non-empty, ending in a colon.
func LooksLikeSectionHeader(line string) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	trimmed := strings.TrimSpace(line)
	return strings.HasSuffix(trimmed, ":")
}

// isMetadataLine recognizes the small key/value lines the assembler
// folds into report metadata, wherever they appear in the dump.
func isMetadataLine(trimmed string) bool {
	if strings.HasPrefix(trimmed, "package:") && strings.Contains(trimmed, "uid:") {
		return true
	}
	if strings.HasPrefix(trimmed, "level:") {
		return true
	}
	if strings.HasPrefix(trimmed, "Capacity:") {
		return true
	}
	return false
}

// isHistoryEventLine matches the compact history encoding:
// "<offset> (<n>) ..." where offset is "0" or a "+1h2m3s4ms" delta.
func isHistoryEventLine(trimmed string) bool {
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return false
	}
	off := fields[0]
	if off != "0" && !strings.HasPrefix(off, "+") {
		return false
	}
	anchor := fields[1]
	return len(anchor) >= 3 && anchor[0] == '(' && anchor[len(anchor)-1] == ')'
}

// isPowerRowLine loosely matches "<label>: <number> ..." rows; the
// extractor validates the numeric part and records anomalies.
func isPowerRowLine(trimmed string) bool {
	idx := strings.Index(trimmed, ":")
	if idx <= 0 || idx == len(trimmed)-1 {
		return false
	}
	rest := strings.TrimSpace(trimmed[idx+1:])
	return rest != "" && (rest[0] >= '0' && rest[0] <= '9' || rest[0] == '.')
}
