// Package parser turns raw batterystats dump text into a structured
// ParsedReport: battery-level history, per-entity estimated power draw,
// and per-entity wakelock hold durations.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/battery-insight/backend/internal/models"
)

// ErrEmptyInput is the only fatal parse error: the input buffer is
// empty or not decodable as text. Every other problem is recorded as an
// anomaly and the pass still produces a report.
var ErrEmptyInput = errors.New("dump is empty or not decodable as text")

// Options carries per-pass context handed in by external collaborators:
// the device-debugging client's metadata key/values and an optional
// UID-to-package map parsed from a package list.
type Options struct {
	Packages       PackageMap
	DeviceModel    string
	AndroidVersion string
	CollectedAt    time.Time

	// DesignCapacityMAh is the battery's design capacity, used to turn
	// the dump's stated Capacity into a health percentage. Zero disables
	// the estimate.
	DesignCapacityMAh float64

	// DrainTolerance is the allowed relative difference between the
	// summed per-entity mAh and the dump's stated computed drain before
	// a drain_mismatch anomaly is recorded. Zero means the default.
	DrainTolerance float64
}

// DefaultDrainTolerance allows the per-entity sum to differ from the
// stated computed drain by 10% before the cross-check flags it.
const DefaultDrainTolerance = 0.10

// Parser defines the interface for dump parsers.
type Parser interface {
	// Name returns the unique name of the parser.
	Name() string
	// CanParse returns true if this parser recognizes the given text.
	CanParse(text string) bool
	// Parse runs one full pass over the text and returns the report
	// plus all non-fatal anomalies.
	Parse(text string, opts Options) (*models.ParsedReport, []models.Anomaly, error)
}

// Registry holds all available parsers and provides auto-detection.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry with all built-in parsers.
func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{
			NewBatteryStatsParser(),
		},
	}
}

// Register adds a new parser to the registry.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// FindParser detects the correct parser for a dump.
func (r *Registry) FindParser(text string) (Parser, error) {
	for _, p := range r.parsers {
		if p.CanParse(text) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no suitable parser found for input")
}

// GetParserByName returns a parser by its name.
func (r *Registry) GetParserByName(name string) (Parser, error) {
	name = strings.ToLower(name)
	for _, p := range r.parsers {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("parser not found: %s", name)
}

// validText reports whether the buffer holds text the pass can scan.
// A UTF-8 BOM is tolerated; NUL bytes or invalid UTF-8 are not.
func validText(text string) bool {
	text = strings.TrimPrefix(text, "\xEF\xBB\xBF")
	if strings.TrimSpace(text) == "" {
		return false
	}
	if strings.ContainsRune(text, 0) {
		return false
	}
	return utf8.ValidString(text)
}

// parseMAh parses a milliamp-hour figure from a power row.
func parseMAh(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative mAh value: %s", s)
	}
	return v, nil
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
