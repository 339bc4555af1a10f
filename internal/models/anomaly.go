package models

// AnomalyKind classifies a non-fatal parsing issue.
type AnomalyKind string

const (
	// AnomalyRowSkipped marks a row inside a recognized section that
	// failed to parse and was skipped.
	AnomalyRowSkipped AnomalyKind = "row_skipped"
	// AnomalyUnknownSection marks a header-looking line that matched no
	// known section marker.
	AnomalyUnknownSection AnomalyKind = "unknown_section"
	// AnomalyIdentityAmbiguity marks a UID that appeared under
	// conflicting display names.
	AnomalyIdentityAmbiguity AnomalyKind = "identity_ambiguity"
	// AnomalyTimestampOrder marks a history event whose timestamp went
	// backwards relative to the previous event.
	AnomalyTimestampOrder AnomalyKind = "timestamp_order"
	// AnomalyUnmatchedLongwake marks a longwake open without a close or
	// a close without an open.
	AnomalyUnmatchedLongwake AnomalyKind = "unmatched_longwake"
	// AnomalyDrainMismatch marks a per-entity mAh sum that disagrees
	// with the dump's stated computed drain beyond tolerance.
	AnomalyDrainMismatch AnomalyKind = "drain_mismatch"
)

// Anomaly records a single non-fatal parsing issue. Every skipped row
// keeps its original line number and content so it stays traceable.
type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Line    int         `json:"line,omitempty"`
	Content string      `json:"content,omitempty"`
	Section string      `json:"section,omitempty"`
	Reason  string      `json:"reason"`
}
