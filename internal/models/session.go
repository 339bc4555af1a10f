package models

// SessionStatus represents the status of a parse session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusParsing  SessionStatus = "parsing"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// ParseSession represents one dump parsing session.
type ParseSession struct {
	ID               string        `json:"id"`
	FileID           string        `json:"fileId"`
	PackagesFileID   string        `json:"packagesFileId,omitempty"`
	Status           SessionStatus `json:"status"`
	Progress         float64       `json:"progress"` // 0-100
	EventCount       int           `json:"eventCount,omitempty"`
	EntityCount      int           `json:"entityCount,omitempty"`
	AnomalyCount     int           `json:"anomalyCount"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	StartTime        int64         `json:"startTime,omitempty"` // history window, Unix ms
	EndTime          int64         `json:"endTime,omitempty"`   // history window, Unix ms
	ParserName       string        `json:"parserName,omitempty"`
	Error            string        `json:"error,omitempty"`
	Anomalies        []Anomaly     `json:"anomalies,omitempty"`
}

// NewParseSession creates a new ParseSession in pending status.
func NewParseSession(id, fileID string) *ParseSession {
	return &ParseSession{
		ID:        id,
		FileID:    fileID,
		Status:    SessionStatusPending,
		Progress:  0,
		Anomalies: make([]Anomaly, 0),
	}
}
