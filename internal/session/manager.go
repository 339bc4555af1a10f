package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/battery-insight/backend/internal/models"
	"github.com/battery-insight/backend/internal/parser"
	"github.com/battery-insight/backend/internal/storage"
)

// DefaultMaxSessions limits concurrent sessions to prevent memory exhaustion
const DefaultMaxSessions = 100

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// Manager handles active dump parsing sessions.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	registry    *parser.Registry
	store       storage.Store
	defaults    parser.Options
	maxSessions int
}

// SessionState holds the session metadata and the parsed report.
type SessionState struct {
	Session      *models.ParseSession
	Report       *models.ParsedReport
	LastAccessed time.Time
}

// StartOptions carries the per-dump context supplied with an upload.
type StartOptions struct {
	PackagesFileID string
	DeviceModel    string
	AndroidVersion string
}

// NewManager creates a session manager. The defaults carry the
// analysis settings applied to every pass; maxSessions <= 0 uses
// DefaultMaxSessions.
func NewManager(store storage.Store, defaults parser.Options, maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*SessionState),
		registry:    parser.NewRegistry(),
		store:       store,
		defaults:    defaults,
		maxSessions: maxSessions,
	}
}

// StartSession begins the parsing process for an uploaded dump file.
func (m *Manager) StartSession(fileID string, opts StartOptions) (*models.ParseSession, error) {
	if _, err := m.store.Get(fileID); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	// Clean up old sessions if at limit
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()

	session := models.NewParseSession(sessionID, fileID)
	session.PackagesFileID = opts.PackagesFileID
	session.Status = models.SessionStatusParsing

	state := &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	// Run parsing in a background goroutine
	go m.runParse(sessionID, fileID, opts)

	return session, nil
}

func (m *Manager) runParse(sessionID, fileID string, opts StartOptions) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Parse %s] PANIC recovered: %v\n", sessionID[:8], r)
			m.updateSessionError(sessionID, fmt.Sprintf("parse panicked: %v", r))
		}
	}()

	start := time.Now()

	text, info, err := m.readDump(fileID)
	if err != nil {
		fmt.Printf("[Parse %s] ERROR reading dump: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to read dump: %v", err))
		return
	}
	fmt.Printf("[Parse %s] Starting parse of %s (%d bytes)\n", sessionID[:8], info.Name, len(text))

	p, err := m.registry.FindParser(text)
	if err != nil {
		fmt.Printf("[Parse %s] ERROR: failed to find parser: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to find parser: %v", err))
		return
	}

	m.setProgress(sessionID, 10)

	passOpts := m.defaults
	passOpts.DeviceModel = opts.DeviceModel
	passOpts.AndroidVersion = opts.AndroidVersion
	passOpts.CollectedAt = info.UploadedAt

	if opts.PackagesFileID != "" {
		pkgText, _, err := m.readDump(opts.PackagesFileID)
		if err != nil {
			fmt.Printf("[Parse %s] ERROR reading package list: %v\n", sessionID[:8], err)
			m.updateSessionError(sessionID, fmt.Sprintf("failed to read package list: %v", err))
			return
		}
		passOpts.Packages = parser.ParsePackageList(pkgText)
	}

	report, anomalies, err := p.Parse(text, passOpts)
	if err != nil {
		fmt.Printf("[Parse %s] ERROR: parse failed: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("parse failed: %v", err))
		return
	}

	fmt.Printf("[Parse %s] Parse complete: %d events, %d entities, %d anomalies\n",
		sessionID[:8], len(report.BatteryEvents), len(report.Entities), len(anomalies))

	elapsed := time.Since(start).Milliseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Report = report
	state.Session.Status = models.SessionStatusComplete
	state.Session.Progress = 100
	state.Session.EventCount = len(report.BatteryEvents)
	state.Session.EntityCount = len(report.Entities)
	state.Session.AnomalyCount = len(anomalies)
	state.Session.Anomalies = anomalies
	state.Session.ProcessingTimeMs = elapsed
	state.Session.ParserName = p.Name()

	if report.TimeRange != nil {
		state.Session.StartTime = report.TimeRange.Start.UnixMilli()
		state.Session.EndTime = report.TimeRange.End.UnixMilli()
	}
}

// readDump loads a stored file into memory.
func (m *Manager) readDump(fileID string) (string, *models.FileInfo, error) {
	info, err := m.store.Get(fileID)
	if err != nil {
		return "", nil, err
	}
	path, err := m.store.GetFilePath(fileID)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return string(data), info, nil
}

func (m *Manager) setProgress(sessionID string, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Progress = progress
	}
}

func (m *Manager) updateSessionError(sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Session.Status = models.SessionStatusError
	state.Session.Error = reason
}

// cleanupOldSessionsIfNeeded removes completed sessions if at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.maxSessions {
		return
	}

	var toDelete []string
	for id, state := range m.sessions {
		if state.Session.Status == models.SessionStatusComplete ||
			state.Session.Status == models.SessionStatusError {
			toDelete = append(toDelete, id)
		}
	}

	toFree := len(m.sessions) - m.maxSessions + 1
	deleted := 0
	for _, id := range toDelete {
		if deleted >= toFree {
			break
		}
		delete(m.sessions, id)
		deleted++
		fmt.Printf("[Manager] Cleaned up old session %s to free memory\n", id[:8])
	}
}

// CleanupOldSessions removes sessions older than maxAge, keeping
// sessions accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		if state.Session.Status != models.SessionStatusComplete &&
			state.Session.Status != models.SessionStatusError {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			fmt.Printf("[Manager] Cleaned up aged session %s (last accessed: %s ago)\n",
				id[:8], time.Since(state.LastAccessed).Round(time.Second))
		}
	}
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(id string) (*models.ParseSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Session, true
}

// TouchSession updates the LastAccessed timestamp for a session so an
// actively used session is not cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// GetReport returns the full parsed report of a completed session.
func (m *Manager) GetReport(id string) (*models.ParsedReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Report == nil {
		return nil, false
	}
	return state.Report, true
}

// GetBatteryEvents returns paginated battery-level events for a session.
func (m *Manager) GetBatteryEvents(id string, page, pageSize int) ([]models.BatteryEvent, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Report == nil {
		return nil, 0, false
	}

	events := state.Report.BatteryEvents
	start, end, total := pageBounds(len(events), page, pageSize)
	return events[start:end], total, true
}

// GetPowerRecords returns the ranked per-entity power records, capped
// at limit when it is positive.
func (m *Manager) GetPowerRecords(id string, limit int) ([]models.PowerRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Report == nil {
		return nil, false
	}

	records := state.Report.PowerRecords
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, true
}

// GetWakelockRecords returns the per-entity wakelock records.
func (m *Manager) GetWakelockRecords(id string) ([]models.WakelockRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Report == nil {
		return nil, false
	}
	return state.Report.WakelockRecords, true
}

// GetAnomalies returns paginated anomalies recorded for a session.
// Unlike the report accessors this also works for failed sessions.
func (m *Manager) GetAnomalies(id string, page, pageSize int) ([]models.Anomaly, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, 0, false
	}

	anomalies := state.Session.Anomalies
	start, end, total := pageBounds(len(anomalies), page, pageSize)
	return anomalies[start:end], total, true
}

// pageBounds clamps 1-based page/pageSize to slice bounds.
func pageBounds(total, page, pageSize int) (int, int, int) {
	start := (page - 1) * pageSize
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end, total
}
