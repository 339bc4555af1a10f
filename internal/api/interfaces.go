// interfaces.go - Handler and collaborator interfaces
package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/battery-insight/backend/internal/archive"
	"github.com/battery-insight/backend/internal/models"
	"github.com/battery-insight/backend/internal/session"
)

// UploadHandler handles dump file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// ReportHandler handles parse session and report operations
type ReportHandler interface {
	HandleStartParse(c echo.Context) error
	HandleParseStatus(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleParseProgressStream(c echo.Context) error
	HandleGetReport(c echo.Context) error
	HandleGetReportMsgpack(c echo.Context) error
	HandleGetBatteryEvents(c echo.Context) error
	HandleGetPowerRecords(c echo.Context) error
	HandleGetWakelocks(c echo.Context) error
	HandleGetLongwakes(c echo.Context) error
	HandleGetEntities(c echo.Context) error
	HandleGetAnomalies(c echo.Context) error
}

// ArchiveHandler handles cross-dump trend operations
type ArchiveHandler interface {
	HandleArchiveSession(c echo.Context) error
	HandleLevelTrend(c echo.Context) error
	HandleTopConsumers(c echo.Context) error
	HandleListDumps(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management.
// This allows mocking in tests.
type SessionManager interface {
	StartSession(fileID string, opts session.StartOptions) (*models.ParseSession, error)
	GetSession(id string) (*models.ParseSession, bool)
	TouchSession(id string) bool
	GetReport(id string) (*models.ParsedReport, bool)
	GetBatteryEvents(id string, page, pageSize int) ([]models.BatteryEvent, int, bool)
	GetPowerRecords(id string, limit int) ([]models.PowerRecord, bool)
	GetWakelockRecords(id string) ([]models.WakelockRecord, bool)
	GetAnomalies(id string, page, pageSize int) ([]models.Anomaly, int, bool)
}

// TrendStore defines the interface for the cross-dump archive.
type TrendStore interface {
	AppendReport(fileName string, report *models.ParsedReport) (string, error)
	LevelTrend(from, to time.Time) ([]archive.LevelPoint, error)
	TopConsumers(limit int) ([]archive.ConsumerTotal, error)
	ListDumps(limit int) ([]archive.DumpSummary, error)
}
