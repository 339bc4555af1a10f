// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/battery-insight/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr SessionManager
	Trends     TrendStore
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Upload  UploadHandler
	Report  ReportHandler
	Archive ArchiveHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version),
		Upload:  NewUploadHandler(deps.Store),
		Report:  NewReportHandler(deps.SessionMgr),
		Archive: NewArchiveHandler(deps.SessionMgr, deps.Trends),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// File upload routes
	fileGroup := e.Group("/api/files")
	fileGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	fileGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Upload.HandleGetFile)
	fileGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	fileGroup.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Parse session routes
	parseGroup := e.Group("/api/parse")
	parseGroup.POST("", handlers.Report.HandleStartParse)
	parseGroup.GET("/:sessionId/status", handlers.Report.HandleParseStatus)
	parseGroup.POST("/:sessionId/keepalive", handlers.Report.HandleSessionKeepAlive)
	parseGroup.GET("/:sessionId/progress", handlers.Report.HandleParseProgressStream)
	parseGroup.GET("/:sessionId/report", handlers.Report.HandleGetReport)
	parseGroup.GET("/:sessionId/report/msgpack", handlers.Report.HandleGetReportMsgpack)
	parseGroup.GET("/:sessionId/events", handlers.Report.HandleGetBatteryEvents)
	parseGroup.GET("/:sessionId/power", handlers.Report.HandleGetPowerRecords)
	parseGroup.GET("/:sessionId/wakelocks", handlers.Report.HandleGetWakelocks)
	parseGroup.GET("/:sessionId/longwakes", handlers.Report.HandleGetLongwakes)
	parseGroup.GET("/:sessionId/entities", handlers.Report.HandleGetEntities)
	parseGroup.GET("/:sessionId/anomalies", handlers.Report.HandleGetAnomalies)

	// Trend archive routes
	archiveGroup := e.Group("/api/archive")
	archiveGroup.POST("/:sessionId", handlers.Archive.HandleArchiveSession)
	archiveGroup.GET("/trend", handlers.Archive.HandleLevelTrend)
	archiveGroup.GET("/top", handlers.Archive.HandleTopConsumers)
	archiveGroup.GET("/dumps", handlers.Archive.HandleListDumps)
}

// SetupMiddleware configures the error handler
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
