// handlers_report.go - Parse session and report operation handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/battery-insight/backend/internal/models"
	"github.com/battery-insight/backend/internal/session"
)

// ReportHandlerImpl implements the ReportHandler interface
type ReportHandlerImpl struct {
	sessionMgr SessionManager
}

// NewReportHandler creates a new report handler instance
func NewReportHandler(sessionMgr SessionManager) ReportHandler {
	return &ReportHandlerImpl{sessionMgr: sessionMgr}
}

// HandleStartParse starts a new parsing session for an uploaded dump
func (h *ReportHandlerImpl) HandleStartParse(c echo.Context) error {
	var req startParseRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	sess, err := h.sessionMgr.StartSession(req.FileID, session.StartOptions{
		PackagesFileID: req.PackagesFileID,
		DeviceModel:    req.DeviceModel,
		AndroidVersion: req.AndroidVersion,
	})
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleParseStatus returns the current status of a parsing session
func (h *ReportHandlerImpl) HandleParseStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *ReportHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleParseProgressStream streams parsing progress via SSE
func (h *ReportHandlerImpl) HandleParseProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		h.sendSSEError(c, "session not found")
		return nil
	}

	h.sendSSEData(c, sess)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				h.sendSSEError(c, "session not found")
				return nil
			}

			h.sendSSEData(c, sess)

			if sess.Status == models.SessionStatusComplete ||
				sess.Status == models.SessionStatusError {
				return nil
			}

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

// HandleGetReport returns the full parsed report for a completed session
func (h *ReportHandlerImpl) HandleGetReport(c echo.Context) error {
	report, apiErr := h.completedReport(c)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, report)
}

// HandleGetReportMsgpack returns the full report in MessagePack format
func (h *ReportHandlerImpl) HandleGetReportMsgpack(c echo.Context) error {
	report, apiErr := h.completedReport(c)
	if apiErr != nil {
		return apiErr
	}

	data, err := msgpack.Marshal(report)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetBatteryEvents returns paginated battery-level events
func (h *ReportHandlerImpl) HandleGetBatteryEvents(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	page, pageSize := paginationParams(c)

	events, total, ok := h.sessionMgr.GetBatteryEvents(id, page, pageSize)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, eventsResponse{
		Events:   events,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// HandleGetPowerRecords returns the ranked per-app power records
func (h *ReportHandlerImpl) HandleGetPowerRecords(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	records, ok := h.sessionMgr.GetPowerRecords(id, limit)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, records)
}

// HandleGetWakelocks returns the per-app wakelock records
func (h *ReportHandlerImpl) HandleGetWakelocks(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	records, ok := h.sessionMgr.GetWakelockRecords(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, records)
}

// HandleGetLongwakes returns the paired long-wakelock spans
func (h *ReportHandlerImpl) HandleGetLongwakes(c echo.Context) error {
	report, apiErr := h.completedReport(c)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, report.Longwakes)
}

// HandleGetEntities returns the resolved entity identities
func (h *ReportHandlerImpl) HandleGetEntities(c echo.Context) error {
	report, apiErr := h.completedReport(c)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, report.Entities)
}

// HandleGetAnomalies returns paginated anomalies, available even for
// failed sessions
func (h *ReportHandlerImpl) HandleGetAnomalies(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	page, pageSize := paginationParams(c)

	anomalies, total, ok := h.sessionMgr.GetAnomalies(id, page, pageSize)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, anomaliesResponse{
		Anomalies: anomalies,
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
	})
}

// completedReport resolves the sessionId param to a completed report.
func (h *ReportHandlerImpl) completedReport(c echo.Context) (*models.ParsedReport, *APIError) {
	id := c.Param("sessionId")
	if id == "" {
		return nil, NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	if sess.Status != models.SessionStatusComplete {
		return nil, NewConflictError(fmt.Sprintf("session is %s, not complete", sess.Status))
	}

	report, ok := h.sessionMgr.GetReport(id)
	if !ok {
		return nil, NewNotFoundError("report", id)
	}

	h.sessionMgr.TouchSession(id)
	return report, nil
}

func (h *ReportHandlerImpl) sendSSEData(c echo.Context, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Response(), "data: %s\n\n", data)
	c.Response().Flush()
}

func (h *ReportHandlerImpl) sendSSEError(c echo.Context, message string) {
	fmt.Fprintf(c.Response(), "event: error\ndata: {\"error\":%q}\n\n", message)
	c.Response().Flush()
}

// paginationParams reads and clamps the page/pageSize query params.
func paginationParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 100
	}
	return page, pageSize
}

// Request/Response types

type startParseRequest struct {
	FileID         string `json:"fileId"`
	PackagesFileID string `json:"packagesFileId"`
	DeviceModel    string `json:"deviceModel"`
	AndroidVersion string `json:"androidVersion"`
}

type eventsResponse struct {
	Events   []models.BatteryEvent `json:"events"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
	Total    int                   `json:"total"`
}

type anomaliesResponse struct {
	Anomalies []models.Anomaly `json:"anomalies"`
	Page      int              `json:"page"`
	PageSize  int              `json:"pageSize"`
	Total     int              `json:"total"`
}
