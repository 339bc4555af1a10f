// handlers_archive.go - Cross-dump trend archive handlers
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/battery-insight/backend/internal/models"
)

// ArchiveHandlerImpl implements the ArchiveHandler interface
type ArchiveHandlerImpl struct {
	sessionMgr SessionManager
	trends     TrendStore
}

// NewArchiveHandler creates a new archive handler instance
func NewArchiveHandler(sessionMgr SessionManager, trends TrendStore) ArchiveHandler {
	return &ArchiveHandlerImpl{
		sessionMgr: sessionMgr,
		trends:     trends,
	}
}

// HandleArchiveSession appends a completed session's report to the
// trend archive
func (h *ArchiveHandlerImpl) HandleArchiveSession(c echo.Context) error {
	if h.trends == nil {
		return NewServiceUnavailableError("trend archive is disabled")
	}

	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	if sess.Status != models.SessionStatusComplete {
		return NewConflictError(fmt.Sprintf("session is %s, not complete", sess.Status))
	}

	report, ok := h.sessionMgr.GetReport(id)
	if !ok {
		return NewNotFoundError("report", id)
	}

	dumpID, err := h.trends.AppendReport(sess.FileID, report)
	if err != nil {
		return NewInternalError("failed to archive report", err)
	}

	return c.JSON(http.StatusCreated, map[string]string{"dumpId": dumpID})
}

// HandleLevelTrend returns archived battery-level samples in a window
func (h *ArchiveHandlerImpl) HandleLevelTrend(c echo.Context) error {
	if h.trends == nil {
		return NewServiceUnavailableError("trend archive is disabled")
	}

	from, err := parseTimeParam(c.QueryParam("from"), time.Time{})
	if err != nil {
		return NewBadRequestError("invalid from time", err)
	}
	to, err := parseTimeParam(c.QueryParam("to"), time.Now())
	if err != nil {
		return NewBadRequestError("invalid to time", err)
	}

	points, err := h.trends.LevelTrend(from, to)
	if err != nil {
		return NewInternalError("failed to query level trend", err)
	}

	return c.JSON(http.StatusOK, points)
}

// HandleTopConsumers returns the heaviest consumers across all dumps
func (h *ArchiveHandlerImpl) HandleTopConsumers(c echo.Context) error {
	if h.trends == nil {
		return NewServiceUnavailableError("trend archive is disabled")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	totals, err := h.trends.TopConsumers(limit)
	if err != nil {
		return NewInternalError("failed to query top consumers", err)
	}

	return c.JSON(http.StatusOK, totals)
}

// HandleListDumps returns the archived dump summaries
func (h *ArchiveHandlerImpl) HandleListDumps(c echo.Context) error {
	if h.trends == nil {
		return NewServiceUnavailableError("trend archive is disabled")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	dumps, err := h.trends.ListDumps(limit)
	if err != nil {
		return NewInternalError("failed to list dumps", err)
	}

	return c.JSON(http.StatusOK, dumps)
}

// parseTimeParam parses an RFC 3339 or Unix-milliseconds time value,
// returning the fallback for an empty string.
func parseTimeParam(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, value)
}
