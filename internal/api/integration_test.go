// integration_test.go - End-to-end upload and parse flow over real collaborators
package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/battery-insight/backend/internal/models"
	"github.com/battery-insight/backend/internal/parser"
	"github.com/battery-insight/backend/internal/session"
	"github.com/battery-insight/backend/internal/storage"
)

const integrationDump = `Battery History (0% used, 1024 bytes):
0 (2) RESET:TIME: 2024-01-15-10-30-00
0 (2) 100 status=discharging
+1m0s000ms (2) 099
+2m0s000ms (2) 098

Estimated power use (mAh):
  Capacity: 4500, Computed drain: 90.2
  Uid u0a123: 45.2
  Screen: 40.0
  Uid 1000: 5.0

All partial wake locks:
  Wake lock u0a123 gps-lock: 1m 30s (12 times) realtime
`

func waitComplete(t *testing.T, mgr *session.Manager, id string) *models.ParseSession {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, ok := mgr.GetSession(id)
		if !ok {
			t.Fatalf("session %s disappeared", id)
		}
		if s.Status == models.SessionStatusComplete || s.Status == models.SessionStatusError {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s did not finish in time", id)
	return nil
}

func TestUploadAndParseFlow(t *testing.T) {
	e := echo.New()

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	mgr := session.NewManager(store, parser.Options{}, 0)
	handlers := NewHandlers(&Dependencies{
		Store:      store,
		SessionMgr: mgr,
		Version:    "test",
	})

	// 1. Upload a gzip-compressed dump
	var raw bytes.Buffer
	gz := gzip.NewWriter(&raw)
	gz.Write([]byte(integrationDump))
	gz.Close()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "bugreport.txt.gz")
	part.Write(raw.Bytes())
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var file models.FileInfo
	if assert.NoError(t, handlers.Upload.HandleUploadFile(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))
		assert.Equal(t, "bugreport.txt", file.Name, "gz suffix should be stripped")
		assert.Equal(t, int64(len(integrationDump)), file.Size, "stored decompressed")
	}

	// 2. Start a parse session against the uploaded file
	startBody := bytes.NewBufferString(`{"fileId":"` + file.ID + `","deviceModel":"Pixel 8"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/parse", startBody)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)

	var sess models.ParseSession
	if assert.NoError(t, handlers.Report.HandleStartParse(c)) {
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
		assert.NotEmpty(t, sess.ID)
	}

	done := waitComplete(t, mgr, sess.ID)
	assert.Equal(t, models.SessionStatusComplete, done.Status, "parse error: %s", done.Error)

	// 3. Status reflects the finished parse
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetPath("/api/parse/:sessionId/status")
	c.SetParamNames("sessionId")
	c.SetParamValues(sess.ID)
	if assert.NoError(t, handlers.Report.HandleParseStatus(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"complete"`)
		assert.Contains(t, rec.Body.String(), `"eventCount":3`)
	}

	// 4. The full report carries events, ranked power draw and wakelocks
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetPath("/api/parse/:sessionId/report")
	c.SetParamNames("sessionId")
	c.SetParamValues(sess.ID)
	if assert.NoError(t, handlers.Report.HandleGetReport(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)

		var report models.ParsedReport
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Len(t, report.BatteryEvents, 3)
		assert.Len(t, report.WakelockRecords, 1)
		assert.Equal(t, "Pixel 8", report.Metadata.DeviceModel)
		if assert.NotEmpty(t, report.PowerRecords) {
			assert.Equal(t, 1, report.PowerRecords[0].Rank)
			assert.InDelta(t, 45.2, report.PowerRecords[0].MilliampHours, 0.001)
		}
	}

	// 5. Health endpoint stays trivial
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	if assert.NoError(t, handlers.Health.HandleHealth(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"version":"test"`)
	}
}
