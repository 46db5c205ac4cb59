package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/infrastructure/scheduler"
	"github.com/erp/storefront-sync/internal/interfaces/http/dto"
	"github.com/erp/storefront-sync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type stubRuns struct {
	run       *scheduler.SyncRun
	err       error
	history   []scheduler.SyncRun
	lastLimit int
}

func (s *stubRuns) RunNow(context.Context, scheduler.Trigger) (*scheduler.SyncRun, error) {
	return s.run, s.err
}

func (s *stubRuns) History(limit int) []scheduler.SyncRun {
	s.lastLimit = limit
	return s.history
}

type stubLogs struct {
	logs      []integration.SyncLog
	err       error
	lastLimit int
}

func (s *stubLogs) FindRecent(_ context.Context, limit int) ([]integration.SyncLog, error) {
	s.lastLimit = limit
	return s.logs, s.err
}

func newSyncRouter(runs *stubRuns, logs *stubLogs) *gin.Engine {
	r := gin.New()
	NewSyncHandler(runs, logs).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSyncHandler_TriggerRun(t *testing.T) {
	run := &scheduler.SyncRun{
		ID:           uuid.New(),
		Trigger:      scheduler.TriggerManual,
		Status:       scheduler.RunStatusPartial,
		Attempts:     1,
		SuccessCount: 3,
		FailedCount:  1,
	}

	t.Run("completed", func(t *testing.T) {
		w := serve(newSyncRouter(&stubRuns{run: run}, &stubLogs{}), http.MethodPost, "/api/v1/sync/runs")

		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, "PARTIAL", data["status"])
		assert.Equal(t, "manual", data["trigger"])
		assert.EqualValues(t, 3, data["success_count"])
	})

	t.Run("failed after retries", func(t *testing.T) {
		failed := *run
		failed.Status = scheduler.RunStatusFailed
		w := serve(newSyncRouter(&stubRuns{run: &failed, err: errors.New("db down")}, &stubLogs{}),
			http.MethodPost, "/api/v1/sync/runs")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "FAILED", decode(t, w)["data"].(map[string]any)["status"])
	})

	t.Run("already running", func(t *testing.T) {
		w := serve(newSyncRouter(&stubRuns{err: scheduler.ErrRunInProgress}, &stubLogs{}),
			http.MethodPost, "/api/v1/sync/runs")

		assert.Equal(t, http.StatusConflict, w.Code)
		errInfo := decode(t, w)["error"].(map[string]any)
		assert.Equal(t, dto.ErrCodeRunInProgress, errInfo["code"])
	})

	t.Run("upstream refused", func(t *testing.T) {
		fatal := &integration.UpstreamFatalError{StatusCode: 429, Endpoint: "/orders.json"}
		w := serve(newSyncRouter(&stubRuns{run: run, err: fatal}, &stubLogs{}),
			http.MethodPost, "/api/v1/sync/runs")

		assert.Equal(t, http.StatusBadGateway, w.Code)
		body := decode(t, w)
		assert.Equal(t, dto.ErrCodeUpstreamFatal, body["error"].(map[string]any)["code"])
		assert.NotNil(t, body["data"])
	})
}

func TestSyncHandler_ListRuns(t *testing.T) {
	runs := &stubRuns{history: []scheduler.SyncRun{{ID: uuid.New(), Status: scheduler.RunStatusSuccess}}}
	r := newSyncRouter(runs, &stubLogs{})

	w := serve(r, http.MethodGet, "/api/v1/sync/runs?limit=5")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, runs.lastLimit)
	assert.Len(t, decode(t, w)["data"], 1)

	w = serve(r, http.MethodGet, "/api/v1/sync/runs?limit=0")
	assert.Equal(t, http.StatusOK, w.Code, "zero means all")
}

func TestSyncHandler_ListLogs(t *testing.T) {
	created := time.Date(2024, 5, 17, 15, 4, 5, 0, time.UTC)
	logs := &stubLogs{logs: []integration.SyncLog{{
		ID:                uuid.New(),
		Status:            integration.SyncLogStatusError,
		Method:            "sync_storefront_orders",
		Title:             "Validation failed",
		Message:           "order 1001 has no customer",
		ErrorKind:         integration.ErrorKindValidation,
		StorefrontOrderID: "1001",
		CreatedAt:         created,
	}}}

	t.Run("default limit", func(t *testing.T) {
		w := serve(newSyncRouter(&stubRuns{}, logs), http.MethodGet, "/api/v1/sync/logs")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, DefaultLogLimit, logs.lastLimit)
		items := decode(t, w)["data"].([]any)
		require.Len(t, items, 1)
		item := items[0].(map[string]any)
		assert.Equal(t, "1001", item["storefront_order_id"])
		assert.Equal(t, "VALIDATION", item["error_kind"])
		assert.Equal(t, "2024-05-17T15:04:05Z", item["created_at"])
	})

	t.Run("explicit limit", func(t *testing.T) {
		serve(newSyncRouter(&stubRuns{}, logs), http.MethodGet, "/api/v1/sync/logs?limit=10")
		assert.Equal(t, 10, logs.lastLimit)
	})

	t.Run("limit out of range", func(t *testing.T) {
		w := serve(newSyncRouter(&stubRuns{}, logs), http.MethodGet, "/api/v1/sync/logs?limit=1000")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		errInfo := decode(t, w)["error"].(map[string]any)
		assert.Equal(t, dto.ErrCodeValidation, errInfo["code"])
		details := errInfo["details"].([]any)
		assert.Equal(t, "limit", details[0].(map[string]any)["field"])
	})

	t.Run("not a number", func(t *testing.T) {
		w := serve(newSyncRouter(&stubRuns{}, logs), http.MethodGet, "/api/v1/sync/logs?limit=abc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decode(t, w)["error"].(map[string]any)["code"])
	})

	t.Run("repository failure", func(t *testing.T) {
		w := serve(newSyncRouter(&stubRuns{}, &stubLogs{err: errors.New("db down")}), http.MethodGet, "/api/v1/sync/logs")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "db down")
	})
}
