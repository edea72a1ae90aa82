package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"social-relay-go/internal/metrics"
	"social-relay-go/internal/models"
	"social-relay-go/internal/scheduler"
	"social-relay-go/internal/settings"
	"social-relay-go/internal/store"
)

const testAPIToken = "admin-token"

func newTestAPI(t *testing.T) (*gin.Engine, *store.Store, *scheduler.Scheduler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Event{},
		&models.JobRun{},
		&models.ClientSettings{},
	))

	st := store.New(db)
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	sched := scheduler.New(st, m)
	reg := settings.NewRegistry()

	h := NewHandlers(st, sched, reg, testAPIToken)
	router := gin.New()
	h.SetupRoutes(router)
	return router, st, sched
}

func doRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router, _, _ := newTestAPI(t)

	w := doRequest(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Database)
	assert.Equal(t, "stopped", resp.Details["scheduler"])
	assert.Equal(t, "0", resp.Details["queue_depth"])
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router, _, _ := newTestAPI(t)

	w := doRequest(router, http.MethodGet, "/api/v1/events", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/events", "wrong-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/events", testAPIToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetEventsFiltersByStatus(t *testing.T) {
	router, st, _ := newTestAPI(t)

	now := time.Now().UTC()
	rows := []models.Event{
		{EventID: "e-1", ClientID: "c", Platform: models.PlatformInstagram, Kind: models.KindText, ConversationID: "u1", Status: models.StatusProcessed, ReceivedAt: now},
		{EventID: "e-2", ClientID: "c", Platform: models.PlatformInstagram, Kind: models.KindText, ConversationID: "u2", Status: models.StatusFailed, FailReason: "max attempts reached", ReceivedAt: now},
		{EventID: "e-3", ClientID: "c", Platform: models.PlatformInstagram, Kind: models.KindText, ConversationID: "u3", Status: models.StatusQueued, ReceivedAt: now},
	}
	for i := range rows {
		require.NoError(t, st.DB().Create(&rows[i]).Error)
	}

	// the dead-letter view
	w := doRequest(router, http.MethodGet, "/api/v1/events?status=FAILED", testAPIToken)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events     []models.Event `json:"events"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "e-2", resp.Events[0].EventID)
	assert.Equal(t, "max attempts reached", resp.Events[0].FailReason)
	assert.Equal(t, int64(1), resp.Pagination.Total)

	// no filter returns everything
	w = doRequest(router, http.MethodGet, "/api/v1/events", testAPIToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Events, 3)
}

func TestGetEventByID(t *testing.T) {
	router, st, _ := newTestAPI(t)

	ev := models.Event{EventID: "e-1", ClientID: "c", Platform: models.PlatformInstagram, Kind: models.KindText, ConversationID: "u1", Status: models.StatusQueued, ReceivedAt: time.Now().UTC()}
	require.NoError(t, st.DB().Create(&ev).Error)

	w := doRequest(router, http.MethodGet, "/api/v1/events/1", testAPIToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/events/999", testAPIToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/events/abc", testAPIToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReloadSwapsSettings(t *testing.T) {
	router, st, _ := newTestAPI(t)

	require.NoError(t, st.DB().Create(&models.ClientSettings{
		ClientID:         "client-1",
		AssistantEnabled: false,
	}).Error)

	w := doRequest(router, http.MethodPost, "/api/v1/reload", testAPIToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSchedulerControl(t *testing.T) {
	router, st, sched := newTestAPI(t)
	sched.Register("drain", time.Hour, func(ctx context.Context) error { return nil })

	w := doRequest(router, http.MethodPost, "/api/v1/scheduler/start", testAPIToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sched.IsRunning())

	w = doRequest(router, http.MethodPost, "/api/v1/scheduler/jobs/drain/run", testAPIToken)
	assert.Equal(t, http.StatusOK, w.Code)

	record, err := st.JobRun("drain")
	require.NoError(t, err)
	assert.Equal(t, "success", record.LastStatus)

	w = doRequest(router, http.MethodPost, "/api/v1/scheduler/jobs/bogus/run", testAPIToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/scheduler/status", testAPIToken)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Status string          `json:"status"`
		Jobs   []models.JobRun `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "running", status.Status)
	require.Len(t, status.Jobs, 1)

	w = doRequest(router, http.MethodPost, "/api/v1/scheduler/stop", testAPIToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, sched.IsRunning())
}
