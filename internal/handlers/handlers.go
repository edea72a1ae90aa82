package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"social-relay-go/internal/jobs"
	"social-relay-go/internal/models"
	"social-relay-go/internal/scheduler"
	"social-relay-go/internal/settings"
	"social-relay-go/internal/store"
)

// Handlers contains the operator-facing HTTP handlers
type Handlers struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	settings  *settings.Registry
	apiToken  string
}

// NewHandlers creates the admin API handlers. apiToken protects the /api/v1
// group with bearer authentication.
func NewHandlers(st *store.Store, sched *scheduler.Scheduler, reg *settings.Registry, apiToken string) *Handlers {
	return &Handlers{
		store:     st,
		scheduler: sched,
		settings:  reg,
		apiToken:  apiToken,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	api.Use(h.authenticate())
	{
		// Events (status=FAILED gives the dead-letter view)
		api.GET("/events", h.GetEvents)
		api.GET("/events/:id", h.GetEvent)

		// Manual settings reload
		api.POST("/reload", h.Reload)

		// Scheduler control
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/jobs/:name/run", h.RunJob)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// authenticate rejects API requests without the configured bearer token
func (h *Handlers) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != h.apiToken {
			logrus.Warn("Missing or invalid Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "unauthorized",
				Message: "Missing or invalid bearer token",
				Code:    http.StatusUnauthorized,
			})
			return
		}
		c.Next()
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Details:   make(map[string]string),
	}

	// Check database connection
	if err := h.store.DB().Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler.IsRunning() {
		response.Details["scheduler"] = "running"
		response.Details["next_drain"] = h.scheduler.NextRun(jobs.JobDrain).Format(time.RFC3339)
	} else {
		response.Details["scheduler"] = "stopped"
	}

	if depth, err := h.store.QueueDepth(); err == nil {
		response.Details["queue_depth"] = strconv.FormatInt(depth, 10)
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// GetEvents returns events filtered by status with pagination
func (h *Handlers) GetEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	status := models.Status(c.Query("status"))

	events, total, err := h.store.Events(status, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch events",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetEvent returns a specific event
func (h *Handlers) GetEvent(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid event ID",
			Code:    http.StatusBadRequest,
		})
		return
	}

	event, err := h.store.EventByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Event not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, event)
}

// Reload forces the in-memory settings snapshot to re-read persisted client
// settings without a restart.
func (h *Handlers) Reload(c *gin.Context) {
	if err := h.settings.Reload(h.store); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "reload_error",
			Message: "Failed to reload settings",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Settings reloaded successfully",
	})
}

// StartScheduler starts the background job scheduler
func (h *Handlers) StartScheduler(c *gin.Context) {
	if err := h.scheduler.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to start scheduler",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler started successfully",
		"status":  "running",
	})
}

// StopScheduler stops the background job scheduler
func (h *Handlers) StopScheduler(c *gin.Context) {
	if err := h.scheduler.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to stop scheduler",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler stopped successfully",
		"status":  "stopped",
	})
}

// RunJob triggers a single run of a named job
func (h *Handlers) RunJob(c *gin.Context) {
	name := c.Param("name")
	if err := h.scheduler.RunOnce(name); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "unknown_job",
			Message: err.Error(),
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Job completed",
		"job":     name,
	})
}

// GetSchedulerStatus returns the scheduler state and per-job run records
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	status := "stopped"
	if h.scheduler.IsRunning() {
		status = "running"
	}

	runs, err := h.store.JobRuns()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch job runs",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"jobs":   runs,
	})
}
