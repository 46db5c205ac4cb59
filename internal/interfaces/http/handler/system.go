package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/storefront-sync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	Ping() error
}

// SchedulerState reports whether the periodic sync loop is active
type SchedulerState interface {
	IsRunning() bool
}

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	db        HealthChecker
	scheduler SchedulerState
	version   string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. scheduler may be nil.
func NewSystemHandler(db HealthChecker, scheduler SchedulerState, version string) *SystemHandler {
	return &SystemHandler{
		db:        db,
		scheduler: scheduler,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	GoVersion        string `json:"go_version"`
	Uptime           string `json:"uptime"`
	SchedulerRunning bool   `json:"scheduler_running"`
}

// RegisterRoutes registers /healthz on the engine root
func (h *SystemHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/healthz", h.Health)
}

// Health returns 200 when the database answers a ping, 503 otherwise
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- h.db.Ping() }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeUnavailable, "database unavailable: "+err.Error())
		return
	}

	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.scheduler != nil {
		resp.SchedulerRunning = h.scheduler.IsRunning()
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}
