package handler

import (
	"context"
	"errors"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/infrastructure/logger"
	"github.com/erp/storefront-sync/internal/infrastructure/scheduler"
	"github.com/erp/storefront-sync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultLogLimit is used when no limit is given on the sync log listing
const DefaultLogLimit = 50

// SyncRunTrigger starts runs and reports their history
type SyncRunTrigger interface {
	RunNow(ctx context.Context, trigger scheduler.Trigger) (*scheduler.SyncRun, error)
	History(limit int) []scheduler.SyncRun
}

// SyncLogReader lists recorded sync errors
type SyncLogReader interface {
	FindRecent(ctx context.Context, limit int) ([]integration.SyncLog, error)
}

// SyncHandler exposes manual sync runs and the sync error log
type SyncHandler struct {
	BaseHandler
	runs SyncRunTrigger
	logs SyncLogReader
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(runs SyncRunTrigger, logs SyncLogReader) *SyncHandler {
	return &SyncHandler{runs: runs, logs: logs}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	sync.POST("/runs", h.TriggerRun)
	sync.GET("/runs", h.ListRuns)
	sync.GET("/logs", h.ListLogs)
}

// ListQuery holds the limit accepted by the list endpoints
type ListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// SyncLogResponse is the API form of a sync log entry
type SyncLogResponse struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	Method            string    `json:"method"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	ErrorKind         string    `json:"error_kind"`
	StorefrontOrderID string    `json:"storefront_order_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func toSyncLogResponse(l integration.SyncLog) SyncLogResponse {
	return SyncLogResponse{
		ID:                l.ID.String(),
		Status:            string(l.Status),
		Method:            l.Method,
		Title:             l.Title,
		Message:           l.Message,
		ErrorKind:         string(l.ErrorKind),
		StorefrontOrderID: l.StorefrontOrderID,
		CreatedAt:         l.CreatedAt,
	}
}

// TriggerRun runs the sync synchronously and returns the run record.
// An upstream refusal still returns the record, with a 502.
func (h *SyncHandler) TriggerRun(c *gin.Context) {
	ctx := c.Request.Context()
	run, err := h.runs.RunNow(ctx, scheduler.TriggerManual)
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		h.ErrorWithCode(c, dto.ErrCodeRunInProgress, err.Error())
	case integration.IsUpstreamFatal(err):
		c.JSON(dto.GetHTTPStatus(dto.ErrCodeUpstreamFatal), dto.Response{
			Data:  run,
			Error: dto.NewErrorResponse(dto.ErrCodeUpstreamFatal, err.Error(), getRequestID(c)).Error,
		})
	case err != nil && run == nil:
		logger.FromContext(ctx).Error("Manual sync run failed", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeInternal, "sync run failed")
	default:
		// a run that failed after retries is still a completed request
		h.Success(c, run)
	}
}

// ListRuns returns the most recent runs of this process, newest first
func (h *SyncHandler) ListRuns(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}
	h.Success(c, h.runs.History(q.Limit))
}

// ListLogs returns the most recent sync error logs, newest first
func (h *SyncHandler) ListLogs(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = DefaultLogLimit
	}

	ctx := c.Request.Context()
	logs, err := h.logs.FindRecent(ctx, q.Limit)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to list sync logs", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeInternal, "failed to list sync logs")
		return
	}

	resp := make([]SyncLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, toSyncLogResponse(l))
	}
	h.Success(c, resp)
}
