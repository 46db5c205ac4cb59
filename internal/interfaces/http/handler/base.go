package handler

import (
	"net/http"

	"github.com/erp/storefront-sync/internal/infrastructure/logger"
	"github.com/erp/storefront-sync/internal/interfaces/http/dto"
	"github.com/erp/storefront-sync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID returns the id assigned by the logging middleware, falling
// back to the incoming header
func getRequestID(c *gin.Context) string {
	if id := c.Writer.Header().Get(logger.RequestIDHeader); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, getRequestID(c)))
}

// BindingError sends a 400 for a request that failed to bind
func (h *BaseHandler) BindingError(c *gin.Context, err error) {
	if details := middleware.ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"Request validation failed",
			getRequestID(c),
			details,
		))
		return
	}
	h.ErrorWithCode(c, dto.ErrCodeBadRequest, err.Error())
}
