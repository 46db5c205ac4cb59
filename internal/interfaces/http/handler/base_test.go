package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/storefront-sync/internal/infrastructure/logger"
	"github.com/erp/storefront-sync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name     string
		response string
		request  string
		want     string
	}{
		{"response header wins", "resp-1", "req-1", "resp-1"},
		{"request header fallback", "", "req-1", "req-1"},
		{"none", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			r := gin.New()
			r.GET("/", func(c *gin.Context) {
				if tt.response != "" {
					c.Header(logger.RequestIDHeader, tt.response)
				}
				got = getRequestID(c)
			})
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			if tt.request != "" {
				req.Header.Set(logger.RequestIDHeader, tt.request)
			}
			r.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBaseHandler_ErrorWithCode(t *testing.T) {
	h := &BaseHandler{}
	r := gin.New()
	r.GET("/conflict", func(c *gin.Context) { h.ErrorWithCode(c, dto.ErrCodeRunInProgress, "busy") })
	r.GET("/bad", func(c *gin.Context) { h.BindingError(c, errors.New("malformed query")) })

	w := serve(r, http.MethodGet, "/conflict")
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, dto.ErrCodeRunInProgress, body["error"].(map[string]any)["code"])

	w = serve(r, http.MethodGet, "/bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "malformed query", decode(t, w)["error"].(map[string]any)["message"])
}
