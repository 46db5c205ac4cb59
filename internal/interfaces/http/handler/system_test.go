package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingFunc func() error

func (f pingFunc) Ping() error { return f() }

type schedulerState bool

func (s schedulerState) IsRunning() bool { return bool(s) }

func TestSystemHandler_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		r := gin.New()
		NewSystemHandler(pingFunc(func() error { return nil }), schedulerState(true), "1.2.3").RegisterRoutes(r)

		w := serve(r, http.MethodGet, "/healthz")
		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, "ok", data["status"])
		assert.Equal(t, "1.2.3", data["version"])
		assert.Equal(t, true, data["scheduler_running"])
	})

	t.Run("database down", func(t *testing.T) {
		r := gin.New()
		NewSystemHandler(pingFunc(func() error { return errors.New("connection refused") }), nil, "dev").RegisterRoutes(r)

		w := serve(r, http.MethodGet, "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}
