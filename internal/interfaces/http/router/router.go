// Package router assembles the gin engine of the sync API.
package router

import (
	"github.com/erp/storefront-sync/internal/infrastructure/logger"
	"github.com/erp/storefront-sync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RootRegistrar registers routes outside the versioned API group
type RootRegistrar interface {
	RegisterRoutes(rg gin.IRoutes)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	roots      []RootRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered under /api/<version>
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// RegisterRoot adds a registrar mounted at the engine root
func (r *Router) RegisterRoot(registrar RootRegistrar) *Router {
	r.roots = append(r.roots, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	for _, root := range r.roots {
		root.RegisterRoutes(r.engine)
	}
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig configures the middleware chain of NewEngine
type EngineConfig struct {
	ServiceName    string
	Mode           string
	TracingEnabled bool
	TracerProvider trace.TracerProvider
	// Meter enables request metrics when set
	Meter metric.Meter
}

// NewEngine returns a gin engine with recovery, request logging, tracing and
// request metrics
func NewEngine(cfg EngineConfig, log *zap.Logger) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    cfg.ServiceName,
			Enabled:        cfg.TracingEnabled,
			TracerProvider: cfg.TracerProvider,
		}),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(cfg.Meter),
	)
	return engine
}
