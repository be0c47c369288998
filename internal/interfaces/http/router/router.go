// Package router wires the HTTP routes and middleware chain.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sermon-search-api/internal/config"
	"sermon-search-api/internal/interfaces/http/handler"
	"sermon-search-api/internal/interfaces/http/middleware"
	redisinfra "sermon-search-api/internal/infrastructure/persistence/redis"
)

// Handlers groups the route handlers the router mounts.
type Handlers struct {
	Health  *handler.HealthHandler
	Search  *handler.SearchHandler
	Sermon  *handler.SermonHandler
	Link    *handler.LinkHandler
	Summary *handler.SummaryHandler
	Usage   *handler.UsageHandler
}

// Router is the HTTP router.
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  *redisinfra.RateLimiter
}

// New creates the router with the full middleware chain mounted.
func New(cfg *config.Config, handlers Handlers, limiter *redisinfra.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine returns the underlying gin engine.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	r.engine.Use(middleware.RateLimit(r.cfg.Security.RateLimit, r.limiter))
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.handlers.Health.Health)
	r.engine.GET("/ready", r.handlers.Health.Ready)
	r.engine.GET("/live", r.handlers.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	{
		searches := v1.Group("/search")
		{
			searches.POST("", r.handlers.Search.Search)
			searches.POST("/hierarchical", r.handlers.Search.SearchHierarchical)
		}

		series := v1.Group("/series")
		{
			series.POST("", r.handlers.Sermon.CreateSeries)
			series.GET("", r.handlers.Sermon.ListSeries)
			series.GET("/:id", r.handlers.Sermon.GetSeries)
			series.GET("/:id/sermons", r.handlers.Sermon.ListSermons)
			series.POST("/:id/links", r.handlers.Link.GenerateSeriesLinks)
			series.GET("/:id/summary", r.handlers.Summary.GetSeriesSummary)
			series.POST("/:id/summary", r.handlers.Summary.GenerateSeriesSummary)
		}

		sermons := v1.Group("/sermons")
		{
			sermons.POST("", r.handlers.Sermon.CreateSermon)
			sermons.GET("/:id", r.handlers.Sermon.GetSermon)
			sermons.PUT("/:id/transcript", r.handlers.Sermon.UploadTranscript)
			sermons.POST("/:id/embeddings", r.handlers.Sermon.Index)
			sermons.GET("/:id/summary", r.handlers.Summary.GetSermonSummary)
			sermons.POST("/:id/summary", r.handlers.Summary.GenerateSermonSummary)
		}

		segments := v1.Group("/segments")
		{
			segments.GET("/:id/links", r.handlers.Link.GetLinks)
			segments.POST("/:id/links", r.handlers.Link.GenerateLinks)
		}

		usage := v1.Group("/llm")
		{
			usage.GET("/usage", r.handlers.Usage.Snapshot)
			usage.DELETE("/usage", r.handlers.Usage.Reset)
		}
	}
}
