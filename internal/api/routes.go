package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"argus-pipeline-go/internal/api/middleware"
)

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestID())
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		s.container.Registry,
		promhttp.HandlerOpts{},
	)))

	v1 := s.router.Group("/api/v1")
	{
		events := v1.Group("/events")
		events.Use(middleware.RateLimit(s.config.IngestRateLimit))
		{
			events.POST("", s.eventsHandler.Ingest)
		}

		pipeline := v1.Group("/pipeline")
		{
			pipeline.GET("/stats", s.eventsHandler.Stats)
		}
	}
}
