package api

import (
	"net/http"

	_ "argus-pipeline-go/docs"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (s *Server) setupSwagger() {
	s.router.GET("/api/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"title":       "Argus Pipeline API",
			"version":     "1.0.0",
			"description": "Detection event pipeline: AI descriptions, alert rules and webhook delivery",
			"swagger_ui":  "/docs/index.html",
			"endpoints": gin.H{
				"health":         "/health",
				"worker_info":    "/",
				"events":         "/api/v1/events",
				"pipeline_stats": "/api/v1/pipeline/stats",
				"metrics":        "/metrics",
			},
			"worker_id": s.config.WorkerID,
			"port":      s.config.Port,
		})
	})

	s.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})
}
