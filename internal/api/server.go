package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"argus-pipeline-go/internal/api/handlers"
	"argus-pipeline-go/internal/config"
	"argus-pipeline-go/internal/services"
)

type Server struct {
	config    *config.Config
	container *services.ServiceContainer
	router    *gin.Engine
	server    *http.Server

	healthHandler *handlers.HealthHandler
	eventsHandler *handlers.EventsHandler
}

func NewServer(cfg *config.Config, container *services.ServiceContainer) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		config:        cfg,
		container:     container,
		router:        router,
		healthHandler: handlers.NewHealthHandler(container),
		eventsHandler: handlers.NewEventsHandler(container),
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	return nil
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting Argus pipeline API")
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	log.Info().Msg("Stopping Argus pipeline API")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) GetServer() *http.Server {
	return s.server
}
