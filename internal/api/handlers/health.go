package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"argus-pipeline-go/internal/services"
)

type HealthHandler struct {
	container *services.ServiceContainer
}

func NewHealthHandler(container *services.ServiceContainer) *HealthHandler {
	return &HealthHandler{container: container}
}

type HealthResponse struct {
	Status    string `json:"status" example:"healthy"`
	WorkerID  string `json:"worker_id" example:"pipeline-1"`
	Nats      string `json:"nats" example:"connected"`
	Describer string `json:"describer" example:"ok"`
}

type WorkerInfoResponse struct {
	WorkerID     string   `json:"worker_id" example:"pipeline-1"`
	Status       string   `json:"status" example:"running"`
	Version      string   `json:"version" example:"1.0.0"`
	Capabilities []string `json:"capabilities"`
}

// @Summary Health check
// @Description Check pipeline health including NATS and description generator reachability
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		WorkerID:  h.container.Config.WorkerID,
		Nats:      "connected",
		Describer: "ok",
	}

	if !h.container.MessagingSvc.IsConnected() {
		resp.Status = "degraded"
		resp.Nats = "disconnected"
	}
	if err := h.container.DescriberSvc.HealthCheck(c.Request.Context()); err != nil {
		resp.Status = "degraded"
		resp.Describer = err.Error()
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// @Summary Worker information
// @Description Get basic pipeline worker information and capabilities
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} WorkerInfoResponse
// @Router / [get]
func (h *HealthHandler) WorkerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, WorkerInfoResponse{
		WorkerID: h.container.Config.WorkerID,
		Status:   "running",
		Version:  "1.0.0",
		Capabilities: []string{
			"event_pipeline",
			"alert_evaluation",
			"webhook_delivery",
		},
	})
}
