package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"argus-pipeline-go/internal/logging"
	"argus-pipeline-go/internal/models"
	"argus-pipeline-go/internal/services"
)

// EventsHandler is the HTTP ingest path. It is equivalent to the NATS intake:
// both feed the same bounded queue under the same camera cooldown.
type EventsHandler struct {
	container *services.ServiceContainer
}

func NewEventsHandler(container *services.ServiceContainer) *EventsHandler {
	return &EventsHandler{container: container}
}

type IngestResponse struct {
	Status     string `json:"status" example:"queued"`
	QueueDepth int    `json:"queue_depth" example:"3"`
}

// @Summary Submit a detection event
// @Description Queue one detection event for description, persistence and alert evaluation
// @Tags events
// @Accept json
// @Produce json
// @Param event body models.DetectionEvent true "Detection event"
// @Success 202 {object} IngestResponse
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /api/v1/events [post]
func (h *EventsHandler) Ingest(c *gin.Context) {
	var event models.DetectionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		logging.Warn(c).Err(err).Msg("Rejected malformed detection event")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event payload: " + err.Error()})
		return
	}
	if event.CameraID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "camera_id is required"})
		return
	}

	if h.container.Queue.CameraOnCooldown(event.CameraID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Camera on cooldown"})
		return
	}

	if err := h.container.Queue.Enqueue(&event); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pipeline is shutting down"})
		return
	}

	c.JSON(http.StatusAccepted, IngestResponse{
		Status:     "queued",
		QueueDepth: h.container.Queue.Depth(),
	})
}

// @Summary Pipeline statistics
// @Description Current queue depth, processed/failed/dropped totals and latency percentiles
// @Tags pipeline
// @Accept json
// @Produce json
// @Success 200 {object} metrics.Snapshot
// @Router /api/v1/pipeline/stats [get]
func (h *EventsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.container.Metrics.Read())
}
