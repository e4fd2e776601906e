package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"argus-pipeline-go/internal/config"
	"argus-pipeline-go/internal/metrics"
	"argus-pipeline-go/internal/models"
	"argus-pipeline-go/internal/secrets"
	"argus-pipeline-go/internal/services/alerts"
	"argus-pipeline-go/internal/services/describer"
	"argus-pipeline-go/internal/services/messaging"
	"argus-pipeline-go/internal/services/pipeline"
	"argus-pipeline-go/internal/services/webhook"
	"argus-pipeline-go/internal/store/postgres"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config       *config.Config
	Registry     *prometheus.Registry
	Metrics      *metrics.PipelineMetrics
	Store        *postgres.Store
	MessagingSvc *messaging.Service
	DescriberSvc *describer.Service
	WebhookSvc   *webhook.Service
	AlertsSvc    *alerts.Service
	Queue        *pipeline.Queue
	Pool         *pipeline.Pool

	detectionsSub *nats.Subscription
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.New(registry)

	box, err := secrets.NewBox(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("secret box: %w", err)
	}

	store, err := postgres.NewStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}

	messagingSvc, err := messaging.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}

	describerSvc := describer.NewService(cfg)
	webhookSvc := webhook.NewService(cfg, store, box)
	alertsSvc := alerts.NewService(cfg, store, messagingSvc, webhookSvc)

	queue := pipeline.NewQueue(cfg.QueueCapacity, cfg.CameraCooldown, pipelineMetrics)
	pool := pipeline.NewPool(cfg, queue, describerSvc, store, alertsSvc, pipelineMetrics)

	sc := &ServiceContainer{
		Config:       cfg,
		Registry:     registry,
		Metrics:      pipelineMetrics,
		Store:        store,
		MessagingSvc: messagingSvc,
		DescriberSvc: describerSvc,
		WebhookSvc:   webhookSvc,
		AlertsSvc:    alertsSvc,
		Queue:        queue,
		Pool:         pool,
	}

	pool.Start()

	sub, err := messagingSvc.QueueSubscribe(cfg.DetectionsSubject, "argus-pipeline", sc.handleDetectionMessage)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", cfg.DetectionsSubject, err)
	}
	sc.detectionsSub = sub

	log.Info().
		Int("workers", cfg.Workers()).
		Int("queue_capacity", cfg.QueueCapacity).
		Str("detections_subject", cfg.DetectionsSubject).
		Msg("Service container initialized")

	return sc, nil
}

// handleDetectionMessage decodes one detection from the intake subject and
// hands it to the queue. Decode failures and cooldown skips are dropped here;
// queue overflow is handled inside Enqueue.
func (sc *ServiceContainer) handleDetectionMessage(data []byte) {
	var event models.DetectionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Warn().Err(err).Msg("Discarding malformed detection message")
		return
	}
	if event.CameraID == "" {
		log.Warn().Msg("Discarding detection message without camera_id")
		return
	}

	if sc.Queue.CameraOnCooldown(event.CameraID) {
		log.Debug().Str("camera_id", event.CameraID).Msg("Camera on cooldown, skipping detection")
		return
	}

	if err := sc.Queue.Enqueue(&event); err != nil {
		log.Warn().Err(err).Str("camera_id", event.CameraID).Msg("Failed to enqueue detection")
	}
}

// Shutdown gracefully shuts down all services: stop intake first, drain the
// queue through the pool, then release the outer connections.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	if sc.detectionsSub != nil {
		if err := sc.detectionsSub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("Failed to unsubscribe from detections subject")
		}
	}

	if sc.Pool != nil {
		drainCtx, cancel := context.WithTimeout(ctx, sc.Config.DrainTimeout)
		defer cancel()
		if err := sc.Pool.Shutdown(drainCtx); err != nil {
			log.Warn().Err(err).Msg("Pipeline drain incomplete, abandoning in-flight events")
		}
	}

	if sc.MessagingSvc != nil {
		if err := sc.MessagingSvc.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down NATS connection")
		}
	}

	if sc.Store != nil {
		if err := sc.Store.Close(); err != nil {
			return err
		}
	}

	return nil
}
