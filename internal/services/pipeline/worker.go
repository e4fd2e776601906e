package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/rs/zerolog/log"

	"argus-pipeline-go/internal/config"
	"argus-pipeline-go/internal/logging"
	"argus-pipeline-go/internal/metrics"
	"argus-pipeline-go/internal/models"
)

// AlertProcessor is the alert engine entry point the pool hands persisted
// events to. Evaluation runs synchronously inside the worker that stored the
// event.
type AlertProcessor interface {
	ProcessEvent(ctx context.Context, event *models.EventPayload) *models.ProcessSummary
}

// Pool is the fixed-size worker pool draining the queue. Workers run
// independently; a single worker processes its dequeued events strictly
// sequentially, and one event's failure never stops a worker.
type Pool struct {
	cfg       *config.Config
	queue     *Queue
	describer models.Describer
	store     models.EventStore
	alerts    AlertProcessor
	metrics   *metrics.PipelineMetrics

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool wires the pool. Start must be called before events are consumed.
func NewPool(cfg *config.Config, queue *Queue, describer models.Describer, store models.EventStore, alerts AlertProcessor, m *metrics.PipelineMetrics) *Pool {
	return &Pool{
		cfg:       cfg,
		queue:     queue,
		describer: describer,
		store:     store,
		alerts:    alerts,
		metrics:   m,
	}
}

// Start launches the workers. The effective count is the configured value
// clamped to the allowed range.
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	workers := p.cfg.Workers()
	log.Info().
		Int("workers", workers).
		Int("queue_capacity", p.cfg.QueueCapacity).
		Msg("Starting pipeline worker pool")

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Shutdown stops intake, drains remaining events up to the context budget,
// then cancels outstanding workers. Undrained events are abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Pipeline drained and stopped")
		return nil
	case <-ctx.Done():
		remaining := p.queue.Depth()
		log.Warn().
			Int("remaining", remaining).
			Msg("Drain budget exceeded, cancelling workers")
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()

	wlog := log.With().Int("worker", id).Logger()
	wlog.Debug().Msg("Pipeline worker started")

	for {
		select {
		case <-ctx.Done():
			wlog.Debug().Msg("Pipeline worker cancelled")
			return
		case event, ok := <-p.queue.Events():
			if !ok {
				wlog.Debug().Msg("Queue drained, worker stopping")
				return
			}
			p.processEvent(ctx, event)
			p.metrics.SetQueueDepth(p.queue.Depth())
		}
	}
}

// processEvent turns one detection into a persisted, alert-evaluated event.
func (p *Pool) processEvent(ctx context.Context, event *models.DetectionEvent) {
	start := time.Now()
	clog := logging.WithCamera(log.Logger, event.CameraID)

	result, err := p.describer.Describe(ctx, event)
	if err != nil {
		p.metrics.RecordFailure("describe", time.Since(start))
		clog.Error().Err(err).Msg("Description generation failed, skipping event")
		return
	}

	payload := buildPayload(event, result)

	eventID, err := p.persistEvent(ctx, payload)
	if err != nil {
		p.metrics.RecordFailure("storage", time.Since(start))
		clog.Error().Err(err).
			Int("attempts", p.cfg.StoreRetries).
			Msg("Event persistence failed after retries, dropping event")
		return
	}
	payload.ID = eventID

	summary := p.alerts.ProcessEvent(ctx, payload)

	p.metrics.RecordSuccess(time.Since(start))
	clog.Info().
		Str("event_id", eventID).
		Int("rules_matched", len(summary.RulesMatched)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Event processed")
}

// persistEvent writes the payload with the local retry policy. Each attempt
// is a plain store call.
func (p *Pool) persistEvent(ctx context.Context, payload *models.EventPayload) (string, error) {
	var eventID string

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(p.cfg.StoreRetries)),
		retry.Delay(p.cfg.StoreRetryWait),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)

	err := r.Do(func() error {
		id, storeErr := p.store.StoreEvent(ctx, payload)
		if storeErr != nil {
			return storeErr
		}
		eventID = id
		return nil
	})
	return eventID, err
}

// buildPayload merges the detection with the description result. Labels the
// describer saw win over the capture-side guess.
func buildPayload(event *models.DetectionEvent, result *models.DescribeResult) *models.EventPayload {
	objects := result.Objects
	if len(objects) == 0 {
		objects = event.Objects
	}
	return &models.EventPayload{
		CameraID:    event.CameraID,
		CameraName:  event.CameraName,
		Timestamp:   event.Timestamp,
		Description: result.Description,
		Confidence:  result.Confidence,
		Objects:     objects,
		Provider:    result.Provider,
		FrameRef:    event.FrameRef,
		Anomaly:     event.Anomaly,
		Metadata:    event.Metadata,
	}
}
