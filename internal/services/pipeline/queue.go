package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"argus-pipeline-go/internal/metrics"
	"argus-pipeline-go/internal/models"
)

// ErrQueueClosed is returned by Enqueue once shutdown has begun.
var ErrQueueClosed = errors.New("pipeline: queue closed")

// Queue is the bounded buffer between capture collaborators and the worker
// pool. When full it evicts the oldest queued event and admits the new one:
// under overload the pipeline favors freshness over completeness.
//
// The queue also keeps the per-camera cooldown map used to throttle
// capture-side re-detection. That map is independent of alert-rule cooldowns
// and, like the queue itself, is process-local.
type Queue struct {
	mu     sync.Mutex
	items  chan *models.DetectionEvent
	closed bool

	cooldownMu sync.RWMutex
	lastSeen   map[string]time.Time
	cooldown   time.Duration
	lastPrune  time.Time

	metrics *metrics.PipelineMetrics
}

// NewQueue builds a queue with the given capacity and camera cooldown.
func NewQueue(capacity int, cameraCooldown time.Duration, m *metrics.PipelineMetrics) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		items:     make(chan *models.DetectionEvent, capacity),
		lastSeen:  make(map[string]time.Time),
		cooldown:  cameraCooldown,
		lastPrune: time.Now(),
		metrics:   m,
	}
}

// Enqueue admits an event, evicting the oldest queued one if the buffer is
// full. The relative order of surviving events is preserved.
func (q *Queue) Enqueue(event *models.DetectionEvent) error {
	if event == nil {
		return errors.New("pipeline: nil event")
	}
	event.Normalize()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.touchCamera(event.CameraID, event.Timestamp)

	select {
	case q.items <- event:
	default:
		// Full: drop the oldest and push the new one. Enqueue holds the
		// mutex, so exactly one eviction happens per overflow.
		select {
		case old := <-q.items:
			q.metrics.RecordDrop()
			log.Warn().
				Str("camera_id", old.CameraID).
				Time("event_ts", old.Timestamp).
				Msg("Queue full, dropping oldest event")
		default:
		}
		q.items <- event
	}

	q.metrics.SetQueueDepth(len(q.items))
	return nil
}

// Events exposes the consumer side of the queue to the worker pool.
func (q *Queue) Events() <-chan *models.DetectionEvent {
	return q.items
}

// Depth returns the current number of queued events.
func (q *Queue) Depth() int {
	return len(q.items)
}

// Close stops intake. Already-queued events remain readable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.items)
}

// CameraOnCooldown reports whether a camera produced an event within its
// capture cooldown window. The ingest path uses this to drop rapid
// re-detections before they reach the queue.
func (q *Queue) CameraOnCooldown(cameraID string) bool {
	if q.cooldown <= 0 {
		return false
	}
	q.cooldownMu.RLock()
	last, ok := q.lastSeen[cameraID]
	q.cooldownMu.RUnlock()
	return ok && time.Since(last) < q.cooldown
}

// touchCamera refreshes the camera timestamp and occasionally prunes stale
// entries so the map does not grow with retired cameras.
func (q *Queue) touchCamera(cameraID string, ts time.Time) {
	if cameraID == "" {
		return
	}
	q.cooldownMu.Lock()
	defer q.cooldownMu.Unlock()

	q.lastSeen[cameraID] = ts

	if q.cooldown > 0 && time.Since(q.lastPrune) > 10*q.cooldown {
		cutoff := time.Now().Add(-2 * q.cooldown)
		for id, seen := range q.lastSeen {
			if seen.Before(cutoff) {
				delete(q.lastSeen, id)
			}
		}
		q.lastPrune = time.Now()
	}
}
