package models

import (
	"time"
)

// DetectionEvent is the transient event a capture collaborator hands to the
// pipeline. It lives until a worker either processes it or the queue evicts
// it under overload.
type DetectionEvent struct {
	CameraID   string                 `json:"camera_id"`
	CameraName string                 `json:"camera_name"`
	FrameRef   string                 `json:"frame_ref"`
	Timestamp  time.Time              `json:"timestamp"`
	Objects    []string               `json:"objects"`
	Confidence int                    `json:"confidence"`
	Anomaly    *float64               `json:"anomaly_score,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Normalize fills the defaults the rest of the pipeline relies on: a missing
// timestamp becomes now, and an event without labels carries a single
// "unknown" label.
func (e *DetectionEvent) Normalize() {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if len(e.Objects) == 0 {
		e.Objects = []string{"unknown"}
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
}

// DescribeResult is the Description Generator contract. Confidence is on a
// 0-100 scale regardless of provider.
type DescribeResult struct {
	Success        bool     `json:"success"`
	Description    string   `json:"description"`
	Confidence     int      `json:"confidence"`
	Objects        []string `json:"objects_detected"`
	Provider       string   `json:"provider"`
	ResponseTimeMs int64    `json:"response_time_ms"`
	Error          string   `json:"error,omitempty"`
}

// EventPayload is the persisted form of a processed detection. The ID is
// assigned by the event store.
type EventPayload struct {
	ID          string                 `json:"id"`
	CameraID    string                 `json:"camera_id"`
	CameraName  string                 `json:"camera_name"`
	Timestamp   time.Time              `json:"timestamp"`
	Description string                 `json:"description"`
	Confidence  int                    `json:"confidence"`
	Objects     []string               `json:"objects"`
	Provider    string                 `json:"provider"`
	FrameRef    string                 `json:"frame_ref"`
	Anomaly     *float64               `json:"anomaly_score,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ThumbnailURL returns the dashboard-relative thumbnail path used in webhook
// payloads and notifications.
func (p *EventPayload) ThumbnailURL() string {
	return "/api/events/" + p.ID + "/thumbnail"
}
