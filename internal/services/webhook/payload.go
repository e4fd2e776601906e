package webhook

import (
	"time"

	"argus-pipeline-go/internal/models"
)

// Payload is the webhook wire format. Field names and shape are fixed;
// external consumers depend on them.
type Payload struct {
	EventID      string       `json:"event_id"`
	Timestamp    string       `json:"timestamp"` // ISO 8601
	Camera       PayloadRef   `json:"camera"`
	Description  string       `json:"description"`
	Confidence   int          `json:"confidence"`
	Objects      []string     `json:"objects_detected"`
	ThumbnailURL string       `json:"thumbnail_url"`
	Rule         PayloadRef   `json:"rule"`
	Anomaly      *AnomalyInfo `json:"anomaly,omitempty"`
}

type PayloadRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AnomalyInfo is included only when the event carries an anomaly score.
type AnomalyInfo struct {
	Score    float64 `json:"score"`
	Severity string  `json:"severity"` // low, medium, high
}

// BuildPayload assembles the wire payload for one event/rule pair. Severity
// is derived from the two configured thresholds.
func (s *Service) BuildPayload(event *models.EventPayload, rule *models.AlertRule) *Payload {
	p := &Payload{
		EventID:      event.ID,
		Timestamp:    event.Timestamp.Format(time.RFC3339),
		Camera:       PayloadRef{ID: event.CameraID, Name: event.CameraName},
		Description:  event.Description,
		Confidence:   event.Confidence,
		Objects:      event.Objects,
		ThumbnailURL: event.ThumbnailURL(),
		Rule:         PayloadRef{ID: rule.ID, Name: rule.Name},
	}

	if event.Anomaly != nil {
		p.Anomaly = &AnomalyInfo{
			Score:    *event.Anomaly,
			Severity: s.classifySeverity(*event.Anomaly),
		}
	}
	return p
}

func (s *Service) classifySeverity(score float64) string {
	switch {
	case score >= s.cfg.SeverityHighThreshold:
		return "high"
	case score >= s.cfg.SeverityMediumThreshold:
		return "medium"
	default:
		return "low"
	}
}
