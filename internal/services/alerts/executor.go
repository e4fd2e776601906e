package alerts

import (
	"context"

	"github.com/rs/zerolog/log"

	"argus-pipeline-go/internal/models"
)

// DashboardNotification is the message published for the dashboard fan-out
// when a matched rule has the notification action enabled.
type DashboardNotification struct {
	Type         string   `json:"type"`
	EventID      string   `json:"event_id"`
	CameraID     string   `json:"camera_id"`
	CameraName   string   `json:"camera_name"`
	Description  string   `json:"description"`
	Objects      []string `json:"objects"`
	RuleID       string   `json:"rule_id"`
	RuleName     string   `json:"rule_name"`
	ThumbnailURL string   `json:"thumbnail_url"`
}

// ExecuteActions runs the actions of every matched rule independently: a
// failing webhook never blocks the dashboard notification or the next rule.
// After a rule's actions, its trigger bookkeeping is updated; one final
// alert-status write covers the whole batch. An empty matched set is a no-op
// with all-zero stats.
func (s *Service) ExecuteActions(ctx context.Context, event *models.EventPayload, matched []*models.AlertRule) models.ActionStats {
	var stats models.ActionStats
	if len(matched) == 0 {
		return stats
	}

	matchedIDs := make([]string, 0, len(matched))
	for _, rule := range matched {
		matchedIDs = append(matchedIDs, rule.ID)

		if rule.Actions.DashboardNotification {
			if err := s.notifyDashboard(event, rule); err != nil {
				stats.NotificationsFailed++
				log.Error().Err(err).
					Str("rule_id", rule.ID).
					Str("event_id", event.ID).
					Msg("Dashboard notification failed")
			} else {
				stats.NotificationsSent++
			}
		}

		if rule.Actions.Webhook != nil {
			result := s.webhooks.ExecuteRuleWebhook(ctx, event, rule)
			if result.Success {
				stats.WebhooksSent++
			} else {
				stats.WebhooksFailed++
				log.Warn().
					Str("rule_id", rule.ID).
					Str("event_id", event.ID).
					Str("outcome", string(result.Outcome)).
					Str("error", result.Error).
					Msg("Webhook delivery failed")
			}
		}

		// Best-effort: a bookkeeping failure must not undo the actions.
		if err := s.store.UpdateRuleTriggered(ctx, rule.ID); err != nil {
			log.Error().Err(err).
				Str("rule_id", rule.ID).
				Msg("Failed to update rule trigger bookkeeping")
		}
	}

	if err := s.store.UpdateEventAlertStatus(ctx, event.ID, matchedIDs); err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID).
			Msg("Failed to persist event alert status")
	}

	return stats
}

func (s *Service) notifyDashboard(event *models.EventPayload, rule *models.AlertRule) error {
	return s.publisher.Publish(s.cfg.NotifySubject, DashboardNotification{
		Type:         "alert",
		EventID:      event.ID,
		CameraID:     event.CameraID,
		CameraName:   event.CameraName,
		Description:  event.Description,
		Objects:      event.Objects,
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		ThumbnailURL: event.ThumbnailURL(),
	})
}
