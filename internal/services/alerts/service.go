package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"argus-pipeline-go/internal/config"
	"argus-pipeline-go/internal/models"
)

// slowEvaluation is the budget for one full rule sweep. Longer runs are a
// performance regression to surface in the logs, not a failure.
const slowEvaluation = 500 * time.Millisecond

// WebhookExecutor delivers a matched rule's webhook action.
type WebhookExecutor interface {
	ExecuteRuleWebhook(ctx context.Context, event *models.EventPayload, rule *models.AlertRule) *models.DeliveryResult
}

// Service is the alert engine: it decides which enabled rules match a
// persisted event and runs their actions.
type Service struct {
	cfg       *config.Config
	store     models.EventStore
	publisher models.MessagePublisher
	webhooks  WebhookExecutor
	now       func() time.Time
}

// NewService wires the alert engine.
func NewService(cfg *config.Config, store models.EventStore, publisher models.MessagePublisher, webhooks WebhookExecutor) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		webhooks:  webhooks,
		now:       time.Now,
	}
}

// EvaluateAllRules loads all enabled rules and returns the matched subset
// plus the number of cooldown suppressions.
func (s *Service) EvaluateAllRules(ctx context.Context, event *models.EventPayload) (matched []*models.AlertRule, skipped, evaluated int, err error) {
	start := s.now()

	rules, err := s.store.ListEnabledRules(ctx)
	if err != nil {
		return nil, 0, 0, err
	}

	for _, rule := range rules {
		switch EvaluateRule(rule, event, s.now()) {
		case models.EvalMatched:
			matched = append(matched, rule)
		case models.EvalCooldownSkipped:
			skipped++
		}
	}

	if elapsed := s.now().Sub(start); elapsed > slowEvaluation {
		log.Warn().
			Int("rules", len(rules)).
			Int64("elapsed_ms", elapsed.Milliseconds()).
			Msg("Slow rule evaluation")
	}

	return matched, skipped, len(rules), nil
}

// ProcessEvent is the worker-pool entry point: evaluate every enabled rule
// against the event, then execute the actions of the matched ones. Errors
// are absorbed into the summary; the pipeline never fails on alerting.
func (s *Service) ProcessEvent(ctx context.Context, event *models.EventPayload) *models.ProcessSummary {
	start := s.now()
	summary := &models.ProcessSummary{EventID: event.ID, RulesMatched: []string{}}

	matched, skipped, evaluated, err := s.EvaluateAllRules(ctx, event)
	if err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID).
			Msg("Failed to load alert rules, skipping evaluation")
		summary.ElapsedMs = s.now().Sub(start).Milliseconds()
		return summary
	}

	summary.RulesEvaluated = evaluated
	summary.RulesSkipped = skipped
	summary.Stats = s.ExecuteActions(ctx, event, matched)
	for _, rule := range matched {
		summary.RulesMatched = append(summary.RulesMatched, rule.ID)
	}
	summary.ElapsedMs = s.now().Sub(start).Milliseconds()

	if len(matched) > 0 {
		log.Info().
			Str("event_id", event.ID).
			Strs("rules", summary.RulesMatched).
			Int("skipped", skipped).
			Msg("Alert rules matched")
	}
	return summary
}
