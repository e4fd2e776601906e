package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"argus-pipeline-go/internal/config"
	"argus-pipeline-go/internal/models"
)

type fakeStore struct {
	models.EventStore

	rules          []*models.AlertRule
	listErr        error
	triggered      []string
	statusEventID  string
	statusRuleIDs  []string
	statusWrites   int
	triggeredError error
}

func (s *fakeStore) ListEnabledRules(ctx context.Context) ([]*models.AlertRule, error) {
	return s.rules, s.listErr
}

func (s *fakeStore) UpdateRuleTriggered(ctx context.Context, ruleID string) error {
	s.triggered = append(s.triggered, ruleID)
	return s.triggeredError
}

func (s *fakeStore) UpdateEventAlertStatus(ctx context.Context, eventID string, matchedRuleIDs []string) error {
	s.statusEventID = eventID
	s.statusRuleIDs = matchedRuleIDs
	s.statusWrites++
	return nil
}

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) Publish(subject string, data interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, subject)
	return nil
}

type fakeWebhooks struct {
	calls   int
	succeed bool
}

func (w *fakeWebhooks) ExecuteRuleWebhook(ctx context.Context, event *models.EventPayload, rule *models.AlertRule) *models.DeliveryResult {
	w.calls++
	if w.succeed {
		return &models.DeliveryResult{Outcome: models.DeliverySuccess, Success: true, StatusCode: 200}
	}
	return &models.DeliveryResult{Outcome: models.DeliveryFailedRetries, Error: "boom"}
}

func testService(store *fakeStore, pub *fakePublisher, hooks *fakeWebhooks) *Service {
	cfg := &config.Config{NotifySubject: "notifications.dashboard"}
	return NewService(cfg, store, pub, hooks)
}

func matchedRule(id string, webhook bool) *models.AlertRule {
	r := &models.AlertRule{
		ID:      id,
		Name:    "rule " + id,
		Enabled: true,
		Actions: models.RuleActions{DashboardNotification: true},
	}
	if webhook {
		r.Actions.Webhook = &models.WebhookAction{URL: "https://example.com/hook"}
	}
	return r
}

func TestExecuteActionsEmptyMatchIsNoOp(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	hooks := &fakeWebhooks{}
	svc := testService(store, pub, hooks)

	stats := svc.ExecuteActions(context.Background(), &models.EventPayload{ID: "evt-1"}, nil)

	if stats != (models.ActionStats{}) {
		t.Fatalf("expected all-zero stats, got %+v", stats)
	}
	if len(pub.published) != 0 || hooks.calls != 0 || len(store.triggered) != 0 || store.statusWrites != 0 {
		t.Fatal("empty matched set must produce no side effects")
	}
}

func TestFailingWebhookDoesNotBlockSiblingActions(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	hooks := &fakeWebhooks{succeed: false}
	svc := testService(store, pub, hooks)

	matched := []*models.AlertRule{matchedRule("r1", true), matchedRule("r2", true)}
	stats := svc.ExecuteActions(context.Background(), &models.EventPayload{ID: "evt-1"}, matched)

	if stats.NotificationsSent != 2 {
		t.Fatalf("both notifications should fire despite webhook failures, got %+v", stats)
	}
	if stats.WebhooksFailed != 2 || hooks.calls != 2 {
		t.Fatalf("both webhooks should have been attempted, got %+v (calls=%d)", stats, hooks.calls)
	}
	if len(store.triggered) != 2 {
		t.Fatalf("trigger bookkeeping should run per matched rule, got %v", store.triggered)
	}
	if store.statusWrites != 1 || store.statusEventID != "evt-1" || len(store.statusRuleIDs) != 2 {
		t.Fatalf("alert status must be written once for the batch, got %d writes (%v)", store.statusWrites, store.statusRuleIDs)
	}
}

func TestNotificationFailureCounted(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("nats down")}
	hooks := &fakeWebhooks{succeed: true}
	svc := testService(store, pub, hooks)

	stats := svc.ExecuteActions(context.Background(), &models.EventPayload{ID: "evt-1"}, []*models.AlertRule{matchedRule("r1", true)})

	if stats.NotificationsFailed != 1 || stats.WebhooksSent != 1 {
		t.Fatalf("notification failure must not block the webhook, got %+v", stats)
	}
}

func TestProcessEventEndToEnd(t *testing.T) {
	store := &fakeStore{rules: []*models.AlertRule{
		matchedRule("r1", false),
		{ID: "r2", Enabled: true, Conditions: models.RuleConditions{ObjectTypes: []string{"vehicle"}}},
		{ID: "r3", Enabled: true, CooldownMinutes: 10, LastTriggeredAt: timePtr(time.Now())},
	}}
	pub := &fakePublisher{}
	hooks := &fakeWebhooks{succeed: true}
	svc := testService(store, pub, hooks)

	event := &models.EventPayload{
		ID:        "evt-1",
		CameraID:  "cam-1",
		Timestamp: time.Now(),
		Objects:   []string{"person"},
	}
	summary := svc.ProcessEvent(context.Background(), event)

	if summary.RulesEvaluated != 3 {
		t.Fatalf("expected 3 rules evaluated, got %d", summary.RulesEvaluated)
	}
	if len(summary.RulesMatched) != 1 || summary.RulesMatched[0] != "r1" {
		t.Fatalf("expected only r1 to match, got %v", summary.RulesMatched)
	}
	if summary.RulesSkipped != 1 {
		t.Fatalf("expected one cooldown skip, got %d", summary.RulesSkipped)
	}
	if summary.Stats.NotificationsSent != 1 {
		t.Fatalf("expected one notification, got %+v", summary.Stats)
	}
}

func TestProcessEventStoreErrorIsAbsorbed(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	svc := testService(store, &fakePublisher{}, &fakeWebhooks{})

	summary := svc.ProcessEvent(context.Background(), &models.EventPayload{ID: "evt-1"})
	if summary == nil || len(summary.RulesMatched) != 0 {
		t.Fatalf("rule-load failure should yield an empty summary, got %+v", summary)
	}
}
