package models

import (
	"time"
)

// EvalOutcome is the result of testing one rule against one event.
type EvalOutcome string

const (
	EvalMatched         EvalOutcome = "MATCHED"
	EvalNoMatch         EvalOutcome = "NO_MATCH"
	EvalCooldownSkipped EvalOutcome = "COOLDOWN_SKIPPED"
)

// TimeWindow is an inclusive HH:MM range. Start after End means the window
// crosses midnight (e.g. 22:00-06:00).
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RuleConditions are ANDed across categories; within a category membership is
// an OR. A nil/empty condition is always satisfied.
type RuleConditions struct {
	ObjectTypes      []string    `json:"object_types,omitempty"`
	Cameras          []string    `json:"cameras,omitempty"`
	TimeOfDay        *TimeWindow `json:"time_of_day,omitempty"`
	DaysOfWeek       []int       `json:"days_of_week,omitempty"` // ISO weekdays, 1=Monday .. 7=Sunday
	MinConfidence    *int        `json:"min_confidence,omitempty"`
	AnomalyThreshold *float64    `json:"anomaly_threshold,omitempty"`
}

// WebhookAction configures the outbound webhook of a rule. Header values may
// be stored encrypted (see secrets package) and are decrypted at send time.
type WebhookAction struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// RuleActions describes what happens when a rule matches.
type RuleActions struct {
	DashboardNotification bool           `json:"dashboard_notification"`
	Webhook               *WebhookAction `json:"webhook,omitempty"`
}

// AlertRule is a user-defined rule persisted by the event store. The
// conditions/actions columns are JSON in storage and typed here; nothing
// outside the store boundary touches raw maps.
type AlertRule struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Enabled         bool           `json:"enabled"`
	Conditions      RuleConditions `json:"conditions"`
	Actions         RuleActions    `json:"actions"`
	CooldownMinutes int            `json:"cooldown_minutes"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty"`
	TriggerCount    int64          `json:"trigger_count"`
}

// OnCooldown reports whether the rule is still inside its suppression window
// at the given instant. A rule becomes eligible again at exactly
// last_triggered_at + cooldown_minutes.
func (r *AlertRule) OnCooldown(now time.Time) bool {
	if r.CooldownMinutes <= 0 || r.LastTriggeredAt == nil {
		return false
	}
	until := r.LastTriggeredAt.Add(time.Duration(r.CooldownMinutes) * time.Minute)
	return now.Before(until)
}

// ActionStats aggregates per-action results for one processed event. Action
// failures are counted here, never raised to the caller.
type ActionStats struct {
	NotificationsSent   int `json:"notifications_sent"`
	NotificationsFailed int `json:"notifications_failed"`
	WebhooksSent        int `json:"webhooks_sent"`
	WebhooksFailed      int `json:"webhooks_failed"`
}

// ProcessSummary is the timing/result report of one full evaluate-and-act
// pass over a persisted event.
type ProcessSummary struct {
	EventID        string      `json:"event_id"`
	RulesEvaluated int         `json:"rules_evaluated"`
	RulesMatched   []string    `json:"rules_matched"`
	RulesSkipped   int         `json:"rules_skipped"` // cooldown suppressions
	Stats          ActionStats `json:"stats"`
	ElapsedMs      int64       `json:"elapsed_ms"`
}
