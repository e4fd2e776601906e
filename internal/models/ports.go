package models

import "context"

// MessagePublisher publishes messages for dashboard fan-out.
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}

// Describer is the Description Generator collaborator. One opaque call per
// event; the provider may retry or fall back internally.
type Describer interface {
	Describe(ctx context.Context, event *DetectionEvent) (*DescribeResult, error)
}

// EventStore persists events, rules and webhook audit rows.
type EventStore interface {
	StoreEvent(ctx context.Context, payload *EventPayload) (string, error)
	ListEnabledRules(ctx context.Context) ([]*AlertRule, error)
	UpdateRuleTriggered(ctx context.Context, ruleID string) error
	UpdateEventAlertStatus(ctx context.Context, eventID string, matchedRuleIDs []string) error
	AppendWebhookLog(ctx context.Context, entry *WebhookLogEntry) error
}

// SecretDecrypter recovers webhook auth header values stored encrypted.
type SecretDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}
