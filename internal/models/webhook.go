package models

// DeliveryOutcome classifies how a webhook delivery ended. Only
// FailedAfterRetries consumes the full retry budget.
type DeliveryOutcome string

const (
	DeliverySuccess           DeliveryOutcome = "SUCCESS"
	DeliveryFailedValidation  DeliveryOutcome = "FAILED_VALIDATION"
	DeliveryFailedRateLimited DeliveryOutcome = "FAILED_RATE_LIMITED"
	DeliveryFailedRetries     DeliveryOutcome = "FAILED_AFTER_RETRIES"
)

// WebhookLogEntry is one audit row per delivery attempt. A three-attempt
// sequence produces three rows sharing rule/event ids with distinct
// RetryCount values.
type WebhookLogEntry struct {
	RuleID         string `json:"rule_id"`
	EventID        string `json:"event_id"`
	URL            string `json:"url"`
	StatusCode     int    `json:"status_code"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	RetryCount     int    `json:"retry_count"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// DeliveryResult is the transient summary of one delivery sequence.
type DeliveryResult struct {
	Outcome        DeliveryOutcome `json:"outcome"`
	Success        bool            `json:"success"`
	StatusCode     int             `json:"status_code"`
	Body           string          `json:"body,omitempty"` // truncated response snippet
	ResponseTimeMs int64           `json:"response_time_ms"`
	RetryCount     int             `json:"retry_count"`
	Error          string          `json:"error,omitempty"`
}
