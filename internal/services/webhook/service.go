package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/rs/zerolog/log"

	"argus-pipeline-go/internal/config"
	"argus-pipeline-go/internal/models"
	"argus-pipeline-go/internal/secrets"
)

// urlValidator lets tests point deliveries at loopback targets.
type urlValidator interface {
	Validate(rawURL string) error
}

// Service delivers rule webhooks: validation, rate limiting, bounded retries
// and a full audit trail, one log row per HTTP attempt.
type Service struct {
	cfg       *config.Config
	store     models.EventStore
	secrets   models.SecretDecrypter
	validator urlValidator
	limiter   *slidingWindow
	client    *http.Client
}

// NewService wires the delivery client. The HTTP client carries no global
// timeout; each attempt is bounded by its own context deadline.
func NewService(cfg *config.Config, store models.EventStore, box models.SecretDecrypter) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		secrets:   box,
		validator: NewValidator(cfg.AllowInsecureHTTP),
		limiter:   newSlidingWindow(cfg.WebhookRateLimit, cfg.WebhookRateWindow),
		client:    &http.Client{},
	}
}

// ExecuteRuleWebhook resolves a matched rule's webhook action: decrypts any
// encrypted header values and delegates to SendWebhook. Validation and
// rate-limit failures come back as failed results without consuming any
// retry budget.
func (s *Service) ExecuteRuleWebhook(ctx context.Context, event *models.EventPayload, rule *models.AlertRule) *models.DeliveryResult {
	action := rule.Actions.Webhook
	if action == nil || action.URL == "" {
		return &models.DeliveryResult{
			Outcome: models.DeliveryFailedValidation,
			Error:   "rule has no webhook configured",
		}
	}

	headers := make(map[string]string, len(action.Headers))
	for name, value := range action.Headers {
		if secrets.IsEncrypted(value) {
			plain, err := s.secrets.Decrypt(value)
			if err != nil {
				log.Error().Err(err).
					Str("rule_id", rule.ID).
					Str("header", name).
					Msg("Failed to decrypt webhook header")
				return &models.DeliveryResult{
					Outcome: models.DeliveryFailedValidation,
					Error:   fmt.Sprintf("cannot decrypt header %s: %v", name, err),
				}
			}
			headers[name] = plain
			continue
		}
		headers[name] = value
	}

	payload := s.BuildPayload(event, rule)
	return s.SendWebhook(ctx, action.URL, headers, payload, rule.ID, event.ID)
}

// SendWebhook validates the URL, checks the rate limit, then attempts
// delivery up to the configured attempt cap with fixed backoff delays. Any
// non-2xx response, connection error or timeout counts as a failed attempt.
func (s *Service) SendWebhook(ctx context.Context, rawURL string, headers map[string]string, payload *Payload, ruleID, eventID string) *models.DeliveryResult {
	start := time.Now()

	if err := s.validator.Validate(rawURL); err != nil {
		s.audit(ctx, &models.WebhookLogEntry{
			RuleID:  ruleID,
			EventID: eventID,
			URL:     rawURL,
			Error:   err.Error(),
		})
		log.Warn().Err(err).Str("rule_id", ruleID).Msg("Webhook URL rejected")
		return &models.DeliveryResult{
			Outcome: models.DeliveryFailedValidation,
			Error:   err.Error(),
		}
	}

	if !s.limiter.Allow(ruleID) {
		err := fmt.Sprintf("rate limit exceeded for rule %s (%d per %s)", ruleID, s.cfg.WebhookRateLimit, s.cfg.WebhookRateWindow)
		s.audit(ctx, &models.WebhookLogEntry{
			RuleID:  ruleID,
			EventID: eventID,
			URL:     rawURL,
			Error:   err,
		})
		log.Warn().Str("rule_id", ruleID).Msg("Webhook rate limited")
		return &models.DeliveryResult{
			Outcome: models.DeliveryFailedRateLimited,
			Error:   err,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &models.DeliveryResult{
			Outcome: models.DeliveryFailedValidation,
			Error:   fmt.Sprintf("cannot encode payload: %v", err),
		}
	}

	var (
		attempt    int
		lastStatus int
		snippet    string
	)

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.WebhookAttempts)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, cfg retry.DelayContext) time.Duration {
			return s.retryDelay(n)
		}),
	)

	doErr := r.Do(func() error {
		status, respSnippet, elapsed, attemptErr := s.attempt(ctx, rawURL, headers, body)
		lastStatus = status
		if respSnippet != "" {
			snippet = respSnippet
		}

		entry := &models.WebhookLogEntry{
			RuleID:         ruleID,
			EventID:        eventID,
			URL:            rawURL,
			StatusCode:     status,
			ResponseTimeMs: elapsed.Milliseconds(),
			RetryCount:     attempt,
			Success:        attemptErr == nil,
		}
		if attemptErr != nil {
			entry.Error = attemptErr.Error()
		}
		s.audit(ctx, entry)
		attempt++

		return attemptErr
	})

	result := &models.DeliveryResult{
		StatusCode:     lastStatus,
		Body:           snippet,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		RetryCount:     attempt - 1,
	}

	if doErr != nil {
		result.Outcome = models.DeliveryFailedRetries
		result.Error = doErr.Error()
		log.Warn().
			Str("rule_id", ruleID).
			Int("attempts", attempt).
			Int("last_status", lastStatus).
			Msg("Webhook delivery failed after retries")
		return result
	}

	result.Outcome = models.DeliverySuccess
	result.Success = true
	log.Info().
		Str("rule_id", ruleID).
		Int("status", lastStatus).
		Int("retries", result.RetryCount).
		Msg("Webhook delivered")
	return result
}

// attempt performs one HTTP POST bounded by the per-attempt timeout.
func (s *Service) attempt(ctx context.Context, rawURL string, headers map[string]string, body []byte) (status int, snippet string, elapsed time.Duration, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.WebhookTimeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", time.Since(start), err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.cfg.WebhookUserAgent)
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", time.Since(start), err
	}
	defer resp.Body.Close()

	limited, _ := io.ReadAll(io.LimitReader(resp.Body, int64(s.cfg.MaxResponseSnippet)))
	elapsed = time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, string(limited), elapsed, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, string(limited), elapsed, nil
}

// retryDelay returns the fixed backoff for the nth retry (0-based). Extra
// retries beyond the configured delays reuse the last one.
func (s *Service) retryDelay(n uint) time.Duration {
	delays := s.cfg.WebhookRetryDelays
	if len(delays) == 0 {
		return time.Second
	}
	if int(n) < len(delays) {
		return delays[n]
	}
	return delays[len(delays)-1]
}

// audit appends one log row; failures are logged and swallowed so a broken
// audit store never blocks delivery.
func (s *Service) audit(ctx context.Context, entry *models.WebhookLogEntry) {
	if err := s.store.AppendWebhookLog(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("rule_id", entry.RuleID).
			Msg("Failed to append webhook audit log")
	}
}
