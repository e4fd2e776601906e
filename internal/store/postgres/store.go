package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver

	"argus-pipeline-go/internal/models"
)

// Store is the Postgres-backed event store. It is the only place raw JSON
// condition/action blobs exist; everything above this boundary works with
// typed structs.
type Store struct {
	db *sql.DB
}

// NewStore opens the connection pool. Callers should Ping before serving.
func NewStore(connString string) (*Store, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Store{db: db}, nil
}

// Ping verifies database reachability at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreEvent persists one processed event and returns its id.
func (s *Store) StoreEvent(ctx context.Context, payload *models.EventPayload) (string, error) {
	id := payload.ID
	if id == "" {
		id = uuid.New().String()
	}

	objects, err := json.Marshal(payload.Objects)
	if err != nil {
		return "", fmt.Errorf("postgres: encode objects: %w", err)
	}
	metadata, err := json.Marshal(payload.Metadata)
	if err != nil {
		return "", fmt.Errorf("postgres: encode metadata: %w", err)
	}

	query := `INSERT INTO events
	          (id, camera_id, camera_name, captured_at, description, confidence, objects, provider, frame_ref, anomaly_score, metadata)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.db.ExecContext(ctx, query,
		id,
		payload.CameraID,
		payload.CameraName,
		payload.Timestamp,
		payload.Description,
		payload.Confidence,
		objects,
		payload.Provider,
		payload.FrameRef,
		payload.Anomaly,
		metadata,
	)
	if err != nil {
		return "", fmt.Errorf("postgres: store event: %w", err)
	}
	return id, nil
}

// ListEnabledRules loads every enabled rule with its typed conditions and
// actions.
func (s *Store) ListEnabledRules(ctx context.Context) ([]*models.AlertRule, error) {
	query := `SELECT id, name, enabled, conditions, actions, cooldown_minutes, last_triggered_at, trigger_count
	          FROM alert_rules WHERE enabled ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*models.AlertRule, 0)
	for rows.Next() {
		var (
			rule          models.AlertRule
			conditions    []byte
			actions       []byte
			lastTriggered sql.NullTime
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Enabled,
			&conditions,
			&actions,
			&rule.CooldownMinutes,
			&lastTriggered,
			&rule.TriggerCount,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan rule: %w", err)
		}

		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
				return nil, fmt.Errorf("postgres: decode conditions for rule %s: %w", rule.ID, err)
			}
		}
		if len(actions) > 0 {
			if err := json.Unmarshal(actions, &rule.Actions); err != nil {
				return nil, fmt.Errorf("postgres: decode actions for rule %s: %w", rule.ID, err)
			}
		}
		if lastTriggered.Valid {
			ts := lastTriggered.Time
			rule.LastTriggeredAt = &ts
		}

		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// UpdateRuleTriggered bumps the trigger bookkeeping in one statement, so
// concurrent triggers of the same rule never lose an update.
func (s *Store) UpdateRuleTriggered(ctx context.Context, ruleID string) error {
	query := `UPDATE alert_rules
	          SET last_triggered_at = NOW(), trigger_count = trigger_count + 1
	          WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, ruleID)
	if err != nil {
		return fmt.Errorf("postgres: update rule trigger: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("postgres: rule %s not found", ruleID)
	}
	return nil
}

// UpdateEventAlertStatus marks the event as alert-triggered with the full
// batch of matching rule ids.
func (s *Store) UpdateEventAlertStatus(ctx context.Context, eventID string, matchedRuleIDs []string) error {
	matched, err := json.Marshal(matchedRuleIDs)
	if err != nil {
		return fmt.Errorf("postgres: encode matched rules: %w", err)
	}

	query := `UPDATE events SET alert_triggered = TRUE, matched_rules = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, eventID, matched); err != nil {
		return fmt.Errorf("postgres: update alert status: %w", err)
	}
	return nil
}

// AppendWebhookLog writes one audit row per delivery attempt.
func (s *Store) AppendWebhookLog(ctx context.Context, entry *models.WebhookLogEntry) error {
	query := `INSERT INTO webhook_logs
	          (rule_id, event_id, url, status_code, response_time_ms, retry_count, success, error, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := s.db.ExecContext(ctx, query,
		entry.RuleID,
		entry.EventID,
		entry.URL,
		entry.StatusCode,
		entry.ResponseTimeMs,
		entry.RetryCount,
		entry.Success,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: append webhook log: %w", err)
	}
	return nil
}
