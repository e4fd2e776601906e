package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"argus-pipeline-go/internal/config"
	"argus-pipeline-go/internal/models"
)

type auditStore struct {
	models.EventStore

	mu      sync.Mutex
	entries []*models.WebhookLogEntry
}

func (s *auditStore) AppendWebhookLog(ctx context.Context, entry *models.WebhookLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

type openValidator struct{}

func (openValidator) Validate(string) error { return nil }

type fakeDecrypter struct {
	plain string
	err   error
}

func (d *fakeDecrypter) Decrypt(string) (string, error) { return d.plain, d.err }

func testService(store *auditStore, decrypter models.SecretDecrypter) *Service {
	cfg := &config.Config{
		WebhookTimeout:     2 * time.Second,
		WebhookAttempts:    3,
		WebhookRetryDelays: []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond},
		WebhookRateLimit:   100,
		WebhookRateWindow:  time.Minute,
		WebhookUserAgent:   "Argus-Webhook/1.0",
		MaxResponseSnippet: 512,

		SeverityMediumThreshold: 0.5,
		SeverityHighThreshold:   0.8,
	}
	svc := NewService(cfg, store, decrypter)
	svc.validator = openValidator{}
	return svc
}

func testEvent() *models.EventPayload {
	return &models.EventPayload{
		ID:          "evt-1",
		CameraID:    "cam-1",
		CameraName:  "Front Door",
		Timestamp:   time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC),
		Description: "a person at the door",
		Confidence:  92,
		Objects:     []string{"person"},
	}
}

func testRule(url string, headers map[string]string) *models.AlertRule {
	return &models.AlertRule{
		ID:   "r1",
		Name: "front door person",
		Actions: models.RuleActions{
			Webhook: &models.WebhookAction{URL: url, Headers: headers},
		},
	}
}

func TestRetryThenSuccess(t *testing.T) {
	var calls int32
	var gotUA, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &auditStore{}
	svc := testService(store, &fakeDecrypter{})

	result := svc.SendWebhook(context.Background(), srv.URL, nil, svc.BuildPayload(testEvent(), testRule(srv.URL, nil)), "r1", "evt-1")

	if !result.Success || result.Outcome != models.DeliverySuccess {
		t.Fatalf("expected success after retries, got %+v", result)
	}
	if result.RetryCount != 2 {
		t.Fatalf("expected retry_count 2, got %d", result.RetryCount)
	}
	if len(store.entries) != 3 {
		t.Fatalf("expected exactly 3 audit rows, got %d", len(store.entries))
	}
	for i, entry := range store.entries {
		if entry.RetryCount != i {
			t.Fatalf("audit row %d has retry_count %d", i, entry.RetryCount)
		}
	}
	if store.entries[0].Success || store.entries[1].Success || !store.entries[2].Success {
		t.Fatalf("audit success flags wrong: %+v", store.entries)
	}
	if gotUA != "Argus-Webhook/1.0" || gotCT != "application/json" {
		t.Fatalf("wrong headers: UA=%q CT=%q", gotUA, gotCT)
	}
}

func TestFailedAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := &auditStore{}
	svc := testService(store, &fakeDecrypter{})

	result := svc.SendWebhook(context.Background(), srv.URL, nil, &Payload{}, "r1", "evt-1")

	if result.Success || result.Outcome != models.DeliveryFailedRetries {
		t.Fatalf("expected FAILED_AFTER_RETRIES, got %+v", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if result.RetryCount != 2 {
		t.Fatalf("full budget is 2 retries, got %d", result.RetryCount)
	}
	if result.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected last status 500, got %d", result.StatusCode)
	}
}

func TestValidationFailureSkipsNetwork(t *testing.T) {
	store := &auditStore{}
	svc := testService(store, &fakeDecrypter{})
	svc.validator = NewValidator(false) // real validator back in place

	result := svc.SendWebhook(context.Background(), "https://127.0.0.1/hook", nil, &Payload{}, "r1", "evt-1")

	if result.Outcome != models.DeliveryFailedValidation {
		t.Fatalf("expected FAILED_VALIDATION, got %+v", result)
	}
	if result.RetryCount != 0 {
		t.Fatalf("validation failure must not consume retries, got %d", result.RetryCount)
	}
	if len(store.entries) != 1 || store.entries[0].Success {
		t.Fatalf("expected one failed audit row, got %+v", store.entries)
	}
}

func TestRateLimitRejectsBeforeNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &auditStore{}
	svc := testService(store, &fakeDecrypter{})
	svc.limiter = newSlidingWindow(1, time.Minute)

	first := svc.SendWebhook(context.Background(), srv.URL, nil, &Payload{}, "r1", "evt-1")
	if !first.Success {
		t.Fatalf("first delivery should succeed: %+v", first)
	}

	second := svc.SendWebhook(context.Background(), srv.URL, nil, &Payload{}, "r1", "evt-2")
	if second.Outcome != models.DeliveryFailedRateLimited {
		t.Fatalf("expected FAILED_RATE_LIMITED, got %+v", second)
	}
	if calls != 1 {
		t.Fatalf("rate-limited delivery must not hit the network, saw %d calls", calls)
	}
}

func TestExecuteRuleWebhookDecryptsHeaders(t *testing.T) {
	var gotAuth string
	var gotBody Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &auditStore{}
	svc := testService(store, &fakeDecrypter{plain: "Bearer decrypted"})

	rule := testRule(srv.URL, map[string]string{
		"Authorization": "enc:c2VhbGVk",
		"X-Custom":      "plain-value",
	})
	result := svc.ExecuteRuleWebhook(context.Background(), testEvent(), rule)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if gotAuth != "Bearer decrypted" {
		t.Fatalf("expected decrypted header, got %q", gotAuth)
	}
	if gotBody.EventID != "evt-1" || gotBody.Rule.ID != "r1" || gotBody.Camera.Name != "Front Door" {
		t.Fatalf("unexpected payload: %+v", gotBody)
	}
}

func TestExecuteRuleWebhookDecryptFailure(t *testing.T) {
	store := &auditStore{}
	svc := testService(store, &fakeDecrypter{err: errors.New("bad key")})

	rule := testRule("https://hooks.example/hook", map[string]string{"Authorization": "enc:xxxx"})
	result := svc.ExecuteRuleWebhook(context.Background(), testEvent(), rule)

	if result.Outcome != models.DeliveryFailedValidation {
		t.Fatalf("expected validation failure on decrypt error, got %+v", result)
	}
}
