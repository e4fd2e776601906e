package alerts

import (
	"testing"
	"time"

	"argus-pipeline-go/internal/models"
)

func intPtr(v int) *int              { return &v }
func floatPtr(v float64) *float64    { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func personEvent(confidence int) *models.EventPayload {
	return &models.EventPayload{
		ID:         "evt-1",
		CameraID:   "cam-1",
		Timestamp:  time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC), // a Monday, 14:00
		Objects:    []string{"person", "package"},
		Confidence: confidence,
	}
}

func TestAndAcrossCategoriesOrWithin(t *testing.T) {
	rule := &models.AlertRule{
		ID:      "r1",
		Enabled: true,
		Conditions: models.RuleConditions{
			ObjectTypes:   []string{"person"},
			MinConfidence: intPtr(80),
		},
	}

	// Object check passes via OR, confidence fails the AND.
	if got := EvaluateRule(rule, personEvent(70), time.Now()); got != models.EvalNoMatch {
		t.Fatalf("confidence 70 should not match, got %s", got)
	}
	if got := EvaluateRule(rule, personEvent(85), time.Now()); got != models.EvalMatched {
		t.Fatalf("confidence 85 should match, got %s", got)
	}
}

func TestEmptyObjectSetMatchesAny(t *testing.T) {
	rule := &models.AlertRule{ID: "r1", Enabled: true}
	if got := EvaluateRule(rule, personEvent(1), time.Now()); got != models.EvalMatched {
		t.Fatalf("unconditional rule should match, got %s", got)
	}
}

func TestCameraCondition(t *testing.T) {
	rule := &models.AlertRule{
		ID:         "r1",
		Conditions: models.RuleConditions{Cameras: []string{"cam-2", "cam-3"}},
	}
	if got := EvaluateRule(rule, personEvent(50), time.Now()); got != models.EvalNoMatch {
		t.Fatalf("cam-1 not in set, got %s", got)
	}

	ev := personEvent(50)
	ev.CameraID = "cam-2"
	if got := EvaluateRule(rule, ev, time.Now()); got != models.EvalMatched {
		t.Fatalf("cam-2 should match, got %s", got)
	}

	// An event without a camera id passes the camera check.
	ev.CameraID = ""
	if got := EvaluateRule(rule, ev, time.Now()); got != models.EvalMatched {
		t.Fatalf("empty camera id should pass, got %s", got)
	}
}

func TestCooldownWindow(t *testing.T) {
	triggered := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	rule := &models.AlertRule{
		ID:              "r1",
		CooldownMinutes: 5,
		LastTriggeredAt: timePtr(triggered),
	}

	if got := EvaluateRule(rule, personEvent(90), triggered.Add(4*time.Minute+59*time.Second)); got != models.EvalCooldownSkipped {
		t.Fatalf("inside cooldown should skip, got %s", got)
	}
	// Eligible again at exactly T+5min.
	if got := EvaluateRule(rule, personEvent(90), triggered.Add(5*time.Minute)); got != models.EvalMatched {
		t.Fatalf("at cooldown boundary should match, got %s", got)
	}
}

func TestOvernightTimeWindow(t *testing.T) {
	rule := &models.AlertRule{
		ID: "r1",
		Conditions: models.RuleConditions{
			TimeOfDay: &models.TimeWindow{Start: "22:00", End: "06:00"},
		},
	}

	at := func(h, m int) *models.EventPayload {
		ev := personEvent(90)
		ev.Timestamp = time.Date(2026, 8, 24, h, m, 0, 0, time.UTC)
		return ev
	}

	if got := EvaluateRule(rule, at(23, 30), time.Now()); got != models.EvalMatched {
		t.Fatalf("23:30 should match overnight window, got %s", got)
	}
	if got := EvaluateRule(rule, at(2, 0), time.Now()); got != models.EvalMatched {
		t.Fatalf("02:00 should match overnight window, got %s", got)
	}
	if got := EvaluateRule(rule, at(12, 0), time.Now()); got != models.EvalNoMatch {
		t.Fatalf("12:00 should not match overnight window, got %s", got)
	}
}

func TestSameDayTimeWindowInclusive(t *testing.T) {
	rule := &models.AlertRule{
		ID: "r1",
		Conditions: models.RuleConditions{
			TimeOfDay: &models.TimeWindow{Start: "09:00", End: "17:00"},
		},
	}

	ev := personEvent(90)
	ev.Timestamp = time.Date(2026, 8, 24, 17, 0, 0, 0, time.UTC)
	if got := EvaluateRule(rule, ev, time.Now()); got != models.EvalMatched {
		t.Fatalf("17:00 is inside the inclusive bound, got %s", got)
	}
	ev.Timestamp = time.Date(2026, 8, 24, 17, 1, 0, 0, time.UTC)
	if got := EvaluateRule(rule, ev, time.Now()); got != models.EvalNoMatch {
		t.Fatalf("17:01 is outside, got %s", got)
	}
}

func TestMalformedTimeWindowFailsOpen(t *testing.T) {
	rule := &models.AlertRule{
		ID: "r1",
		Conditions: models.RuleConditions{
			TimeOfDay: &models.TimeWindow{Start: "25:99", End: "oops"},
		},
	}
	if got := EvaluateRule(rule, personEvent(90), time.Now()); got != models.EvalMatched {
		t.Fatalf("malformed window is treated as always active, got %s", got)
	}
}

func TestDayOfWeek(t *testing.T) {
	rule := &models.AlertRule{
		ID:         "r1",
		Conditions: models.RuleConditions{DaysOfWeek: []int{1, 3, 5}}, // Mon/Wed/Fri
	}

	ev := personEvent(90)
	ev.Timestamp = time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC) // Tuesday
	if got := EvaluateRule(rule, ev, time.Now()); got != models.EvalNoMatch {
		t.Fatalf("Tuesday should not match {Mon,Wed,Fri}, got %s", got)
	}

	ev.Timestamp = time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC) // Monday
	if got := EvaluateRule(rule, ev, time.Now()); got != models.EvalMatched {
		t.Fatalf("Monday should match, got %s", got)
	}

	ev.Timestamp = time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC) // Sunday = ISO 7
	rule.Conditions.DaysOfWeek = []int{7}
	if got := EvaluateRule(rule, ev, time.Now()); got != models.EvalMatched {
		t.Fatalf("Sunday should map to ISO 7, got %s", got)
	}
}

func TestAnomalyThreshold(t *testing.T) {
	rule := &models.AlertRule{
		ID:         "r1",
		Conditions: models.RuleConditions{AnomalyThreshold: floatPtr(0.7)},
	}

	// No score: never matches a threshold rule.
	if got := EvaluateRule(rule, personEvent(90), time.Now()); got != models.EvalNoMatch {
		t.Fatalf("event without score should not match, got %s", got)
	}

	ev := personEvent(90)
	ev.Anomaly = floatPtr(0.65)
	if got := EvaluateRule(rule, ev, time.Now()); got != models.EvalNoMatch {
		t.Fatalf("score below threshold should not match, got %s", got)
	}

	ev.Anomaly = floatPtr(0.7)
	if got := EvaluateRule(rule, ev, time.Now()); got != models.EvalMatched {
		t.Fatalf("score at threshold should match, got %s", got)
	}
}
