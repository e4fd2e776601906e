package alerts

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"argus-pipeline-go/internal/models"
)

// EvaluateRule tests one rule against one persisted event at the given
// instant. The cooldown gate runs first: a rule inside its window is skipped
// outright and no condition is inspected. Conditions are then checked in a
// fixed order with AND semantics across categories; the first failing check
// short-circuits the rest. An unconfigured condition is always satisfied.
func EvaluateRule(rule *models.AlertRule, event *models.EventPayload, now time.Time) models.EvalOutcome {
	if rule.OnCooldown(now) {
		return models.EvalCooldownSkipped
	}

	conds := rule.Conditions

	if !matchObjects(conds.ObjectTypes, event.Objects) {
		return models.EvalNoMatch
	}
	if !matchCamera(conds.Cameras, event.CameraID) {
		return models.EvalNoMatch
	}
	if !matchTimeOfDay(conds.TimeOfDay, event.Timestamp, rule.ID) {
		return models.EvalNoMatch
	}
	if !matchDayOfWeek(conds.DaysOfWeek, event.Timestamp) {
		return models.EvalNoMatch
	}
	if conds.MinConfidence != nil && event.Confidence < *conds.MinConfidence {
		return models.EvalNoMatch
	}
	if conds.AnomalyThreshold != nil {
		// An event without an anomaly score can never satisfy a threshold.
		if event.Anomaly == nil || *event.Anomaly < *conds.AnomalyThreshold {
			return models.EvalNoMatch
		}
	}

	return models.EvalMatched
}

// matchObjects is an OR within the category: the event matches if any of its
// labels is in the allowed set. An empty set means any object matches.
func matchObjects(allowed []string, objects []string) bool {
	if len(allowed) == 0 {
		return true
	}
	return lo.SomeBy(objects, func(obj string) bool {
		return lo.Contains(allowed, obj)
	})
}

func matchCamera(cameras []string, cameraID string) bool {
	if len(cameras) == 0 || cameraID == "" {
		return true
	}
	return lo.Contains(cameras, cameraID)
}

// matchTimeOfDay checks the inclusive HH:MM window against the event's local
// clock time. Start after End means the window crosses midnight. Malformed
// bounds fail open: the window is treated as always active, with a warning.
func matchTimeOfDay(window *models.TimeWindow, ts time.Time, ruleID string) bool {
	if window == nil {
		return true
	}

	start, okStart := parseClock(window.Start)
	end, okEnd := parseClock(window.End)
	if !okStart || !okEnd {
		log.Warn().
			Str("rule_id", ruleID).
			Str("start", window.Start).
			Str("end", window.End).
			Msg("Malformed time window, treating as always active")
		return true
	}

	minute := ts.Hour()*60 + ts.Minute()
	if start <= end {
		return minute >= start && minute <= end
	}
	// Overnight window, e.g. 22:00-06:00.
	return minute >= start || minute <= end
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// matchDayOfWeek uses ISO weekday numbering: 1=Monday .. 7=Sunday.
func matchDayOfWeek(days []int, ts time.Time) bool {
	if len(days) == 0 {
		return true
	}
	iso := int(ts.Weekday())
	if iso == 0 {
		iso = 7
	}
	return lo.Contains(days, iso)
}
