package domain

import "time"

// Trust score deltas applied by the scorer's event hooks.
const (
	DeltaAnomalyLow      = -5
	DeltaAnomalyMedium   = -15
	DeltaAnomalyHigh     = -30
	DeltaAttestationFail = -20
	DeltaAlertLow        = -10
	DeltaAlertMedium     = -20
	DeltaAlertHigh       = -40
	DeltaPositiveTick    = 2
)

// ClipTrustScore bounds a score to [0, 100].
func ClipTrustScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// AnomalyDelta maps an anomaly severity to its trust penalty.
func AnomalyDelta(s Severity) int {
	switch s {
	case SeverityHigh:
		return DeltaAnomalyHigh
	case SeverityMedium:
		return DeltaAnomalyMedium
	case SeverityLow:
		return DeltaAnomalyLow
	default:
		return 0
	}
}

// AlertDelta maps a security alert severity to its trust penalty.
func AlertDelta(s Severity) int {
	switch s {
	case SeverityHigh:
		return DeltaAlertHigh
	case SeverityMedium:
		return DeltaAlertMedium
	case SeverityLow:
		return DeltaAlertLow
	default:
		return 0
	}
}

// TrustRecord is one entry in a device's score history.
type TrustRecord struct {
	DeviceID  string    `json:"device_id"`
	OldScore  int       `json:"old_score"`
	NewScore  int       `json:"new_score"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// TrustChangeListener receives synchronous trust updates in write order.
type TrustChangeListener func(deviceID string, oldScore, newScore int, reason string)
