package domain

import "time"

// Severity grades anomalies, alerts and threat records.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityForScore maps an accumulated anomaly score to an overall severity.
func SeverityForScore(score int) Severity {
	switch {
	case score >= 70:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	case score >= 20:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// AnomalyType classifies what the detector believes is happening.
type AnomalyType string

const (
	AnomalyDoS          AnomalyType = "dos"
	AnomalyVolumeAttack AnomalyType = "volume_attack"
	AnomalyScanning     AnomalyType = "scanning"
	AnomalyPortScanning AnomalyType = "port_scanning"
	AnomalyGeneric      AnomalyType = "anomaly"
)

// anomalyPrecedence orders types from most to least specific; the event
// type is the highest-precedence signal that matched.
var anomalyPrecedence = []AnomalyType{
	AnomalyDoS, AnomalyVolumeAttack, AnomalyScanning, AnomalyPortScanning, AnomalyGeneric,
}

// DominantAnomalyType picks the highest-precedence type among matched.
func DominantAnomalyType(matched map[AnomalyType]bool) AnomalyType {
	for _, t := range anomalyPrecedence {
		if matched[t] {
			return t
		}
	}
	return AnomalyGeneric
}

// AnomalySignal is one threshold that fired during evaluation.
type AnomalySignal struct {
	Name     string      `json:"name"`
	Type     AnomalyType `json:"type"`
	Severity Severity    `json:"severity"`
	Score    int         `json:"score"`
	Observed float64     `json:"observed"`
	Expected float64     `json:"expected"`
}

// AnomalyEvent is the detector's output for one device evaluation.
type AnomalyEvent struct {
	DeviceID  string          `json:"device_id"`
	Type      AnomalyType     `json:"type"`
	Severity  Severity        `json:"severity"`
	Score     int             `json:"score"`
	Signals   []AnomalySignal `json:"signals"`
	Baselined bool            `json:"baselined"`
	Timestamp time.Time       `json:"timestamp"`
}

// Key identifies an event for replay dedup.
func (e *AnomalyEvent) Key() string {
	return e.DeviceID + "|" + e.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + string(e.Type)
}
