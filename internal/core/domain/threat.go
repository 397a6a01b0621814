package domain

import "time"

// ThreatLevel ranks the orchestrator's fused assessment.
type ThreatLevel int

const (
	ThreatNone ThreatLevel = iota
	ThreatLow
	ThreatMedium
	ThreatHigh
	ThreatCritical
)

// String implements fmt.Stringer for logs and JSON conversion.
func (l ThreatLevel) String() string {
	switch l {
	case ThreatCritical:
		return "critical"
	case ThreatHigh:
		return "high"
	case ThreatMedium:
		return "medium"
	case ThreatLow:
		return "low"
	default:
		return "none"
	}
}

// ThreatLevelForSeverity lifts an event severity into the threat scale.
func ThreatLevelForSeverity(s Severity) ThreatLevel {
	switch s {
	case SeverityHigh:
		return ThreatHigh
	case SeverityMedium:
		return ThreatMedium
	case SeverityLow:
		return ThreatLow
	default:
		return ThreatNone
	}
}

// Max returns the higher of two threat levels.
func (l ThreatLevel) Max(other ThreatLevel) ThreatLevel {
	if other > l {
		return other
	}
	return l
}

// ThreatRecord is an external intelligence observation, typically from
// the honeypot ingest path.
type ThreatRecord struct {
	SourceIP   string    `json:"source_ip"`
	DeviceID   string    `json:"device_id,omitempty"`
	EventType  string    `json:"event_type"`
	Severity   Severity  `json:"severity"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	ReportedBy string    `json:"reported_by,omitempty"`
}

// Decision is one orchestrator ruling with the inputs that produced it.
type Decision struct {
	DeviceID    string       `json:"device_id"`
	Action      PolicyAction `json:"action"`
	ThreatLevel ThreatLevel  `json:"threat_level"`
	TrustScore  int          `json:"trust_score"`
	AlertCount  int          `json:"alert_count"`
	Reason      string       `json:"reason"`
	Timestamp   time.Time    `json:"timestamp"`
}
