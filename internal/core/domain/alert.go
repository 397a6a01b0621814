package domain

import "time"

// Alert is a suspicious-device record kept for the operator view. The
// honeypot activity counter is refreshed out of band by the activity
// updater worker.
type Alert struct {
	ID               string       `json:"id"`
	DeviceID         string       `json:"device_id"`
	MAC              string       `json:"mac,omitempty"`
	SourceIP         string       `json:"source_ip,omitempty"`
	Type             string       `json:"type"`
	Severity         Severity     `json:"severity"`
	Message          string       `json:"message"`
	Action           PolicyAction `json:"action,omitempty"`
	HoneypotActivity int          `json:"honeypot_activity"`
	Acknowledged     bool         `json:"acknowledged"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// FailedTokenRequest records a rejected /get_token attempt so the
// operator can authorize legitimate devices after the fact.
type FailedTokenRequest struct {
	DeviceID  string    `json:"device_id"`
	MAC       string    `json:"mac"`
	Reason    string    `json:"reason"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
