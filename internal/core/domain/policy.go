package domain

import "time"

// PolicyAction is an enforcement action the data plane understands.
type PolicyAction string

const (
	ActionAllow      PolicyAction = "allow"
	ActionDeny       PolicyAction = "deny"
	ActionRedirect   PolicyAction = "redirect"
	ActionQuarantine PolicyAction = "quarantine"
)

// IsValid reports whether the action is one the rule installer accepts.
func (a PolicyAction) IsValid() bool {
	switch a {
	case ActionAllow, ActionDeny, ActionRedirect, ActionQuarantine:
		return true
	}
	return false
}

// TrustLevel buckets a trust score into a single enforcement posture.
type TrustLevel string

const (
	TrustTrusted    TrustLevel = "trusted"
	TrustMonitored  TrustLevel = "monitored"
	TrustSuspicious TrustLevel = "suspicious"
	TrustUntrusted  TrustLevel = "untrusted"
)

// TrustLevelFor maps a score to its bucket.
func TrustLevelFor(score int) TrustLevel {
	switch {
	case score >= 70:
		return TrustTrusted
	case score >= 50:
		return TrustMonitored
	case score >= 30:
		return TrustSuspicious
	default:
		return TrustUntrusted
	}
}

// ActionForTrustLevel maps a bucket to the action the policy adapter installs.
func ActionForTrustLevel(level TrustLevel) PolicyAction {
	switch level {
	case TrustUntrusted:
		return ActionQuarantine
	case TrustSuspicious:
		return ActionDeny
	case TrustMonitored:
		return ActionRedirect
	default:
		return ActionAllow
	}
}

// Match field names accepted by the rule installer.
const (
	MatchEthSrc  = "eth_src"
	MatchEthDst  = "eth_dst"
	MatchIPv4Src = "ipv4_src"
	MatchIPv4Dst = "ipv4_dst"
	MatchInPort  = "in_port"
	MatchIPProto = "ip_proto"
	MatchTCPSrc  = "tcp_src"
	MatchTCPDst  = "tcp_dst"
	MatchUDPSrc  = "udp_src"
	MatchUDPDst  = "udp_dst"
)

// PolicyRule is a single match/action rule for one device.
type PolicyRule struct {
	Action   PolicyAction      `json:"action"`
	Match    map[string]string `json:"match"`
	Priority int               `json:"priority"`
	Comment  string            `json:"comment,omitempty"`
}

// RateLimit caps a device's traffic rates; derived from the baseline
// with headroom.
type RateLimit struct {
	MaxPPS float64 `json:"max_pps"`
	MaxBPS float64 `json:"max_bps"`
}

// DevicePolicy is the full least-privilege policy for a single device.
type DevicePolicy struct {
	DeviceID    string       `json:"device_id"`
	Rules       []PolicyRule `json:"rules"`
	RateLimit   *RateLimit   `json:"rate_limit,omitempty"`
	DefaultDeny bool         `json:"default_deny"`
	GeneratedAt string       `json:"generated_at"`
}

// PolicyChange is one entry of the adapter's per-device history.
type PolicyChange struct {
	DeviceID  string       `json:"device_id"`
	OldScore  int          `json:"old_score"`
	NewScore  int          `json:"new_score"`
	Level     TrustLevel   `json:"level"`
	Action    PolicyAction `json:"action"`
	Reason    string       `json:"reason"`
	Timestamp time.Time    `json:"timestamp"`
}
