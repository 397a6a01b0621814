// Package orchestrator fuses identity, trust, recent anomalies and
// external threat intelligence into a single immediate policy decision.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/telemetry"
)

const (
	decisionRetention = 100
	alertLookback     = 5 * time.Minute
	decidePriority    = 200
)

// AlertSource supplies the recent anomaly events for a device.
type AlertSource interface {
	RecentForDevice(deviceID string, maxAge time.Duration) []*domain.AnomalyEvent
}

// Orchestrator is the authoritative arbitrator for alert paths that
// need a ruling now rather than after a trust cascade. It must never be
// called from inside a trust-change listener.
type Orchestrator struct {
	store     ports.IdentityStore
	scorer    ports.TrustScorer
	alerts    AlertSource
	installer ports.RuleInstaller

	mu        sync.Mutex
	decisions map[string][]*domain.Decision
}

// New wires the orchestrator's collaborators.
func New(store ports.IdentityStore, scorer ports.TrustScorer, alerts AlertSource, installer ports.RuleInstaller) *Orchestrator {
	return &Orchestrator{
		store:     store,
		scorer:    scorer,
		alerts:    alerts,
		installer: installer,
		decisions: make(map[string][]*domain.Decision),
	}
}

// Decide gathers inputs, computes the threat level, rules on the
// action, applies it and records the decision.
func (o *Orchestrator) Decide(ctx context.Context, deviceID string, threat *domain.ThreatRecord) (*domain.Decision, error) {
	device, err := o.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	trust := o.scorer.Get(deviceID)
	recent := o.alerts.RecentForDevice(deviceID, alertLookback)

	level := threatLevel(threat, recent)
	action, reason := decide(level, trust)

	match := map[string]string{domain.MatchEthSrc: device.MAC}
	if err := o.installer.Install(ctx, deviceID, action, match, decidePriority); err != nil {
		return nil, fmt.Errorf("apply decision: %w", err)
	}
	telemetry.PolicyInstalls.WithLabelValues(string(action), "orchestrator").Inc()

	d := &domain.Decision{
		DeviceID:    deviceID,
		Action:      action,
		ThreatLevel: level,
		TrustScore:  trust,
		AlertCount:  len(recent),
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
	}
	o.retain(d)
	slog.Info("orchestrator decision", "device_id", deviceID,
		"action", string(action), "threat_level", level.String(), "trust", trust)
	return d, nil
}

// Decisions returns the retained decisions for one device, oldest first.
func (o *Orchestrator) Decisions(deviceID string) []*domain.Decision {
	o.mu.Lock()
	defer o.mu.Unlock()
	d := o.decisions[deviceID]
	out := make([]*domain.Decision, len(d))
	copy(out, d)
	return out
}

func (o *Orchestrator) retain(d *domain.Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	list := append(o.decisions[d.DeviceID], d)
	if len(list) > decisionRetention {
		list = list[len(list)-decisionRetention:]
	}
	o.decisions[d.DeviceID] = list
}

// threatLevel is the max of the record's own severity and the bump-up
// rule over recent alerts: one high alert forces at least high, two
// mediums force at least high, one medium forces at least medium.
func threatLevel(threat *domain.ThreatRecord, recent []*domain.AnomalyEvent) domain.ThreatLevel {
	level := domain.ThreatNone
	if threat != nil {
		level = domain.ThreatLevelForSeverity(threat.Severity)
	}

	highs, mediums := 0, 0
	for _, e := range recent {
		switch e.Severity {
		case domain.SeverityHigh:
			highs++
		case domain.SeverityMedium:
			mediums++
		}
	}
	switch {
	case highs >= 1 || mediums >= 2:
		level = level.Max(domain.ThreatHigh)
	case mediums >= 1:
		level = level.Max(domain.ThreatMedium)
	}
	return level
}

// decide walks the action priority ladder.
func decide(level domain.ThreatLevel, trust int) (domain.PolicyAction, string) {
	switch {
	case level >= domain.ThreatCritical:
		return domain.ActionQuarantine, "critical_threat"
	case level == domain.ThreatHigh && trust < 30:
		return domain.ActionQuarantine, "high_threat_untrusted"
	case level == domain.ThreatHigh:
		return domain.ActionRedirect, "high_threat"
	case trust < 30:
		return domain.ActionQuarantine, "untrusted"
	case trust < 50:
		return domain.ActionDeny, "suspicious"
	case trust < 70 || level == domain.ThreatMedium:
		return domain.ActionRedirect, "monitored"
	default:
		return domain.ActionAllow, "trusted"
	}
}
