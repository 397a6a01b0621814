// Package policy turns trust movements into enforcement actions and
// generates least-privilege device policies from baselines.
package policy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/telemetry"
)

const (
	historyLimit = 100

	// significantDelta triggers re-enforcement even inside one bucket.
	significantDelta = 10

	enforcePriority = 100
)

// Adapter listens for trust changes and keeps the data plane aligned
// with each device's bucket.
type Adapter struct {
	store     ports.IdentityStore
	installer ports.RuleInstaller
	toggles   *Toggles

	mu      sync.Mutex
	history map[string][]*domain.PolicyChange
}

// NewAdapter builds the adapter; register OnTrustChange with the scorer.
// toggles may be nil, meaning always enabled.
func NewAdapter(store ports.IdentityStore, installer ports.RuleInstaller, toggles *Toggles) *Adapter {
	return &Adapter{
		store:     store,
		installer: installer,
		toggles:   toggles,
		history:   make(map[string][]*domain.PolicyChange),
	}
}

// OnTrustChange is the trust listener. It enforces when the bucket
// changed or the score moved by at least 10 points.
func (a *Adapter) OnTrustChange(deviceID string, oldScore, newScore int, reason string) {
	if a.toggles != nil && !a.toggles.Enabled(ToggleTrustCascade) {
		return
	}
	oldLevel := domain.TrustLevelFor(oldScore)
	newLevel := domain.TrustLevelFor(newScore)
	delta := newScore - oldScore
	if delta < 0 {
		delta = -delta
	}
	if oldLevel == newLevel && delta < significantDelta {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.enforce(ctx, deviceID, oldScore, newScore, newLevel, reason)
}

// SweepOnce re-checks every device against its current score. Used by
// the periodic sweep worker to repair drift.
func (a *Adapter) SweepOnce(ctx context.Context, scores map[string]int) {
	if a.toggles != nil && !a.toggles.Enabled(TogglePolicySweep) {
		return
	}
	for deviceID, score := range scores {
		level := domain.TrustLevelFor(score)
		a.enforce(ctx, deviceID, score, score, level, "policy_sweep")
	}
}

func (a *Adapter) enforce(ctx context.Context, deviceID string, oldScore, newScore int, level domain.TrustLevel, reason string) {
	device, err := a.store.GetDevice(ctx, deviceID)
	if err != nil {
		slog.Warn("policy enforcement skipped, device lookup failed", "device_id", deviceID, "error", err)
		return
	}
	action := domain.ActionForTrustLevel(level)
	match := map[string]string{domain.MatchEthSrc: device.MAC}
	if err := a.installer.Install(ctx, deviceID, action, match, enforcePriority); err != nil {
		slog.Error("rule install failed", "device_id", deviceID, "action", string(action), "error", err)
		return
	}
	telemetry.PolicyInstalls.WithLabelValues(string(action), "trust_cascade").Inc()

	change := &domain.PolicyChange{
		DeviceID:  deviceID,
		OldScore:  oldScore,
		NewScore:  newScore,
		Level:     level,
		Action:    action,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	a.mu.Lock()
	h := append(a.history[deviceID], change)
	if len(h) > historyLimit {
		h = h[len(h)-historyLimit:]
	}
	a.history[deviceID] = h
	a.mu.Unlock()

	slog.Info("policy enforced", "device_id", deviceID,
		"level", string(level), "action", string(action), "reason", reason)
}

// History returns the adapter's recorded changes for one device.
func (a *Adapter) History(deviceID string) []*domain.PolicyChange {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.history[deviceID]
	out := make([]*domain.PolicyChange, len(h))
	copy(out, h)
	return out
}

// AllHistory flattens every device's change history, newest last.
func (a *Adapter) AllHistory() []*domain.PolicyChange {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*domain.PolicyChange
	for _, h := range a.history {
		out = append(out, h...)
	}
	return out
}

// ClearHistory drops all recorded changes.
func (a *Adapter) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = make(map[string][]*domain.PolicyChange)
}
