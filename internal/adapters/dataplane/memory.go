package dataplane

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

// InstalledRule is the observable state of one programmed rule.
type InstalledRule struct {
	DeviceID  string
	Action    domain.PolicyAction
	Match     map[string]string
	Priority  int
	Installed time.Time
}

// MemoryInstaller keeps programmed rules in memory, one per device.
// Re-installing an identical (action, match, priority) tuple leaves the
// state untouched, which is the idempotence the callers rely on.
type MemoryInstaller struct {
	mu    sync.RWMutex
	rules map[string]*InstalledRule
	flows map[string][]*domain.FlowSample
}

var _ ports.RuleInstaller = (*MemoryInstaller)(nil)

// NewMemory returns an empty in-memory installer.
func NewMemory() *MemoryInstaller {
	return &MemoryInstaller{
		rules: make(map[string]*InstalledRule),
		flows: make(map[string][]*domain.FlowSample),
	}
}

func (m *MemoryInstaller) Install(ctx context.Context, deviceID string, action domain.PolicyAction, match map[string]string, priority int) error {
	if !action.IsValid() {
		return domain.Validationf("unknown action %q", action)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rules[deviceID]; ok &&
		cur.Action == action && cur.Priority == priority && matchEqual(cur.Match, match) {
		return nil
	}
	m.rules[deviceID] = &InstalledRule{
		DeviceID:  deviceID,
		Action:    action,
		Match:     cloneMatch(match),
		Priority:  priority,
		Installed: time.Now().UTC(),
	}
	return nil
}

func (m *MemoryInstaller) Remove(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, deviceID)
	return nil
}

func (m *MemoryInstaller) QueryFlows(ctx context.Context, switchID string) ([]*domain.FlowSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	flows := m.flows[switchID]
	out := make([]*domain.FlowSample, len(flows))
	copy(out, flows)
	return out, nil
}

func (m *MemoryInstaller) SwitchIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.flows))
	for id := range m.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Rule returns the currently installed rule for a device, if any.
func (m *MemoryInstaller) Rule(deviceID string) (*InstalledRule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[deviceID]
	return r, ok
}

// Rules snapshots all installed rules.
func (m *MemoryInstaller) Rules() []*InstalledRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*InstalledRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// SeedFlows loads flow counters for a switch, for tests and replays.
func (m *MemoryInstaller) SeedFlows(switchID string, flows []*domain.FlowSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[switchID] = flows
}

func matchEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func cloneMatch(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = strings.Clone(v)
	}
	return out
}
