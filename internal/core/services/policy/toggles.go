package policy

import (
	"sync"

	"github.com/ztlan/warden/internal/core/domain"
)

// Named enforcement features the operator can flip at runtime.
const (
	ToggleTrustCascade = "trust_cascade"
	ToggleOrchestrator = "orchestrator"
	TogglePolicySweep  = "policy_sweep"
)

// Toggles is the runtime on/off switchboard for enforcement features.
// Everything starts enabled.
type Toggles struct {
	mu sync.RWMutex
	m  map[string]bool
}

// NewToggles registers the named features, all enabled.
func NewToggles(names ...string) *Toggles {
	t := &Toggles{m: make(map[string]bool, len(names))}
	for _, n := range names {
		t.m[n] = true
	}
	return t
}

// Enabled reports the feature state; unregistered names read as enabled.
func (t *Toggles) Enabled(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[name]
	return !ok || v
}

// Flip toggles a registered feature and returns its new state.
func (t *Toggles) Flip(name string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.m[name]
	if !ok {
		return false, domain.Validationf("unknown policy %q", name)
	}
	t.m[name] = !v
	return !v, nil
}

// List snapshots all feature states.
func (t *Toggles) List() map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]bool, len(t.m))
	for k, v := range t.m {
		out[k] = v
	}
	return out
}
