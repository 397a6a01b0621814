package policy

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

type fakeStore struct {
	ports.IdentityStore
	devices  map[string]*domain.Device
	policies map[string]*domain.DevicePolicy
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices:  make(map[string]*domain.Device),
		policies: make(map[string]*domain.DevicePolicy),
	}
}

func (f *fakeStore) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	d, ok := f.devices[deviceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) SavePolicy(ctx context.Context, deviceID string, p *domain.DevicePolicy) error {
	f.policies[deviceID] = p
	return nil
}

type install struct {
	deviceID string
	action   domain.PolicyAction
	match    map[string]string
	priority int
}

type fakeInstaller struct {
	ports.RuleInstaller
	mu       sync.Mutex
	installs []install
}

func (f *fakeInstaller) Install(ctx context.Context, deviceID string, action domain.PolicyAction, match map[string]string, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs = append(f.installs, install{deviceID, action, match, priority})
	return nil
}

const devID = "DEV_AA_BB_CC_TEST01"

func seededStore() *fakeStore {
	store := newFakeStore()
	store.devices[devID] = &domain.Device{DeviceID: devID, MAC: "AA:BB:CC:DD:EE:FF", Status: domain.StatusActive}
	return store
}

func TestAdapter_ActsOnBucketChange(t *testing.T) {
	installer := &fakeInstaller{}
	a := NewAdapter(seededStore(), installer, nil)

	a.OnTrustChange(devID, 70, 40, "behavioral_anomaly_high")

	require.Len(t, installer.installs, 1)
	got := installer.installs[0]
	assert.Equal(t, domain.ActionDeny, got.action)
	assert.Equal(t, map[string]string{domain.MatchEthSrc: "AA:BB:CC:DD:EE:FF"}, got.match)

	h := a.History(devID)
	require.Len(t, h, 1)
	assert.Equal(t, domain.TrustSuspicious, h[0].Level)
}

func TestAdapter_ActsOnLargeDeltaWithinBucket(t *testing.T) {
	installer := &fakeInstaller{}
	a := NewAdapter(seededStore(), installer, nil)

	// 95 -> 82 stays trusted but moves 13 points.
	a.OnTrustChange(devID, 95, 82, "security_alert_low")
	require.Len(t, installer.installs, 1)
	assert.Equal(t, domain.ActionAllow, installer.installs[0].action)
}

func TestAdapter_IgnoresSmallMoveWithinBucket(t *testing.T) {
	installer := &fakeInstaller{}
	a := NewAdapter(seededStore(), installer, nil)

	a.OnTrustChange(devID, 80, 75, "positive_behavior")
	assert.Empty(t, installer.installs)
	assert.Empty(t, a.History(devID))
}

func TestAdapter_QuarantinesUntrusted(t *testing.T) {
	installer := &fakeInstaller{}
	a := NewAdapter(seededStore(), installer, nil)

	a.OnTrustChange(devID, 40, 0, "security_alert_high")
	require.Len(t, installer.installs, 1)
	assert.Equal(t, domain.ActionQuarantine, installer.installs[0].action)
}

func TestAdapter_ToggleDisablesCascade(t *testing.T) {
	installer := &fakeInstaller{}
	toggles := NewToggles(ToggleTrustCascade)
	a := NewAdapter(seededStore(), installer, toggles)

	_, err := toggles.Flip(ToggleTrustCascade)
	require.NoError(t, err)

	a.OnTrustChange(devID, 70, 0, "security_alert_high")
	assert.Empty(t, installer.installs)
}

func TestAdapter_SweepRepairsDrift(t *testing.T) {
	installer := &fakeInstaller{}
	a := NewAdapter(seededStore(), installer, nil)

	a.SweepOnce(context.Background(), map[string]int{devID: 20})
	require.Len(t, installer.installs, 1)
	assert.Equal(t, domain.ActionQuarantine, installer.installs[0].action)

	h := a.History(devID)
	require.Len(t, h, 1)
	assert.Equal(t, "policy_sweep", h[0].Reason)
}

func TestAdapter_UnknownDeviceSkipped(t *testing.T) {
	installer := &fakeInstaller{}
	a := NewAdapter(newFakeStore(), installer, nil)

	a.OnTrustChange("DEV_00_00_00_GHOST1", 70, 0, "security_alert_high")
	assert.Empty(t, installer.installs)
}

func TestToggles(t *testing.T) {
	tg := NewToggles(ToggleTrustCascade, ToggleOrchestrator)

	assert.True(t, tg.Enabled(ToggleTrustCascade))
	assert.True(t, tg.Enabled("never_registered"))

	on, err := tg.Flip(ToggleOrchestrator)
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, tg.Enabled(ToggleOrchestrator))

	_, err = tg.Flip("bogus")
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, map[string]bool{
		ToggleTrustCascade: true,
		ToggleOrchestrator: false,
	}, tg.List())
}
