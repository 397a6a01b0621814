package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

type fakeIdentity struct {
	ports.IdentityStore
	devices map[string]*domain.Device
}

func (f *fakeIdentity) GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	d, ok := f.devices[mac]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

type fakePending struct {
	ports.PendingStore
	entries map[string]*domain.PendingDevice
}

func (f *fakePending) GetByMAC(ctx context.Context, mac string) (*domain.PendingDevice, error) {
	e, ok := f.entries[mac]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func newManager(opts Options) (*Manager, *fakeIdentity, *fakePending) {
	ident := &fakeIdentity{devices: make(map[string]*domain.Device)}
	pending := &fakePending{entries: make(map[string]*domain.PendingDevice)}
	return NewManager(ident, pending, opts), ident, pending
}

const (
	devID  = "DEV_AA_BB_CC_TEST01"
	devMAC = "AA:BB:CC:DD:EE:FF"
)

func activeDevice() *domain.Device {
	return &domain.Device{DeviceID: devID, MAC: devMAC, Status: domain.StatusActive}
}

func TestManager_IssueForActiveDevice(t *testing.T) {
	m, ident, _ := newManager(Options{})
	ident.devices[devMAC] = activeDevice()

	token, err := m.Issue(context.Background(), devID, devMAC)
	require.NoError(t, err)
	assert.Len(t, token, 36)
	assert.Equal(t, 1, m.ActiveSessions())

	require.NoError(t, m.Authenticate(devID, token))
}

func TestManager_IssueRejectionsAndLedger(t *testing.T) {
	m, ident, pending := newManager(Options{})

	// Unknown device.
	_, err := m.Issue(context.Background(), devID, devMAC)
	reason, ok := domain.IsAuthz(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonUnknownDevice, reason)

	// Revoked device.
	revoked := activeDevice()
	revoked.Status = domain.StatusRevoked
	ident.devices[devMAC] = revoked
	_, err = m.Issue(context.Background(), devID, devMAC)
	reason, _ = domain.IsAuthz(err)
	assert.Equal(t, domain.ReasonRevoked, reason)

	// Rejected queue entry.
	delete(ident.devices, devMAC)
	pending.entries[devMAC] = &domain.PendingDevice{MAC: devMAC, Status: domain.PendingStatusRejected}
	_, err = m.Issue(context.Background(), devID, devMAC)
	reason, _ = domain.IsAuthz(err)
	assert.Equal(t, domain.ReasonRejected, reason)

	// Still pending.
	pending.entries[devMAC].Status = domain.PendingStatusPending
	_, err = m.Issue(context.Background(), devID, devMAC)
	reason, _ = domain.IsAuthz(err)
	assert.Equal(t, domain.ReasonPendingApproval, reason)

	failed := m.FailedRequests()
	require.Len(t, failed, 1)
	assert.Equal(t, 4, failed[0].Count)
	assert.Equal(t, domain.ReasonPendingApproval, failed[0].Reason)
}

func TestManager_ApprovedQueueEntryMayHoldSession(t *testing.T) {
	m, _, pending := newManager(Options{})
	pending.entries[devMAC] = &domain.PendingDevice{MAC: devMAC, Status: domain.PendingStatusApproved}

	_, err := m.Issue(context.Background(), devID, devMAC)
	assert.NoError(t, err)
}

func TestManager_InsecureAutoAuth(t *testing.T) {
	m, _, _ := newManager(Options{AllowInsecureAutoAuth: true})
	_, err := m.Issue(context.Background(), devID, devMAC)
	assert.NoError(t, err)
}

func TestManager_AuthorizeDeviceClearsLedger(t *testing.T) {
	m, _, _ := newManager(Options{})
	_, err := m.Issue(context.Background(), devID, devMAC)
	require.Error(t, err)
	require.Len(t, m.FailedRequests(), 1)

	require.NoError(t, m.AuthorizeDevice(devMAC))
	assert.Empty(t, m.FailedRequests())

	_, err = m.Issue(context.Background(), devID, devMAC)
	assert.NoError(t, err)
}

func TestManager_TokenExpiry(t *testing.T) {
	m, ident, _ := newManager(Options{TTL: 300 * time.Second})
	ident.devices[devMAC] = activeDevice()

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	token, err := m.Issue(context.Background(), devID, devMAC)
	require.NoError(t, err)

	// Activity refreshes the idle clock.
	m.now = func() time.Time { return base.Add(200 * time.Second) }
	require.NoError(t, m.Authenticate(devID, token))

	m.now = func() time.Time { return base.Add(501 * time.Second) }
	err = m.Authenticate(devID, token)
	reason, ok := domain.IsAuthz(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonExpiredSession, reason)

	// The session is gone, not just stale.
	err = m.Authenticate(devID, token)
	reason, _ = domain.IsAuthz(err)
	assert.Equal(t, domain.ReasonBadToken, reason)
}

func TestManager_BadToken(t *testing.T) {
	m, ident, _ := newManager(Options{})
	ident.devices[devMAC] = activeDevice()
	_, err := m.Issue(context.Background(), devID, devMAC)
	require.NoError(t, err)

	err = m.Authenticate(devID, "wrong")
	reason, ok := domain.IsAuthz(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonBadToken, reason)
}

func TestManager_RateLimitRejectsSixtyFirstPacket(t *testing.T) {
	m, ident, _ := newManager(Options{})
	ident.devices[devMAC] = activeDevice()

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	token, err := m.Issue(context.Background(), devID, devMAC)
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		require.NoError(t, m.SubmitData(devID, token), "packet %d", i+1)
	}
	err = m.SubmitData(devID, token)
	reason, ok := domain.IsAuthz(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonRateLimit, reason)

	// Once the window slides past, submissions flow again.
	m.now = func() time.Time { return base.Add(61 * time.Second) }
	assert.NoError(t, m.SubmitData(devID, token))
}

func TestManager_MaintenanceWindow(t *testing.T) {
	m, ident, _ := newManager(Options{TTL: 24 * time.Hour, MaintStartHour: 2, MaintEndHour: 3})
	ident.devices[devMAC] = activeDevice()

	m.now = func() time.Time { return time.Date(2026, 8, 24, 1, 59, 0, 0, time.UTC) }
	token, err := m.Issue(context.Background(), devID, devMAC)
	require.NoError(t, err)
	require.NoError(t, m.SubmitData(devID, token))

	m.now = func() time.Time { return time.Date(2026, 8, 24, 2, 30, 0, 0, time.UTC) }
	err = m.SubmitData(devID, token)
	reason, ok := domain.IsAuthz(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonMaintenance, reason)

	m.now = func() time.Time { return time.Date(2026, 8, 24, 3, 0, 0, 0, time.UTC) }
	assert.NoError(t, m.SubmitData(devID, token))
}

func TestManager_MaintenanceWindowWrapsMidnight(t *testing.T) {
	m, ident, _ := newManager(Options{TTL: 48 * time.Hour, MaintStartHour: 23, MaintEndHour: 1})
	ident.devices[devMAC] = activeDevice()

	m.now = func() time.Time { return time.Date(2026, 8, 24, 22, 0, 0, 0, time.UTC) }
	token, err := m.Issue(context.Background(), devID, devMAC)
	require.NoError(t, err)

	for hour, blocked := range map[int]bool{22: false, 23: true, 0: true, 1: false} {
		m.now = func() time.Time { return time.Date(2026, 8, 25, hour, 15, 0, 0, time.UTC) }
		err := m.SubmitData(devID, token)
		if blocked {
			reason, _ := domain.IsAuthz(err)
			assert.Equal(t, domain.ReasonMaintenance, reason, "hour %d", hour)
		} else {
			assert.NoError(t, err, "hour %d", hour)
		}
	}
}

func TestManager_MalformedInputs(t *testing.T) {
	m, _, _ := newManager(Options{})
	_, err := m.Issue(context.Background(), devID, "nope")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = m.Issue(context.Background(), "", devMAC)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestManager_Drop(t *testing.T) {
	m, ident, _ := newManager(Options{})
	ident.devices[devMAC] = activeDevice()
	token, err := m.Issue(context.Background(), devID, devMAC)
	require.NoError(t, err)

	m.Drop(devID)
	err = m.Authenticate(devID, token)
	reason, _ := domain.IsAuthz(err)
	assert.Equal(t, domain.ReasonBadToken, reason)
}
