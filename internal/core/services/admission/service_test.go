package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/core/services/profiler"
)

const testMAC = "AA:BB:CC:DD:EE:FF"

type fakeIdentity struct {
	ports.IdentityStore
	devices map[string]*domain.Device
	byMAC   map[string]*domain.Device
	status  map[string]domain.DeviceStatus
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		devices: make(map[string]*domain.Device),
		byMAC:   make(map[string]*domain.Device),
		status:  make(map[string]domain.DeviceStatus),
	}
}

func (f *fakeIdentity) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	out := make([]*domain.Device, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeIdentity) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	d, ok := f.devices[deviceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeIdentity) GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	d, ok := f.byMAC[mac]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeIdentity) AddDevice(ctx context.Context, d *domain.Device) error {
	if _, ok := f.byMAC[d.MAC]; ok {
		return domain.ErrConflict
	}
	f.devices[d.DeviceID] = d
	f.byMAC[d.MAC] = d
	return nil
}

func (f *fakeIdentity) UpdateStatus(ctx context.Context, deviceID string, status domain.DeviceStatus) error {
	d, ok := f.devices[deviceID]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	f.status[deviceID] = status
	return nil
}

type fakePending struct {
	ports.PendingStore
	entries map[string]*domain.PendingDevice
}

func newFakePending() *fakePending {
	return &fakePending{entries: make(map[string]*domain.PendingDevice)}
}

func (f *fakePending) ListAll(ctx context.Context, status domain.PendingStatus) ([]*domain.PendingDevice, error) {
	out := make([]*domain.PendingDevice, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakePending) Enqueue(ctx context.Context, entry *domain.PendingDevice) error {
	if _, ok := f.entries[entry.MAC]; ok {
		return domain.ErrConflict
	}
	f.entries[entry.MAC] = entry
	return nil
}

func (f *fakePending) Approve(ctx context.Context, mac, notes, actor string) (*domain.PendingDevice, error) {
	e, ok := f.entries[mac]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if e.Status == domain.PendingStatusPending {
		e.Status = domain.PendingStatusApproved
	}
	return e, nil
}

func (f *fakePending) Reject(ctx context.Context, mac, notes, actor string) (*domain.PendingDevice, error) {
	e, ok := f.entries[mac]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.Status = domain.PendingStatusRejected
	return e, nil
}

func (f *fakePending) MarkOnboarded(ctx context.Context, mac string) error {
	e, ok := f.entries[mac]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = domain.PendingStatusOnboarded
	return nil
}

type fakeCA struct {
	ports.CertificateAuthority
	issued  []string
	revoked []string
}

func (f *fakeCA) Issue(ctx context.Context, deviceID, mac string, validity time.Duration) (string, string, error) {
	f.issued = append(f.issued, deviceID)
	return "/tmp/" + deviceID + ".crt", "/tmp/" + deviceID + ".key", nil
}

func (f *fakeCA) Revoke(ctx context.Context, deviceID string) error {
	f.revoked = append(f.revoked, deviceID)
	return nil
}

type fakeAttest struct {
	started []string
}

func (f *fakeAttest) StartDevice(deviceID string) { f.started = append(f.started, deviceID) }

type fakeBaselineStore struct {
	ports.IdentityStore
}

func (f *fakeBaselineStore) SaveBaseline(ctx context.Context, deviceID string, b *domain.Baseline) error {
	return nil
}

func newService(ident *fakeIdentity, pending *fakePending, ca *fakeCA, attest *fakeAttest) *Service {
	prof := profiler.New(&fakeBaselineStore{}, 0)
	var registrar AttestationRegistrar
	if attest != nil {
		registrar = attest
	}
	return New(nil, ident, pending, ca, prof, registrar)
}

func TestService_ObserveQueuesUnseenMAC(t *testing.T) {
	pending := newFakePending()
	s := newService(newFakeIdentity(), pending, &fakeCA{}, nil)

	s.Observe(context.Background(), "aa-bb-cc-dd-ee-ff")
	require.Len(t, pending.entries, 1)

	e := pending.entries[testMAC]
	require.NotNil(t, e)
	assert.Equal(t, domain.PendingStatusPending, e.Status)
	assert.True(t, domain.IsValidDeviceID(e.DeviceID))

	// Second sighting is a dedup hit.
	s.Observe(context.Background(), testMAC)
	assert.Len(t, pending.entries, 1)
}

func TestService_ObserveIgnoresMalformedMAC(t *testing.T) {
	pending := newFakePending()
	s := newService(newFakeIdentity(), pending, &fakeCA{}, nil)
	s.Observe(context.Background(), "not-a-mac")
	assert.Empty(t, pending.entries)
}

func TestService_HydrateSuppressesKnownMACs(t *testing.T) {
	ident := newFakeIdentity()
	ident.byMAC[testMAC] = &domain.Device{DeviceID: "DEV_AA_BB_CC_EXIST1", MAC: testMAC}
	ident.devices["DEV_AA_BB_CC_EXIST1"] = ident.byMAC[testMAC]

	pending := newFakePending()
	s := newService(ident, pending, &fakeCA{}, nil)
	require.NoError(t, s.Hydrate(context.Background()))

	s.Observe(context.Background(), testMAC)
	assert.Empty(t, pending.entries)
}

func TestService_ApproveRunsOnboardingPipeline(t *testing.T) {
	ident := newFakeIdentity()
	pending := newFakePending()
	ca := &fakeCA{}
	attest := &fakeAttest{}
	s := newService(ident, pending, ca, attest)

	s.Observe(context.Background(), testMAC)

	device, err := s.Approve(context.Background(), testMAC, "lab sensor", "alice")
	require.NoError(t, err)

	assert.Equal(t, testMAC, device.MAC)
	assert.Equal(t, domain.StatusActive, device.Status)
	assert.NotEmpty(t, device.CertPath)
	assert.Equal(t, []string{device.DeviceID}, ca.issued)
	assert.Equal(t, []string{device.DeviceID}, attest.started)
	assert.Equal(t, domain.PendingStatusOnboarded, pending.entries[testMAC].Status)

	stored, err := ident.GetDeviceByMAC(context.Background(), testMAC)
	require.NoError(t, err)
	assert.Equal(t, device.DeviceID, stored.DeviceID)
}

func TestService_ApproveOnboardedRowIsIdempotent(t *testing.T) {
	ident := newFakeIdentity()
	pending := newFakePending()
	ca := &fakeCA{}
	s := newService(ident, pending, ca, nil)

	s.Observe(context.Background(), testMAC)
	first, err := s.Approve(context.Background(), testMAC, "", "alice")
	require.NoError(t, err)

	second, err := s.Approve(context.Background(), testMAC, "", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.DeviceID, second.DeviceID)
	// No second credential was minted.
	assert.Len(t, ca.issued, 1)
}

func TestService_ApproveRejectedRowFails(t *testing.T) {
	pending := newFakePending()
	pending.entries[testMAC] = &domain.PendingDevice{MAC: testMAC, DeviceID: "DEV_AA_BB_CC_TEST01", Status: domain.PendingStatusRejected}
	s := newService(newFakeIdentity(), pending, &fakeCA{}, nil)

	_, err := s.Approve(context.Background(), testMAC, "", "alice")
	var authz *domain.AuthzError
	require.ErrorAs(t, err, &authz)
	assert.Equal(t, domain.ReasonRejected, authz.Reason)
}

func TestService_Reject(t *testing.T) {
	ident := newFakeIdentity()
	pending := newFakePending()
	ca := &fakeCA{}
	s := newService(ident, pending, ca, nil)

	s.Observe(context.Background(), testMAC)
	entry, err := s.Reject(context.Background(), testMAC, "unrecognized vendor", "alice")
	require.NoError(t, err)

	assert.Equal(t, domain.PendingStatusRejected, entry.Status)
	assert.Empty(t, ca.issued)
	assert.Empty(t, ident.devices)
}

func TestService_OnboardDirectPath(t *testing.T) {
	ident := newFakeIdentity()
	pending := newFakePending()
	s := newService(ident, pending, &fakeCA{}, nil)

	device, err := s.Onboard(context.Background(), testMAC, "", "camera", "front door")
	require.NoError(t, err)
	assert.Equal(t, "camera", device.DeviceType)
	assert.True(t, domain.IsValidDeviceID(device.DeviceID))

	// Direct onboarding marks the MAC known; the poller must not re-queue it.
	s.Observe(context.Background(), testMAC)
	assert.Empty(t, pending.entries)
}

func TestService_OnboardMalformedMAC(t *testing.T) {
	s := newService(newFakeIdentity(), newFakePending(), &fakeCA{}, nil)
	_, err := s.Onboard(context.Background(), "zz:zz", "", "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_RevokeIsIdempotent(t *testing.T) {
	ident := newFakeIdentity()
	ca := &fakeCA{}
	s := newService(ident, newFakePending(), ca, nil)

	device, err := s.Onboard(context.Background(), testMAC, "", "", "")
	require.NoError(t, err)

	require.NoError(t, s.Revoke(context.Background(), device.DeviceID))
	assert.Equal(t, domain.StatusRevoked, ident.devices[device.DeviceID].Status)
	assert.Equal(t, []string{device.DeviceID}, ca.revoked)

	require.NoError(t, s.Revoke(context.Background(), device.DeviceID))
	assert.Len(t, ca.revoked, 1)
}

func TestService_RevokeUnknownDevice(t *testing.T) {
	s := newService(newFakeIdentity(), newFakePending(), &fakeCA{}, nil)
	err := s.Revoke(context.Background(), "DEV_00_00_00_GHOST1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
