package attestation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

const devID = "DEV_AA_BB_CC_TEST01"

type fakeStore struct {
	ports.IdentityStore
	devices map[string]*domain.Device
}

func (f *fakeStore) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	d, ok := f.devices[deviceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	out := make([]*domain.Device, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, d)
	}
	return out, nil
}

type fakeCA struct {
	ports.CertificateAuthority
	valid bool
}

func (f *fakeCA) Verify(ctx context.Context, certPath string) (bool, error) {
	return f.valid, nil
}

type fakeTrust struct {
	failures  []string
	positives []string
}

func (f *fakeTrust) RecordAttestationFailure(deviceID string) int {
	f.failures = append(f.failures, deviceID)
	return 50
}

func (f *fakeTrust) RecordPositiveBehavior(deviceID string) int {
	f.positives = append(f.positives, deviceID)
	return 72
}

func storeWith(status domain.DeviceStatus, certPath string) *fakeStore {
	return &fakeStore{devices: map[string]*domain.Device{
		devID: {DeviceID: devID, MAC: "AA:BB:CC:DD:EE:FF", Status: status, CertPath: certPath, KeyPath: "k"},
	}}
}

func TestScheduler_PassWhenCredentialAndHeartbeatFresh(t *testing.T) {
	trust := &fakeTrust{}
	s := New(storeWith(domain.StatusActive, "cert.pem"), &fakeCA{valid: true}, trust, 300*time.Second)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.StartDevice(devID)
	s.RecordHeartbeat(devID)

	s.now = func() time.Time { return base.Add(400 * time.Second) }
	s.TickAll(context.Background())

	out, ok := s.LastOutcome(devID)
	require.True(t, ok)
	assert.True(t, out.Passed)
	assert.True(t, out.CredentialOK)
	assert.True(t, out.HeartbeatOK)
	assert.Empty(t, trust.failures)
	assert.Equal(t, []string{devID}, trust.positives)
}

func TestScheduler_StaleHeartbeatFails(t *testing.T) {
	trust := &fakeTrust{}
	s := New(storeWith(domain.StatusActive, "cert.pem"), &fakeCA{valid: true}, trust, 300*time.Second)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.StartDevice(devID)
	s.RecordHeartbeat(devID)

	// Past twice the interval.
	s.now = func() time.Time { return base.Add(601 * time.Second) }
	s.TickAll(context.Background())

	out, _ := s.LastOutcome(devID)
	assert.False(t, out.Passed)
	assert.True(t, out.CredentialOK)
	assert.False(t, out.HeartbeatOK)
	assert.Equal(t, []string{devID}, trust.failures)
}

func TestScheduler_MissingHeartbeatFails(t *testing.T) {
	trust := &fakeTrust{}
	s := New(storeWith(domain.StatusActive, "cert.pem"), &fakeCA{valid: true}, trust, 300*time.Second)
	s.StartDevice(devID)
	s.TickAll(context.Background())

	out, _ := s.LastOutcome(devID)
	assert.False(t, out.Passed)
	assert.False(t, out.HeartbeatOK)
}

func TestScheduler_BadCredentialFails(t *testing.T) {
	trust := &fakeTrust{}
	s := New(storeWith(domain.StatusActive, "cert.pem"), &fakeCA{valid: false}, trust, 300*time.Second)
	s.StartDevice(devID)
	s.RecordHeartbeat(devID)
	s.TickAll(context.Background())

	out, _ := s.LastOutcome(devID)
	assert.False(t, out.Passed)
	assert.False(t, out.CredentialOK)
	assert.True(t, out.HeartbeatOK)
}

func TestScheduler_RevokedDeviceDropsOut(t *testing.T) {
	trust := &fakeTrust{}
	s := New(storeWith(domain.StatusRevoked, "cert.pem"), &fakeCA{valid: true}, trust, 300*time.Second)
	s.StartDevice(devID)
	s.TickAll(context.Background())

	_, ok := s.LastOutcome(devID)
	assert.False(t, ok)
	assert.Empty(t, trust.failures)
}

func TestScheduler_StartAllRegistersStoreDevices(t *testing.T) {
	trust := &fakeTrust{}
	s := New(storeWith(domain.StatusActive, "cert.pem"), &fakeCA{valid: true}, trust, 300*time.Second)
	require.NoError(t, s.StartAll(context.Background()))
	s.RecordHeartbeat(devID)
	s.TickAll(context.Background())

	_, ok := s.LastOutcome(devID)
	assert.True(t, ok)
}
