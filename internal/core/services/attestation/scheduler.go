// Package attestation periodically re-verifies device credentials and
// heartbeat freshness.
package attestation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

// DefaultInterval is the per-device attestation cadence.
const DefaultInterval = 300 * time.Second

// TrustSink receives attestation outcomes.
type TrustSink interface {
	RecordAttestationFailure(deviceID string) int
	RecordPositiveBehavior(deviceID string) int
}

// Outcome is the recorded result of one attestation tick.
type Outcome struct {
	DeviceID      string    `json:"device_id"`
	CredentialOK  bool      `json:"credential_ok"`
	HeartbeatOK   bool      `json:"heartbeat_ok"`
	Passed        bool      `json:"passed"`
	CheckedAt     time.Time `json:"checked_at"`
	LastHeartbeat time.Time `json:"last_heartbeat,omitempty"`
}

// Scheduler tracks heartbeats and runs the two attestation checks.
type Scheduler struct {
	store    ports.IdentityStore
	ca       ports.CertificateAuthority
	trust    TrustSink
	interval time.Duration

	mu         sync.Mutex
	heartbeats map[string]time.Time
	registered map[string]bool
	outcomes   map[string]*Outcome

	now func() time.Time
}

// New builds a scheduler with the given tick interval.
func New(store ports.IdentityStore, ca ports.CertificateAuthority, trust TrustSink, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store:      store,
		ca:         ca,
		trust:      trust,
		interval:   interval,
		heartbeats: make(map[string]time.Time),
		registered: make(map[string]bool),
		outcomes:   make(map[string]*Outcome),
		now:        time.Now,
	}
}

// StartDevice begins attesting a device; newly admitted devices are
// registered here by the admission path.
func (s *Scheduler) StartDevice(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[deviceID] = true
}

// StopDevice removes a device from the attestation set.
func (s *Scheduler) StopDevice(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registered, deviceID)
	delete(s.heartbeats, deviceID)
	delete(s.outcomes, deviceID)
}

// StartAll registers every device currently in the identity store.
func (s *Scheduler) StartAll(ctx context.Context) error {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, d := range devices {
		s.registered[d.DeviceID] = true
	}
	s.mu.Unlock()
	slog.Info("attestation started", "devices", len(devices))
	return nil
}

// RecordHeartbeat notes device liveness; called from the data path.
func (s *Scheduler) RecordHeartbeat(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats[deviceID] = s.now()
}

// TickAll attests every registered device once.
func (s *Scheduler) TickAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.registered))
	for id := range s.registered {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		s.tick(ctx, id)
	}
}

func (s *Scheduler) tick(ctx context.Context, deviceID string) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		slog.Warn("attestation skipped, device lookup failed", "device_id", deviceID, "error", err)
		return
	}
	if device.Status == domain.StatusRevoked {
		s.StopDevice(deviceID)
		return
	}

	credOK := false
	if device.HasCredential() {
		ok, err := s.ca.Verify(ctx, device.CertPath)
		if err != nil {
			slog.Warn("credential verification errored", "device_id", deviceID, "error", err)
		}
		credOK = ok && err == nil
	}

	s.mu.Lock()
	last, hasBeat := s.heartbeats[deviceID]
	s.mu.Unlock()
	beatOK := hasBeat && s.now().Sub(last) < 2*s.interval

	outcome := &Outcome{
		DeviceID:      deviceID,
		CredentialOK:  credOK,
		HeartbeatOK:   beatOK,
		Passed:        credOK && beatOK,
		CheckedAt:     s.now().UTC(),
		LastHeartbeat: last,
	}
	s.mu.Lock()
	s.outcomes[deviceID] = outcome
	s.mu.Unlock()

	if outcome.Passed {
		s.trust.RecordPositiveBehavior(deviceID)
	} else {
		newScore := s.trust.RecordAttestationFailure(deviceID)
		slog.Warn("attestation failed", "device_id", deviceID,
			"credential_ok", credOK, "heartbeat_ok", beatOK, "trust", newScore)
	}
}

// LastOutcome returns the most recent attestation result for a device.
func (s *Scheduler) LastOutcome(deviceID string) (*Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[deviceID]
	return o, ok
}
