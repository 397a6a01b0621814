// Package admission watches the link layer for new stations, funnels
// them into the pending queue, and drives onboarding once an operator
// approves.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/core/services/profiler"
	"github.com/ztlan/warden/internal/telemetry"
)

// AttestationRegistrar starts attestation for freshly onboarded devices.
type AttestationRegistrar interface {
	StartDevice(deviceID string)
}

// Service owns the known-set dedup and the onboarding pipeline.
type Service struct {
	sources  []ports.LinkLayerSource
	store    ports.IdentityStore
	pending  ports.PendingStore
	ca       ports.CertificateAuthority
	profiler *profiler.Profiler
	attest   AttestationRegistrar

	mu    sync.Mutex
	known map[string]bool
}

// New wires the admission service. attest may be nil.
func New(sources []ports.LinkLayerSource, store ports.IdentityStore, pending ports.PendingStore,
	authority ports.CertificateAuthority, prof *profiler.Profiler, attest AttestationRegistrar) *Service {
	return &Service{
		sources:  sources,
		store:    store,
		pending:  pending,
		ca:       authority,
		profiler: prof,
		attest:   attest,
		known:    make(map[string]bool),
	}
}

// Hydrate seeds the known-set from both stores so restarts do not
// re-queue devices that were already seen.
func (s *Service) Hydrate(ctx context.Context) error {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return err
	}
	entries, err := s.pending.ListAll(ctx, "")
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, d := range devices {
		s.known[d.MAC] = true
	}
	for _, e := range entries {
		if !e.Status.IsTerminal() || e.Status == domain.PendingStatusOnboarded {
			s.known[e.MAC] = true
		}
	}
	s.mu.Unlock()
	slog.Info("admission known-set hydrated", "devices", len(devices), "pending", len(entries))
	return nil
}

// PollOnce reads every link-layer source and queues unseen MACs.
func (s *Service) PollOnce(ctx context.Context) {
	for _, src := range s.sources {
		macs, err := src.Poll(ctx)
		if err != nil {
			slog.Warn("link-layer poll failed", "error", err)
			continue
		}
		for _, mac := range macs {
			s.Observe(ctx, mac)
		}
	}
}

// Observe handles a single candidate MAC. Known MACs are ignored;
// unseen ones are queued for the operator.
func (s *Service) Observe(ctx context.Context, mac string) {
	norm := domain.NormalizeMAC(mac)
	if norm == "" {
		return
	}
	s.mu.Lock()
	if s.known[norm] {
		s.mu.Unlock()
		return
	}
	s.known[norm] = true
	s.mu.Unlock()

	deviceID, err := domain.GenerateDeviceID(norm, func(id string) bool {
		if _, err := s.store.GetDevice(ctx, id); err == nil {
			return true
		}
		return false
	})
	if err != nil {
		slog.Warn("device id generation failed", "mac", norm, "error", err)
		return
	}

	entry, err := domain.NewPendingDevice(norm, deviceID, "", "")
	if err != nil {
		slog.Warn("pending entry rejected", "mac", norm, "error", err)
		return
	}
	if err := s.pending.Enqueue(ctx, entry); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			slog.Warn("pending enqueue failed", "mac", norm, "error", err)
		}
		return
	}
	telemetry.PendingDevices.Inc()
	slog.Info("new device queued for admission", "mac", norm, "device_id", deviceID)
}

// Approve decides an entry and runs the onboarding pipeline:
// credential issue, identity insert, profiling start, attestation
// registration, queue finalization. Approving an onboarded row is an
// idempotent success.
func (s *Service) Approve(ctx context.Context, mac, notes, actor string) (*domain.Device, error) {
	entry, err := s.pending.Approve(ctx, mac, notes, actor)
	if err != nil {
		return nil, err
	}
	switch entry.Status {
	case domain.PendingStatusOnboarded:
		return s.store.GetDeviceByMAC(ctx, entry.MAC)
	case domain.PendingStatusRejected:
		return nil, domain.NewAuthzError(domain.ReasonRejected)
	case domain.PendingStatusApproved:
		// continue below
	default:
		return nil, fmt.Errorf("%w: unexpected queue state %s", domain.ErrConflict, entry.Status)
	}

	device, err := s.onboard(ctx, entry.MAC, entry.DeviceID, entry.DeviceType, entry.DeviceInfo)
	if err != nil {
		return nil, err
	}
	if err := s.pending.MarkOnboarded(ctx, entry.MAC); err != nil {
		return nil, err
	}
	telemetry.PendingDevices.Dec()
	return device, nil
}

// Reject terminally declines an entry; no identity artifacts are created.
func (s *Service) Reject(ctx context.Context, mac, notes, actor string) (*domain.PendingDevice, error) {
	entry, err := s.pending.Reject(ctx, mac, notes, actor)
	if err != nil {
		return nil, err
	}
	if entry.Status == domain.PendingStatusRejected {
		telemetry.PendingDevices.Dec()
	}
	return entry, nil
}

// Onboard is the direct operator path: it bypasses the queue and
// creates identity artifacts immediately.
func (s *Service) Onboard(ctx context.Context, mac, deviceID, deviceType, deviceInfo string) (*domain.Device, error) {
	norm := domain.NormalizeMAC(mac)
	if norm == "" {
		return nil, domain.Validationf("malformed MAC %q", mac)
	}
	if deviceID == "" {
		var err error
		deviceID, err = domain.GenerateDeviceID(norm, func(id string) bool {
			_, err := s.store.GetDevice(ctx, id)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
	}
	device, err := s.onboard(ctx, norm, deviceID, deviceType, deviceInfo)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.known[norm] = true
	s.mu.Unlock()
	return device, nil
}

func (s *Service) onboard(ctx context.Context, mac, deviceID, deviceType, deviceInfo string) (*domain.Device, error) {
	certPath, keyPath, err := s.ca.Issue(ctx, deviceID, mac, 0)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}
	device, err := domain.NewDevice(deviceID, mac, certPath, keyPath, deviceType, deviceInfo, "")
	if err != nil {
		return nil, err
	}
	if err := s.store.AddDevice(ctx, device); err != nil {
		return nil, err
	}
	s.profiler.Begin(deviceID)
	if s.attest != nil {
		s.attest.StartDevice(deviceID)
	}
	telemetry.DevicesOnboarded.WithLabelValues(orUnknown(deviceType)).Inc()
	slog.Info("device onboarded", "device_id", deviceID, "mac", mac)
	return device, nil
}

// Revoke deletes a device's credential and marks it revoked. Revoking
// an already revoked device is a no-op.
func (s *Service) Revoke(ctx context.Context, deviceID string) error {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	if device.Status == domain.StatusRevoked {
		return nil
	}
	if err := s.ca.Revoke(ctx, deviceID); err != nil {
		return err
	}
	return s.store.UpdateStatus(ctx, deviceID, domain.StatusRevoked)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
