// Package session issues short-lived opaque tokens to devices and
// polices the data path with TTLs, rate limits and the maintenance
// window.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/telemetry"
)

const (
	// DefaultTTL is the session idle timeout.
	DefaultTTL = 300 * time.Second

	rateLimitCount  = 60
	rateLimitWindow = 60 * time.Second
)

type session struct {
	token        string
	lastActivity time.Time
}

// Options tune deployment-specific behavior.
type Options struct {
	TTL                   time.Duration
	AllowInsecureAutoAuth bool
	StaticAllowList       []string
	MaintStartHour        int
	MaintEndHour          int
}

// Manager owns all session state: tokens, activity timestamps, the
// per-device packet rate window, and the failed-request ledger.
type Manager struct {
	store   ports.IdentityStore
	pending ports.PendingStore
	opts    Options

	mu        sync.Mutex
	sessions  map[string]*session
	rate      map[string][]time.Time
	allowList map[string]bool
	failed    map[string]*domain.FailedTokenRequest

	now func() time.Time
}

// NewManager builds the session manager.
func NewManager(store ports.IdentityStore, pending ports.PendingStore, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	m := &Manager{
		store:     store,
		pending:   pending,
		opts:      opts,
		sessions:  make(map[string]*session),
		rate:      make(map[string][]time.Time),
		allowList: make(map[string]bool),
		failed:    make(map[string]*domain.FailedTokenRequest),
		now:       time.Now,
	}
	for _, mac := range opts.StaticAllowList {
		if norm := domain.NormalizeMAC(mac); norm != "" {
			m.allowList[norm] = true
		}
	}
	return m
}

// Issue authenticates the device's standing and hands out a fresh
// token. Unknown devices are recorded in the failed-request ledger so
// the operator can authorize them later.
func (m *Manager) Issue(ctx context.Context, deviceID, mac string) (string, error) {
	norm := domain.NormalizeMAC(mac)
	if norm == "" {
		return "", domain.Validationf("malformed MAC %q", mac)
	}
	if deviceID == "" {
		return "", domain.Validationf("device_id is required")
	}

	if reason, ok := m.standing(ctx, deviceID, norm); !ok {
		m.recordFailure(deviceID, norm, reason)
		telemetry.TokensIssued.WithLabelValues("rejected").Inc()
		return "", domain.NewAuthzError(reason)
	}

	token := uuid.NewString()
	m.mu.Lock()
	m.sessions[deviceID] = &session{token: token, lastActivity: m.now()}
	m.mu.Unlock()
	telemetry.TokensIssued.WithLabelValues("issued").Inc()
	slog.Info("session token issued", "device_id", deviceID, "mac", norm)
	return token, nil
}

// standing decides whether the device may hold a session at all.
func (m *Manager) standing(ctx context.Context, deviceID, mac string) (string, bool) {
	device, err := m.store.GetDeviceByMAC(ctx, mac)
	if err == nil {
		switch device.Status {
		case domain.StatusActive:
			return "", true
		case domain.StatusRevoked:
			return domain.ReasonRevoked, false
		default:
			return domain.ReasonUnknownDevice, false
		}
	}
	if !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("identity lookup failed during token issue", "mac", mac, "error", err)
	}

	m.mu.Lock()
	allowed := m.allowList[mac]
	m.mu.Unlock()
	if allowed {
		return "", true
	}

	if entry, err := m.pending.GetByMAC(ctx, mac); err == nil {
		switch entry.Status {
		case domain.PendingStatusApproved:
			return "", true
		case domain.PendingStatusRejected:
			return domain.ReasonRejected, false
		case domain.PendingStatusPending:
			return domain.ReasonPendingApproval, false
		}
	}

	if m.opts.AllowInsecureAutoAuth {
		slog.Warn("insecure auto-auth admitted unknown device", "device_id", deviceID, "mac", mac)
		return "", true
	}
	return domain.ReasonUnknownDevice, false
}

// Authenticate validates the token and refreshes last activity.
func (m *Manager) Authenticate(deviceID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[deviceID]
	if !ok || s.token != token {
		return domain.NewAuthzError(domain.ReasonBadToken)
	}
	if m.now().Sub(s.lastActivity) > m.opts.TTL {
		delete(m.sessions, deviceID)
		return domain.NewAuthzError(domain.ReasonExpiredSession)
	}
	s.lastActivity = m.now()
	return nil
}

// SubmitData runs the full data-path check: maintenance window, token,
// then the sliding-window rate limit.
func (m *Manager) SubmitData(deviceID, token string) error {
	if m.inMaintenanceWindow() {
		return domain.NewAuthzError(domain.ReasonMaintenance)
	}
	if err := m.Authenticate(deviceID, token); err != nil {
		return err
	}
	if !m.allowPacket(deviceID) {
		return domain.NewAuthzError(domain.ReasonRateLimit)
	}
	return nil
}

// allowPacket is a sliding-window limiter, 60 packets per 60 seconds.
func (m *Manager) allowPacket(deviceID string) bool {
	now := m.now()
	cutoff := now.Add(-rateLimitWindow)
	m.mu.Lock()
	defer m.mu.Unlock()
	window := m.rate[deviceID]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rateLimitCount {
		m.rate[deviceID] = kept
		return false
	}
	m.rate[deviceID] = append(kept, now)
	return true
}

func (m *Manager) inMaintenanceWindow() bool {
	start, end := m.opts.MaintStartHour, m.opts.MaintEndHour
	if start == end {
		return false
	}
	hour := m.now().Hour()
	if start < end {
		return hour >= start && hour < end
	}
	// window wraps midnight
	return hour >= start || hour < end
}

// AuthorizeDevice adds a MAC to the static allow-list; the operator
// path for devices stuck in the failed-request ledger.
func (m *Manager) AuthorizeDevice(mac string) error {
	norm := domain.NormalizeMAC(mac)
	if norm == "" {
		return domain.Validationf("malformed MAC %q", mac)
	}
	m.mu.Lock()
	m.allowList[norm] = true
	for id, f := range m.failed {
		if f.MAC == norm {
			delete(m.failed, id)
		}
	}
	m.mu.Unlock()
	slog.Info("device authorized by operator", "mac", norm)
	return nil
}

// FailedRequests snapshots the rejected token request ledger.
func (m *Manager) FailedRequests() []*domain.FailedTokenRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.FailedTokenRequest, 0, len(m.failed))
	for _, f := range m.failed {
		dup := *f
		out = append(out, &dup)
	}
	return out
}

// Drop removes a device's session, rate window and ledger entry.
func (m *Manager) Drop(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, deviceID)
	delete(m.rate, deviceID)
	delete(m.failed, deviceID)
}

// ActiveSessions counts sessions inside their TTL.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if m.now().Sub(s.lastActivity) <= m.opts.TTL {
			n++
		}
	}
	return n
}

func (m *Manager) recordFailure(deviceID, mac, reason string) {
	now := m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.failed[deviceID]; ok {
		f.Count++
		f.Reason = reason
		f.LastSeen = now
		return
	}
	m.failed[deviceID] = &domain.FailedTokenRequest{
		DeviceID:  deviceID,
		MAC:       mac,
		Reason:    reason,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
}
