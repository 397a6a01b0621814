// Package ports defines the boundaries between the core services and
// the outside world. Services depend on these interfaces only; the
// adapters provide the implementations.
package ports

import (
	"context"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
)

// IdentityStore is the durable device registry (devices, baselines,
// policies, trust history).
type IdentityStore interface {
	AddDevice(ctx context.Context, d *domain.Device) error
	GetDevice(ctx context.Context, deviceID string) (*domain.Device, error)
	GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error)
	GetDeviceByIP(ctx context.Context, ip string) (*domain.Device, error)
	ListDevices(ctx context.Context) ([]*domain.Device, error)
	UpdateStatus(ctx context.Context, deviceID string, status domain.DeviceStatus) error
	UpdateIP(ctx context.Context, deviceID, ip string) error
	TouchLastSeen(ctx context.Context, deviceID string) error

	SaveBaseline(ctx context.Context, deviceID string, b *domain.Baseline) error
	GetBaseline(ctx context.Context, deviceID string) (*domain.Baseline, error)

	SavePolicy(ctx context.Context, deviceID string, p *domain.DevicePolicy) error
	GetPolicy(ctx context.Context, deviceID string) (*domain.DevicePolicy, error)

	SaveTrust(ctx context.Context, deviceID string, score int, reason string) error
	LoadAllTrust(ctx context.Context) (map[string]int, error)
	TrustHistory(ctx context.Context, deviceID string, limit int) ([]*domain.TrustRecord, error)

	Close() error
}

// PendingStore is the durable admission queue with its audit trail.
type PendingStore interface {
	Enqueue(ctx context.Context, p *domain.PendingDevice) error
	Approve(ctx context.Context, mac, notes, actor string) (*domain.PendingDevice, error)
	Reject(ctx context.Context, mac, notes, actor string) (*domain.PendingDevice, error)
	MarkOnboarded(ctx context.Context, mac string) error
	GetByMAC(ctx context.Context, mac string) (*domain.PendingDevice, error)
	ListPending(ctx context.Context) ([]*domain.PendingDevice, error)
	ListAll(ctx context.Context, status domain.PendingStatus) ([]*domain.PendingDevice, error)
	History(ctx context.Context, mac string, limit int) ([]*domain.HistoryEntry, error)
	Close() error
}

// CertificateAuthority issues and verifies per-device credentials.
type CertificateAuthority interface {
	Issue(ctx context.Context, deviceID, mac string, validity time.Duration) (certPath, keyPath string, err error)
	Verify(ctx context.Context, certPath string) (bool, error)
	Revoke(ctx context.Context, deviceID string) error
	CACertPath() string
}

// RuleInstaller programs the data plane. Implementations must be
// idempotent per (deviceID, action, match, priority).
type RuleInstaller interface {
	Install(ctx context.Context, deviceID string, action domain.PolicyAction, match map[string]string, priority int) error
	Remove(ctx context.Context, deviceID string) error
	QueryFlows(ctx context.Context, switchID string) ([]*domain.FlowSample, error)
	SwitchIDs(ctx context.Context) ([]string, error)
}

// LinkLayerSource yields newly observed station MACs from the access layer.
type LinkLayerSource interface {
	Poll(ctx context.Context) ([]string, error)
}

// HoneypotSource returns structured honeypot events newer than since.
type HoneypotSource interface {
	Events(ctx context.Context, since time.Time) ([]*domain.ThreatRecord, error)
	ActivityBySource(ctx context.Context) (map[string]int, error)
}

// TrustScorer is the trust state machine consumed by listeners and handlers.
type TrustScorer interface {
	Get(deviceID string) int
	Adjust(deviceID string, delta int, reason string) int
	Set(deviceID string, score int, reason string) int
	RegisterListener(l domain.TrustChangeListener)
}

// AlertBroadcaster pushes operator-facing events to live subscribers.
type AlertBroadcaster interface {
	Broadcast(event string, payload any)
}
