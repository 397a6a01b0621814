// Package flowstats aggregates data-plane flow counters into per-device
// rolling windows.
package flowstats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/telemetry"
)

// UnknownMACFunc is called for flows whose source MAC resolves to no
// known device; the admission path decides what to do with it.
type UnknownMACFunc func(mac string)

// Aggregator pulls flow counters and keeps the last 100 samples per
// device. Unknown-MAC flows are never attributed; they are handed to
// the admission callback and dropped.
type Aggregator struct {
	installer ports.RuleInstaller
	store     ports.IdentityStore
	onUnknown UnknownMACFunc

	mu      sync.RWMutex
	windows map[string][]*domain.FlowSample

	now func() time.Time
}

// New builds an empty aggregator.
func New(installer ports.RuleInstaller, store ports.IdentityStore, onUnknown UnknownMACFunc) *Aggregator {
	return &Aggregator{
		installer: installer,
		store:     store,
		onUnknown: onUnknown,
		windows:   make(map[string][]*domain.FlowSample),
		now:       time.Now,
	}
}

// PollOnce queries every switch once. A failing switch is logged and
// skipped; an unavailable data plane degrades to a no-op.
func (a *Aggregator) PollOnce(ctx context.Context) {
	switches, err := a.installer.SwitchIDs(ctx)
	if err != nil {
		slog.Warn("data plane unavailable", "error", err)
		return
	}
	for _, sw := range switches {
		flows, err := a.installer.QueryFlows(ctx, sw)
		if err != nil {
			slog.Warn("flow query failed", "switch_id", sw, "error", err)
			continue
		}
		for _, f := range flows {
			a.ingest(ctx, sw, f)
		}
	}
}

func (a *Aggregator) ingest(ctx context.Context, switchID string, f *domain.FlowSample) {
	mac := domain.NormalizeMAC(f.SrcMAC)
	if mac == "" {
		return
	}
	deviceID := f.DeviceID
	if deviceID == "" {
		device, err := a.store.GetDeviceByMAC(ctx, mac)
		if err != nil {
			if a.onUnknown != nil {
				a.onUnknown(mac)
			}
			return
		}
		deviceID = device.DeviceID
	}

	sample := *f
	sample.DeviceID = deviceID
	sample.SwitchID = switchID
	sample.SrcMAC = mac
	if sample.Timestamp.IsZero() {
		sample.Timestamp = a.now().UTC()
	}
	sample.Normalize()

	a.mu.Lock()
	w := append(a.windows[deviceID], &sample)
	if len(w) > domain.FlowWindowSize {
		w = w[len(w)-domain.FlowWindowSize:]
	}
	a.windows[deviceID] = w
	a.mu.Unlock()

	telemetry.FlowSamples.WithLabelValues(switchID).Inc()
}

// Ingest records a pre-attributed sample, bypassing MAC resolution.
// Used by the data ingest path where the device is already known.
func (a *Aggregator) Ingest(deviceID string, f *domain.FlowSample) {
	sample := *f
	sample.DeviceID = deviceID
	if sample.Timestamp.IsZero() {
		sample.Timestamp = a.now().UTC()
	}
	sample.Normalize()

	a.mu.Lock()
	w := append(a.windows[deviceID], &sample)
	if len(w) > domain.FlowWindowSize {
		w = w[len(w)-domain.FlowWindowSize:]
	}
	a.windows[deviceID] = w
	a.mu.Unlock()
}

// DeviceStats aggregates the device's samples inside the window.
func (a *Aggregator) DeviceStats(deviceID string, windowSeconds float64) *domain.DeviceStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.statsLocked(deviceID, windowSeconds)
}

// AllDeviceStats aggregates every tracked device.
func (a *Aggregator) AllDeviceStats(windowSeconds float64) map[string]*domain.DeviceStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]*domain.DeviceStats, len(a.windows))
	for id := range a.windows {
		out[id] = a.statsLocked(id, windowSeconds)
	}
	return out
}

func (a *Aggregator) statsLocked(deviceID string, windowSeconds float64) *domain.DeviceStats {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	cutoff := a.now().Add(-time.Duration(windowSeconds * float64(time.Second)))
	stats := &domain.DeviceStats{DeviceID: deviceID, WindowSeconds: windowSeconds}
	dsts := make(map[string]bool)
	ports := make(map[int]bool)
	for _, s := range a.windows[deviceID] {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		stats.TotalPackets += s.Packets
		stats.TotalBytes += s.Bytes
		stats.FlowCount++
		if s.DstIP != "" {
			dsts[s.DstIP] = true
		}
		if s.DstPort > 0 {
			ports[s.DstPort] = true
		}
	}
	stats.UniqueDestinations = len(dsts)
	stats.UniquePorts = len(ports)
	stats.AvgPPS = float64(stats.TotalPackets) / windowSeconds
	stats.AvgBPS = float64(stats.TotalBytes) / windowSeconds
	return stats
}
