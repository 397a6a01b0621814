// Package profiler observes a device's traffic for a bounded window and
// distills it into a behavioral baseline.
package profiler

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

// DefaultWindow is the profiling observation period.
const DefaultWindow = 300 * time.Second

// minPacketsForFullBaseline marks baselines built from fewer packets
// as limited_traffic.
const minPacketsForFullBaseline = 5

type accumulator struct {
	packets   int64
	bytes     int64
	dsts      map[string]int64
	ports     map[string]int64
	protocols map[string]int64
	start     time.Time
}

// Profiler holds one in-memory accumulator per device under profiling.
type Profiler struct {
	store  ports.IdentityStore
	window time.Duration

	mu  sync.Mutex
	acc map[string]*accumulator

	now func() time.Time
}

// New builds a profiler with the given observation window.
func New(store ports.IdentityStore, window time.Duration) *Profiler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Profiler{
		store:  store,
		window: window,
		acc:    make(map[string]*accumulator),
		now:    time.Now,
	}
}

// Begin resets the accumulator for a device and starts its window.
func (p *Profiler) Begin(deviceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acc[deviceID] = &accumulator{
		dsts:      make(map[string]int64),
		ports:     make(map[string]int64),
		protocols: make(map[string]int64),
		start:     p.now(),
	}
	slog.Info("profiling started", "device_id", deviceID, "window", p.window)
}

// Record feeds one packet observation. Packets for devices without an
// active accumulator are ignored.
func (p *Profiler) Record(deviceID string, pkt *domain.PacketInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.acc[deviceID]
	if !ok {
		return
	}
	a.packets++
	a.bytes += int64(pkt.Size)
	if pkt.DstIP != "" {
		a.dsts[pkt.DstIP]++
	}
	if pkt.DstPort > 0 {
		a.ports[portKey(pkt.DstPort)]++
	}
	if pkt.Protocol != "" {
		a.protocols[pkt.Protocol]++
	}
}

// IsExpired reports whether the device's window has fully elapsed.
func (p *Profiler) IsExpired(deviceID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.acc[deviceID]
	if !ok {
		return false
	}
	return p.now().Sub(a.start) >= p.window
}

// Active lists devices currently being profiled.
func (p *Profiler) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.acc))
	for id := range p.acc {
		ids = append(ids, id)
	}
	return ids
}

// Status reports elapsed and remaining seconds for an active profile.
func (p *Profiler) Status(deviceID string) (elapsed, remaining float64, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.acc[deviceID]
	if !ok {
		return 0, 0, false
	}
	elapsed = p.now().Sub(a.start).Seconds()
	remaining = p.window.Seconds() - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return elapsed, remaining, true
}

// Finalize closes the window, computes the baseline, persists it and
// removes the accumulator. Windows with almost no traffic still produce
// a baseline, annotated limited_traffic, so profiling never wedges on a
// silent device.
func (p *Profiler) Finalize(ctx context.Context, deviceID string) (*domain.Baseline, error) {
	p.mu.Lock()
	a, ok := p.acc[deviceID]
	if !ok {
		p.mu.Unlock()
		return nil, domain.Validationf("no active profiling for %s", deviceID)
	}
	delete(p.acc, deviceID)
	elapsed := p.now().Sub(a.start).Seconds()
	p.mu.Unlock()

	if elapsed <= 0 {
		elapsed = 1
	}
	b := &domain.Baseline{
		DeviceID:        deviceID,
		AvgPPS:          float64(a.packets) / elapsed,
		AvgBPS:          float64(a.bytes) / elapsed,
		TotalPackets:    a.packets,
		TotalBytes:      a.bytes,
		TopDestinations: domain.TopN(a.dsts, 10),
		TopPorts:        domain.TopN(a.ports, 10),
		Protocols:       a.protocols,
		WindowSeconds:   elapsed,
		LimitedTraffic:  a.packets < minPacketsForFullBaseline,
		CreatedAt:       domain.NewBaselineTimestamp(p.now()),
	}
	if a.packets > 0 {
		b.AvgPacketSize = float64(a.bytes) / float64(a.packets)
	}

	if err := p.store.SaveBaseline(ctx, deviceID, b); err != nil {
		return nil, err
	}
	slog.Info("baseline finalized", "device_id", deviceID,
		"packets", a.packets, "avg_pps", b.AvgPPS, "limited", b.LimitedTraffic)
	return b, nil
}

// FinalizeExpired finalizes every device whose window has elapsed and
// returns the produced baselines keyed by device id.
func (p *Profiler) FinalizeExpired(ctx context.Context) map[string]*domain.Baseline {
	out := make(map[string]*domain.Baseline)
	for _, id := range p.Active() {
		if !p.IsExpired(id) {
			continue
		}
		b, err := p.Finalize(ctx, id)
		if err != nil {
			slog.Warn("baseline finalize failed", "device_id", id, "error", err)
			continue
		}
		out[id] = b
	}
	return out
}

func portKey(port int) string {
	return strconv.Itoa(port)
}
