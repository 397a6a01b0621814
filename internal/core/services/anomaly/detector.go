// Package anomaly compares live traffic aggregates against learned
// baselines, or against absolute thresholds when no baseline exists.
package anomaly

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/telemetry"
)

const eventRetention = 100

// Baseline-relative thresholds. The score table is fixed; see the
// severity mapping in domain.SeverityForScore.
const (
	ppsRatioHigh   = 10.0
	ppsRatioMid    = 5.0
	ppsRatioLow    = 2.0
	bpsRatioHigh   = 10.0
	dstRatioFactor = 5.0
	dstFloor       = 20
	portRatio      = 3.0
	portFloor      = 10
)

// Absolute fallbacks used when the device has no baseline yet.
const (
	absPPSHigh   = 10000.0
	absPPSMid    = 5000.0
	absBPSHigh   = 10.0 * 1024 * 1024
	absDstLimit  = 50
	absPortLimit = 20
)

// Detector evaluates device stats and retains the most recent events.
type Detector struct {
	store ports.IdentityStore

	mu     sync.RWMutex
	events []*domain.AnomalyEvent

	now func() time.Time
}

// New builds a detector reading baselines from the identity store.
func New(store ports.IdentityStore) *Detector {
	return &Detector{store: store, now: time.Now}
}

// Evaluate scores one device's current stats. A nil return means
// nothing crossed the reporting threshold.
func (d *Detector) Evaluate(ctx context.Context, stats *domain.DeviceStats) (*domain.AnomalyEvent, error) {
	baseline, err := d.store.GetBaseline(ctx, stats.DeviceID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var signals []domain.AnomalySignal
	if baseline != nil {
		signals = evaluateAgainstBaseline(stats, baseline)
	} else {
		signals = evaluateAbsolute(stats)
	}

	total := 0
	matched := make(map[domain.AnomalyType]bool)
	for _, sig := range signals {
		total += sig.Score
		matched[sig.Type] = true
	}
	severity := domain.SeverityForScore(total)
	if severity == domain.SeverityNone {
		return nil, nil
	}

	event := &domain.AnomalyEvent{
		DeviceID:  stats.DeviceID,
		Type:      domain.DominantAnomalyType(matched),
		Severity:  severity,
		Score:     total,
		Signals:   signals,
		Baselined: baseline != nil,
		Timestamp: d.now().UTC(),
	}
	d.retain(event)
	telemetry.AnomaliesDetected.WithLabelValues(string(event.Type), string(event.Severity)).Inc()
	slog.Warn("anomaly detected", "device_id", event.DeviceID,
		"type", string(event.Type), "severity", string(event.Severity), "score", event.Score)
	return event, nil
}

// RunOnce evaluates every device in the stats map and returns the
// events that fired. Per-device failures are logged and skipped.
func (d *Detector) RunOnce(ctx context.Context, all map[string]*domain.DeviceStats) []*domain.AnomalyEvent {
	var out []*domain.AnomalyEvent
	for _, stats := range all {
		if stats.FlowCount == 0 {
			continue
		}
		event, err := d.Evaluate(ctx, stats)
		if err != nil {
			slog.Warn("anomaly evaluation failed", "device_id", stats.DeviceID, "error", err)
			continue
		}
		if event != nil {
			out = append(out, event)
		}
	}
	return out
}

// Recent snapshots the retained events, oldest first.
func (d *Detector) Recent() []*domain.AnomalyEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*domain.AnomalyEvent, len(d.events))
	copy(out, d.events)
	return out
}

// RecentForDevice filters retained events by device and age.
func (d *Detector) RecentForDevice(deviceID string, maxAge time.Duration) []*domain.AnomalyEvent {
	cutoff := d.now().Add(-maxAge)
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*domain.AnomalyEvent
	for _, e := range d.events {
		if e.DeviceID == deviceID && e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func (d *Detector) retain(e *domain.AnomalyEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	if len(d.events) > eventRetention {
		d.events = d.events[len(d.events)-eventRetention:]
	}
}

func evaluateAgainstBaseline(stats *domain.DeviceStats, b *domain.Baseline) []domain.AnomalySignal {
	var signals []domain.AnomalySignal

	basePPS := b.AvgPPS
	if basePPS <= 0 {
		basePPS = 1
	}
	switch ratio := stats.AvgPPS / basePPS; {
	case ratio > ppsRatioHigh:
		signals = append(signals, signal("pps_ratio", domain.AnomalyDoS, domain.SeverityHigh, 50, stats.AvgPPS, b.AvgPPS))
	case ratio > ppsRatioMid:
		signals = append(signals, signal("pps_ratio", domain.AnomalyDoS, domain.SeverityHigh, 30, stats.AvgPPS, b.AvgPPS))
	case ratio > ppsRatioLow:
		signals = append(signals, signal("pps_ratio", domain.AnomalyDoS, domain.SeverityMedium, 15, stats.AvgPPS, b.AvgPPS))
	}

	baseBPS := b.AvgBPS
	if baseBPS <= 0 {
		baseBPS = 1
	}
	if stats.AvgBPS/baseBPS > bpsRatioHigh {
		signals = append(signals, signal("bps_ratio", domain.AnomalyVolumeAttack, domain.SeverityHigh, 40, stats.AvgBPS, b.AvgBPS))
	}

	baseDst := float64(b.UniqueDestinations())
	if float64(stats.UniqueDestinations) > baseDst*dstRatioFactor && stats.UniqueDestinations > dstFloor {
		signals = append(signals, signal("unique_destinations", domain.AnomalyScanning, domain.SeverityMedium, 25, float64(stats.UniqueDestinations), baseDst))
	}

	basePort := float64(b.UniquePorts())
	if float64(stats.UniquePorts) > basePort*portRatio && stats.UniquePorts > portFloor {
		signals = append(signals, signal("unique_ports", domain.AnomalyPortScanning, domain.SeverityMedium, 20, float64(stats.UniquePorts), basePort))
	}

	return signals
}

func evaluateAbsolute(stats *domain.DeviceStats) []domain.AnomalySignal {
	var signals []domain.AnomalySignal
	switch {
	case stats.AvgPPS > absPPSHigh:
		signals = append(signals, signal("pps_absolute", domain.AnomalyDoS, domain.SeverityHigh, 50, stats.AvgPPS, absPPSHigh))
	case stats.AvgPPS > absPPSMid:
		signals = append(signals, signal("pps_absolute", domain.AnomalyDoS, domain.SeverityHigh, 30, stats.AvgPPS, absPPSMid))
	}
	if stats.AvgBPS > absBPSHigh {
		signals = append(signals, signal("bps_absolute", domain.AnomalyVolumeAttack, domain.SeverityHigh, 40, stats.AvgBPS, absBPSHigh))
	}
	if stats.UniqueDestinations > absDstLimit {
		signals = append(signals, signal("unique_destinations", domain.AnomalyScanning, domain.SeverityMedium, 25, float64(stats.UniqueDestinations), absDstLimit))
	}
	if stats.UniquePorts > absPortLimit {
		signals = append(signals, signal("unique_ports", domain.AnomalyPortScanning, domain.SeverityMedium, 20, float64(stats.UniquePorts), absPortLimit))
	}
	return signals
}

func signal(name string, t domain.AnomalyType, sev domain.Severity, score int, observed, expected float64) domain.AnomalySignal {
	return domain.AnomalySignal{
		Name:     name,
		Type:     t,
		Severity: sev,
		Score:    score,
		Observed: observed,
		Expected: expected,
	}
}
