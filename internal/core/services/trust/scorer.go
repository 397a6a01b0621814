// Package trust maintains the per-device trust score state machine.
package trust

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"github.com/ztlan/warden/internal/telemetry"
)

const historyLimit = 100

// Scorer keeps every device's score in memory, writes through to the
// identity store, and fans out changes to registered listeners.
//
// Listener invocations happen while the state lock is NOT held, so a
// listener may call back into the scorer. A separate dispatch mutex
// serializes persist+notify, which keeps updates for a single device
// totally ordered from the listeners' point of view.
type Scorer struct {
	store ports.IdentityStore

	mu      sync.RWMutex
	scores  map[string]int
	history map[string][]*domain.TrustRecord

	notifyMu  sync.Mutex
	listeners []domain.TrustChangeListener
}

var _ ports.TrustScorer = (*Scorer)(nil)

// NewScorer builds an empty scorer backed by the identity store.
func NewScorer(store ports.IdentityStore) *Scorer {
	return &Scorer{
		store:   store,
		scores:  make(map[string]int),
		history: make(map[string][]*domain.TrustRecord),
	}
}

// Hydrate loads persisted scores. Devices without one start at the
// default and are written back.
func (s *Scorer) Hydrate(ctx context.Context) error {
	scores, err := s.store.LoadAllTrust(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for id, score := range scores {
		s.scores[id] = domain.ClipTrustScore(score)
	}
	s.mu.Unlock()
	slog.Info("trust scores hydrated", "devices", len(scores))
	return nil
}

// RegisterListener adds a synchronous change listener.
func (s *Scorer) RegisterListener(l domain.TrustChangeListener) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Get returns the current score, defaulting unseen devices to 70.
func (s *Scorer) Get(deviceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if score, ok := s.scores[deviceID]; ok {
		return score
	}
	return domain.DefaultTrustScore
}

// Known reports whether the device has an in-memory score entry.
func (s *Scorer) Known(deviceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.scores[deviceID]
	return ok
}

// Scores snapshots the full score map.
func (s *Scorer) Scores() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.scores))
	for id, score := range s.scores {
		out[id] = score
	}
	return out
}

// Adjust applies a delta and returns the new score.
func (s *Scorer) Adjust(deviceID string, delta int, reason string) int {
	return s.update(deviceID, func(old int) int { return old + delta }, reason)
}

// Set forces the score to an absolute value.
func (s *Scorer) Set(deviceID string, score int, reason string) int {
	return s.update(deviceID, func(int) int { return score }, reason)
}

// History returns the in-memory trust records for one device, oldest first.
func (s *Scorer) History(deviceID string) []*domain.TrustRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.history[deviceID]
	out := make([]*domain.TrustRecord, len(records))
	copy(out, records)
	return out
}

func (s *Scorer) update(deviceID string, f func(old int) int, reason string) int {
	// Dispatch lock first so persist+notify keep write order.
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	old, ok := s.scores[deviceID]
	if !ok {
		old = domain.DefaultTrustScore
	}
	newScore := domain.ClipTrustScore(f(old))
	s.scores[deviceID] = newScore
	record := &domain.TrustRecord{
		DeviceID:  deviceID,
		OldScore:  old,
		NewScore:  newScore,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	s.history[deviceID] = append(s.history[deviceID], record)
	if len(s.history[deviceID]) > historyLimit {
		s.history[deviceID] = s.history[deviceID][len(s.history[deviceID])-historyLimit:]
	}
	s.mu.Unlock()

	telemetry.TrustAdjustments.WithLabelValues(reason).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := s.store.SaveTrust(ctx, deviceID, newScore, reason); err != nil {
		slog.Warn("trust write-through failed", "device_id", deviceID, "error", err)
	}
	cancel()

	if old != newScore {
		for _, l := range s.listeners {
			l(deviceID, old, newScore, reason)
		}
	}
	return newScore
}

// RecordAnomaly applies the behavioral anomaly penalty.
func (s *Scorer) RecordAnomaly(deviceID string, severity domain.Severity) int {
	delta := domain.AnomalyDelta(severity)
	if delta == 0 {
		return s.Get(deviceID)
	}
	return s.Adjust(deviceID, delta, "behavioral_anomaly_"+string(severity))
}

// RecordAttestationFailure applies the attestation penalty.
func (s *Scorer) RecordAttestationFailure(deviceID string) int {
	return s.Adjust(deviceID, domain.DeltaAttestationFail, "attestation_failure")
}

// RecordSecurityAlert applies the security alert penalty.
func (s *Scorer) RecordSecurityAlert(deviceID string, severity domain.Severity) int {
	delta := domain.AlertDelta(severity)
	if delta == 0 {
		return s.Get(deviceID)
	}
	return s.Adjust(deviceID, delta, "security_alert_"+string(severity))
}

// RecordPositiveBehavior nudges a well-behaved device upward.
func (s *Scorer) RecordPositiveBehavior(deviceID string) int {
	return s.Adjust(deviceID, domain.DeltaPositiveTick, "positive_behavior")
}
