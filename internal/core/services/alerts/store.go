// Package alerts keeps the operator-facing suspicious-device records.
package alerts

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

const retention = 500

// Store is the in-memory alert book. Entries carry a honeypot activity
// counter that the activity updater refreshes.
type Store struct {
	mu          sync.RWMutex
	alerts      map[string]*domain.Alert
	broadcaster ports.AlertBroadcaster
}

// NewStore builds an empty store. broadcaster may be nil.
func NewStore(broadcaster ports.AlertBroadcaster) *Store {
	return &Store{
		alerts:      make(map[string]*domain.Alert),
		broadcaster: broadcaster,
	}
}

// Add records a new alert and pushes it to live subscribers.
func (s *Store) Add(deviceID, mac, sourceIP, alertType, message string, severity domain.Severity, action domain.PolicyAction) *domain.Alert {
	now := time.Now().UTC()
	a := &domain.Alert{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		MAC:       mac,
		SourceIP:  sourceIP,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Action:    action,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.alerts[a.ID] = a
	s.evictLocked()
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.Broadcast("security_alert", a)
	}
	return a
}

// List returns all alerts, newest first.
func (s *Store) List() []*domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		dup := *a
		out = append(out, &dup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ForDevice filters alerts by device id, newest first.
func (s *Store) ForDevice(deviceID string) []*domain.Alert {
	all := s.List()
	out := all[:0]
	for _, a := range all {
		if a.DeviceID == deviceID {
			out = append(out, a)
		}
	}
	return out
}

// Acknowledge marks an alert as seen by the operator.
func (s *Store) Acknowledge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return false
	}
	a.Acknowledged = true
	a.UpdatedAt = time.Now().UTC()
	return true
}

// UpdateActivity refreshes honeypot activity counters, matching alerts
// by source IP.
func (s *Store) UpdateActivity(counts map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.SourceIP == "" {
			continue
		}
		if n, ok := counts[a.SourceIP]; ok && n != a.HoneypotActivity {
			a.HoneypotActivity = n
			a.UpdatedAt = time.Now().UTC()
		}
	}
}

func (s *Store) evictLocked() {
	if len(s.alerts) <= retention {
		return
	}
	oldestID := ""
	var oldest time.Time
	for id, a := range s.alerts {
		if oldestID == "" || a.CreatedAt.Before(oldest) {
			oldestID, oldest = id, a.CreatedAt
		}
	}
	delete(s.alerts, oldestID)
}
