package domain

import "time"

// PendingStatus is the state of an admission queue entry.
type PendingStatus string

const (
	PendingStatusPending   PendingStatus = "pending"
	PendingStatusApproved  PendingStatus = "approved"
	PendingStatusRejected  PendingStatus = "rejected"
	PendingStatusOnboarded PendingStatus = "onboarded"
)

// IsTerminal reports whether the entry can never change state again.
func (s PendingStatus) IsTerminal() bool {
	return s == PendingStatusRejected || s == PendingStatusOnboarded
}

// CanTransition enforces the admission state machine:
// pending -> {approved, rejected}; approved -> onboarded.
func (s PendingStatus) CanTransition(to PendingStatus) bool {
	switch s {
	case PendingStatusPending:
		return to == PendingStatusApproved || to == PendingStatusRejected
	case PendingStatusApproved:
		return to == PendingStatusOnboarded
	}
	return false
}

// PendingDevice is a newly observed device awaiting an operator decision.
type PendingDevice struct {
	MAC        string        `json:"mac"`
	DeviceID   string        `json:"device_id"`
	DeviceType string        `json:"device_type,omitempty"`
	DeviceInfo string        `json:"device_info,omitempty"`
	Status     PendingStatus `json:"status"`
	Notes      string        `json:"notes,omitempty"`
	FirstSeen  time.Time     `json:"first_seen"`
	DecidedAt  *time.Time    `json:"decided_at,omitempty"`
}

// NewPendingDevice is the factory for admission queue entries.
func NewPendingDevice(mac, deviceID, deviceType, deviceInfo string) (*PendingDevice, error) {
	norm := NormalizeMAC(mac)
	if norm == "" {
		return nil, Validationf("malformed MAC %q", mac)
	}
	if deviceID == "" {
		return nil, Validationf("device_id is required")
	}
	return &PendingDevice{
		MAC:        norm,
		DeviceID:   deviceID,
		DeviceType: deviceType,
		DeviceInfo: deviceInfo,
		Status:     PendingStatusPending,
		FirstSeen:  time.Now().UTC(),
	}, nil
}

// HistoryEntry is one immutable audit row for an admission transition.
type HistoryEntry struct {
	ID        uint          `json:"id"`
	MAC       string        `json:"mac"`
	DeviceID  string        `json:"device_id"`
	OldStatus PendingStatus `json:"old_status"`
	NewStatus PendingStatus `json:"new_status"`
	Notes     string        `json:"notes,omitempty"`
	Actor     string        `json:"actor,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
