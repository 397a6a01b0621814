package domain

import "time"

// DeviceStatus is the lifecycle state of an onboarded device.
type DeviceStatus string

const (
	StatusActive      DeviceStatus = "active"
	StatusInactive    DeviceStatus = "inactive"
	StatusRevoked     DeviceStatus = "revoked"
	StatusQuarantined DeviceStatus = "quarantined"
)

// IsValid reports whether the status is a recognized lifecycle state.
func (s DeviceStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusRevoked, StatusQuarantined:
		return true
	}
	return false
}

// DefaultTrustScore is assigned to any device without a recorded score.
const DefaultTrustScore = 70

// Device is the root identity entity. A MAC maps to at most one active
// device at a time; the device id is the primary key everywhere else.
type Device struct {
	DeviceID    string       `json:"device_id"`
	MAC         string       `json:"mac"`
	CertPath    string       `json:"cert_path,omitempty"`
	KeyPath     string       `json:"key_path,omitempty"`
	Status      DeviceStatus `json:"status"`
	DeviceType  string       `json:"device_type,omitempty"`
	DeviceInfo  string       `json:"device_info,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	IP          string       `json:"ip,omitempty"`
	TrustScore  int          `json:"trust_score"`
	FirstSeen   time.Time    `json:"first_seen"`
	LastSeen    time.Time    `json:"last_seen"`
}

// NewDevice is the designated factory for onboarded devices.
func NewDevice(deviceID, mac, certPath, keyPath, deviceType, deviceInfo, fingerprint string) (*Device, error) {
	norm := NormalizeMAC(mac)
	if norm == "" {
		return nil, Validationf("malformed MAC %q", mac)
	}
	if deviceID == "" {
		return nil, Validationf("device_id is required")
	}
	now := time.Now().UTC()
	return &Device{
		DeviceID:    deviceID,
		MAC:         norm,
		CertPath:    certPath,
		KeyPath:     keyPath,
		Status:      StatusActive,
		DeviceType:  deviceType,
		DeviceInfo:  deviceInfo,
		Fingerprint: fingerprint,
		TrustScore:  DefaultTrustScore,
		FirstSeen:   now,
		LastSeen:    now,
	}, nil
}

// IsActive reports whether the device is currently admitted to the network.
func (d *Device) IsActive() bool {
	return d.Status == StatusActive
}

// HasCredential reports whether the device has an issued certificate on disk.
func (d *Device) HasCredential() bool {
	return d.CertPath != ""
}

// Validate ensures the entity invariants hold before persistence.
func (d *Device) Validate() error {
	if d.DeviceID == "" {
		return Validationf("device_id cannot be empty")
	}
	if !IsValidMAC(d.MAC) {
		return Validationf("malformed MAC %q", d.MAC)
	}
	if !d.Status.IsValid() {
		return Validationf("unknown device status %q", d.Status)
	}
	return nil
}
