package storage

import "time"

// GORM persistence models. Domain entities never carry GORM tags; the
// converters below translate at the repository boundary.

// DeviceModel maps to the devices table.
type DeviceModel struct {
	DeviceID    string    `gorm:"column:device_id;primaryKey"`
	MAC         string    `gorm:"column:mac;uniqueIndex;not null"`
	CertPath    string    `gorm:"column:cert_path"`
	KeyPath     string    `gorm:"column:key_path"`
	Status      string    `gorm:"column:status;index"`
	DeviceType  string    `gorm:"column:device_type"`
	DeviceInfo  string    `gorm:"column:device_info"`
	Fingerprint string    `gorm:"column:fingerprint"`
	IP          string    `gorm:"column:ip"`
	TrustScore  int       `gorm:"column:trust_score;default:70"`
	FirstSeen   time.Time `gorm:"column:first_seen"`
	LastSeen    time.Time `gorm:"column:last_seen"`
}

// TableName overrides the GORM default pluralization.
func (DeviceModel) TableName() string { return "devices" }

// BaselineModel maps to behavioral_baselines. The baseline itself is a
// JSON blob; the wire format is the contract, not the schema.
type BaselineModel struct {
	DeviceID  string    `gorm:"column:device_id;primaryKey"`
	Payload   string    `gorm:"column:payload;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (BaselineModel) TableName() string { return "behavioral_baselines" }

// PolicyModel maps to device_policies, JSON blob like baselines.
type PolicyModel struct {
	DeviceID  string    `gorm:"column:device_id;primaryKey"`
	Payload   string    `gorm:"column:payload;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (PolicyModel) TableName() string { return "device_policies" }

// TrustHistoryModel maps to trust_score_history, append-only.
type TrustHistoryModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	DeviceID  string    `gorm:"column:device_id;index"`
	OldScore  int       `gorm:"column:old_score"`
	NewScore  int       `gorm:"column:new_score"`
	Reason    string    `gorm:"column:reason"`
	Timestamp time.Time `gorm:"column:timestamp;index"`
}

func (TrustHistoryModel) TableName() string { return "trust_score_history" }

// PendingDeviceModel maps to pending_devices; one row per MAC.
type PendingDeviceModel struct {
	MAC        string     `gorm:"column:mac;primaryKey"`
	DeviceID   string     `gorm:"column:device_id;index"`
	DeviceType string     `gorm:"column:device_type"`
	DeviceInfo string     `gorm:"column:device_info"`
	Status     string     `gorm:"column:status;index"`
	Notes      string     `gorm:"column:notes"`
	FirstSeen  time.Time  `gorm:"column:first_seen"`
	DecidedAt  *time.Time `gorm:"column:decided_at"`
}

func (PendingDeviceModel) TableName() string { return "pending_devices" }

// HistoryModel maps to device_history, the immutable admission audit trail.
type HistoryModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	MAC       string    `gorm:"column:mac;index"`
	DeviceID  string    `gorm:"column:device_id"`
	OldStatus string    `gorm:"column:old_status"`
	NewStatus string    `gorm:"column:new_status"`
	Notes     string    `gorm:"column:notes"`
	Actor     string    `gorm:"column:actor"`
	Timestamp time.Time `gorm:"column:timestamp;index"`
}

func (HistoryModel) TableName() string { return "device_history" }
