package storage

import (
	"encoding/json"
	"fmt"

	"github.com/ztlan/warden/internal/core/domain"
)

// Converters between GORM models and domain entities.

func deviceToModel(d *domain.Device) *DeviceModel {
	return &DeviceModel{
		DeviceID:    d.DeviceID,
		MAC:         d.MAC,
		CertPath:    d.CertPath,
		KeyPath:     d.KeyPath,
		Status:      string(d.Status),
		DeviceType:  d.DeviceType,
		DeviceInfo:  d.DeviceInfo,
		Fingerprint: d.Fingerprint,
		IP:          d.IP,
		TrustScore:  d.TrustScore,
		FirstSeen:   d.FirstSeen,
		LastSeen:    d.LastSeen,
	}
}

func deviceToDomain(m *DeviceModel) *domain.Device {
	return &domain.Device{
		DeviceID:    m.DeviceID,
		MAC:         m.MAC,
		CertPath:    m.CertPath,
		KeyPath:     m.KeyPath,
		Status:      domain.DeviceStatus(m.Status),
		DeviceType:  m.DeviceType,
		DeviceInfo:  m.DeviceInfo,
		Fingerprint: m.Fingerprint,
		IP:          m.IP,
		TrustScore:  m.TrustScore,
		FirstSeen:   m.FirstSeen,
		LastSeen:    m.LastSeen,
	}
}

func baselineToPayload(b *domain.Baseline) (string, error) {
	buf, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode baseline: %w", err)
	}
	return string(buf), nil
}

func baselineFromPayload(payload string) (*domain.Baseline, error) {
	var b domain.Baseline
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, fmt.Errorf("decode baseline: %w", err)
	}
	return &b, nil
}

func policyToPayload(p *domain.DevicePolicy) (string, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode policy: %w", err)
	}
	return string(buf), nil
}

func policyFromPayload(payload string) (*domain.DevicePolicy, error) {
	var p domain.DevicePolicy
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	return &p, nil
}

func pendingToModel(p *domain.PendingDevice) *PendingDeviceModel {
	return &PendingDeviceModel{
		MAC:        p.MAC,
		DeviceID:   p.DeviceID,
		DeviceType: p.DeviceType,
		DeviceInfo: p.DeviceInfo,
		Status:     string(p.Status),
		Notes:      p.Notes,
		FirstSeen:  p.FirstSeen,
		DecidedAt:  p.DecidedAt,
	}
}

func pendingToDomain(m *PendingDeviceModel) *domain.PendingDevice {
	return &domain.PendingDevice{
		MAC:        m.MAC,
		DeviceID:   m.DeviceID,
		DeviceType: m.DeviceType,
		DeviceInfo: m.DeviceInfo,
		Status:     domain.PendingStatus(m.Status),
		Notes:      m.Notes,
		FirstSeen:  m.FirstSeen,
		DecidedAt:  m.DecidedAt,
	}
}

func historyToDomain(m *HistoryModel) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:        m.ID,
		MAC:       m.MAC,
		DeviceID:  m.DeviceID,
		OldStatus: domain.PendingStatus(m.OldStatus),
		NewStatus: domain.PendingStatus(m.NewStatus),
		Notes:     m.Notes,
		Actor:     m.Actor,
		Timestamp: m.Timestamp,
	}
}

func trustToDomain(m *TrustHistoryModel) *domain.TrustRecord {
	return &domain.TrustRecord{
		DeviceID:  m.DeviceID,
		OldScore:  m.OldScore,
		NewScore:  m.NewScore,
		Reason:    m.Reason,
		Timestamp: m.Timestamp,
	}
}
