package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// IdentityStore implements ports.IdentityStore using GORM and SQLite.
type IdentityStore struct {
	db *gorm.DB
}

var _ ports.IdentityStore = (*IdentityStore)(nil)

// NewIdentityStore opens the database, migrates the schema and backfills
// columns added after first deployment.
func NewIdentityStore(path string) (*IdentityStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open identity store: %v", domain.ErrStorage, err)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("%w: tracing plugin: %v", domain.ErrStorage, err)
	}

	if err := db.AutoMigrate(&DeviceModel{}, &BaselineModel{}, &PolicyModel{}, &TrustHistoryModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrate identity store: %v", domain.ErrStorage, err)
	}

	// Backfill rows written before these columns existed.
	db.Exec("UPDATE devices SET trust_score = 70 WHERE trust_score IS NULL")
	db.Exec("UPDATE devices SET status = 'active' WHERE status IS NULL OR status = ''")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_devices_ip ON devices(ip)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_trust_history_device_ts ON trust_score_history(device_id, timestamp)")

	return &IdentityStore{db: db}, nil
}

// AddDevice inserts or re-inserts a device. first_seen and trust_score
// survive re-insertion; binding a MAC already held by a different active
// device is a conflict.
func (s *IdentityStore) AddDevice(ctx context.Context, d *domain.Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var holder DeviceModel
		err := tx.Where("mac = ? AND status = ? AND device_id != ?", d.MAC, string(domain.StatusActive), d.DeviceID).
			First(&holder).Error
		if err == nil {
			return fmt.Errorf("%w: MAC %s already bound to active device %s", domain.ErrConflict, d.MAC, holder.DeviceID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}

		model := deviceToModel(d)
		var existing DeviceModel
		err = tx.First(&existing, "device_id = ?", d.DeviceID).Error
		switch {
		case err == nil:
			model.FirstSeen = existing.FirstSeen
			model.TrustScore = existing.TrustScore
			return tx.Save(model).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(model).Error
		default:
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
	})
}

// GetDevice retrieves a device by id.
func (s *IdentityStore) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	var model DeviceModel
	if err := s.db.WithContext(ctx).First(&model, "device_id = ?", deviceID).Error; err != nil {
		return nil, translate(err, "device %s", deviceID)
	}
	return deviceToDomain(&model), nil
}

// GetDeviceByMAC retrieves a device by its normalized MAC.
func (s *IdentityStore) GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	norm := domain.NormalizeMAC(mac)
	if norm == "" {
		return nil, domain.Validationf("malformed MAC %q", mac)
	}
	var model DeviceModel
	if err := s.db.WithContext(ctx).First(&model, "mac = ?", norm).Error; err != nil {
		return nil, translate(err, "device with MAC %s", norm)
	}
	return deviceToDomain(&model), nil
}

// GetDeviceByIP retrieves a device by its last known IP.
func (s *IdentityStore) GetDeviceByIP(ctx context.Context, ip string) (*domain.Device, error) {
	var model DeviceModel
	if err := s.db.WithContext(ctx).First(&model, "ip = ?", ip).Error; err != nil {
		return nil, translate(err, "device with IP %s", ip)
	}
	return deviceToDomain(&model), nil
}

// ListDevices returns all devices ordered by first_seen.
func (s *IdentityStore) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	var models []DeviceModel
	if err := s.db.WithContext(ctx).Order("first_seen").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	devices := make([]*domain.Device, len(models))
	for i := range models {
		devices[i] = deviceToDomain(&models[i])
	}
	return devices, nil
}

// UpdateStatus moves a device to a new lifecycle state.
func (s *IdentityStore) UpdateStatus(ctx context.Context, deviceID string, status domain.DeviceStatus) error {
	if !status.IsValid() {
		return domain.Validationf("unknown device status %q", status)
	}
	return s.updateColumn(ctx, deviceID, "status", string(status))
}

// UpdateIP records the device's current IP address.
func (s *IdentityStore) UpdateIP(ctx context.Context, deviceID, ip string) error {
	return s.updateColumn(ctx, deviceID, "ip", ip)
}

// TouchLastSeen refreshes the device's last_seen timestamp.
func (s *IdentityStore) TouchLastSeen(ctx context.Context, deviceID string) error {
	return s.updateColumn(ctx, deviceID, "last_seen", time.Now().UTC())
}

func (s *IdentityStore) updateColumn(ctx context.Context, deviceID, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&DeviceModel{}).
		Where("device_id = ?", deviceID).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	return nil
}

// SaveBaseline upserts the device's behavioral baseline.
func (s *IdentityStore) SaveBaseline(ctx context.Context, deviceID string, b *domain.Baseline) error {
	payload, err := baselineToPayload(b)
	if err != nil {
		return err
	}
	model := &BaselineModel{DeviceID: deviceID, Payload: payload, UpdatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetBaseline fetches the device's baseline.
func (s *IdentityStore) GetBaseline(ctx context.Context, deviceID string) (*domain.Baseline, error) {
	var model BaselineModel
	if err := s.db.WithContext(ctx).First(&model, "device_id = ?", deviceID).Error; err != nil {
		return nil, translate(err, "baseline for %s", deviceID)
	}
	return baselineFromPayload(model.Payload)
}

// SavePolicy upserts the device's generated policy.
func (s *IdentityStore) SavePolicy(ctx context.Context, deviceID string, p *domain.DevicePolicy) error {
	payload, err := policyToPayload(p)
	if err != nil {
		return err
	}
	model := &PolicyModel{DeviceID: deviceID, Payload: payload, UpdatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetPolicy fetches the device's policy.
func (s *IdentityStore) GetPolicy(ctx context.Context, deviceID string) (*domain.DevicePolicy, error) {
	var model PolicyModel
	if err := s.db.WithContext(ctx).First(&model, "device_id = ?", deviceID).Error; err != nil {
		return nil, translate(err, "policy for %s", deviceID)
	}
	return policyFromPayload(model.Payload)
}

// SaveTrust writes the current score and appends a history row.
func (s *IdentityStore) SaveTrust(ctx context.Context, deviceID string, score int, reason string) error {
	score = domain.ClipTrustScore(score)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model DeviceModel
		if err := tx.First(&model, "device_id = ?", deviceID).Error; err != nil {
			return translate(err, "device %s", deviceID)
		}
		if err := tx.Model(&DeviceModel{}).Where("device_id = ?", deviceID).
			Update("trust_score", score).Error; err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		entry := &TrustHistoryModel{
			DeviceID:  deviceID,
			OldScore:  model.TrustScore,
			NewScore:  score,
			Reason:    reason,
			Timestamp: time.Now().UTC(),
		}
		return tx.Create(entry).Error
	})
}

// LoadAllTrust returns the persisted score for every device.
func (s *IdentityStore) LoadAllTrust(ctx context.Context) (map[string]int, error) {
	var models []DeviceModel
	if err := s.db.WithContext(ctx).Select("device_id", "trust_score").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	scores := make(map[string]int, len(models))
	for _, m := range models {
		scores[m.DeviceID] = m.TrustScore
	}
	return scores, nil
}

// TrustHistory returns the most recent history rows, newest first.
func (s *IdentityStore) TrustHistory(ctx context.Context, deviceID string, limit int) ([]*domain.TrustRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []TrustHistoryModel
	q := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	records := make([]*domain.TrustRecord, len(models))
	for i := range models {
		records[i] = trustToDomain(&models[i])
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (s *IdentityStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%w: %v", domain.ErrStorage, err)
}
