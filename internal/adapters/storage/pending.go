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

// PendingStore implements ports.PendingStore using GORM and SQLite.
// Every state transition appends an immutable device_history row.
type PendingStore struct {
	db *gorm.DB
}

var _ ports.PendingStore = (*PendingStore)(nil)

// NewPendingStore opens the queue database and migrates its schema.
func NewPendingStore(path string) (*PendingStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open pending store: %v", domain.ErrStorage, err)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("%w: tracing plugin: %v", domain.ErrStorage, err)
	}
	if err := db.AutoMigrate(&PendingDeviceModel{}, &HistoryModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrate pending store: %v", domain.ErrStorage, err)
	}
	return &PendingStore{db: db}, nil
}

// Enqueue adds a newly observed device. A row with the same MAC in a
// non-terminal state is a duplicate; a terminal row is reset to pending
// under the fresh device id.
func (s *PendingStore) Enqueue(ctx context.Context, p *domain.PendingDevice) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing PendingDeviceModel
		err := tx.First(&existing, "mac = ?", p.MAC).Error
		switch {
		case err == nil:
			if !domain.PendingStatus(existing.Status).IsTerminal() {
				return fmt.Errorf("%w: MAC %s already queued", domain.ErrConflict, p.MAC)
			}
			model := pendingToModel(p)
			model.FirstSeen = time.Now().UTC()
			if err := tx.Save(model).Error; err != nil {
				return fmt.Errorf("%w: %v", domain.ErrStorage, err)
			}
			return s.appendHistory(tx, p.MAC, p.DeviceID,
				domain.PendingStatus(existing.Status), domain.PendingStatusPending, "re-observed", "")
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(pendingToModel(p)).Error; err != nil {
				return fmt.Errorf("%w: %v", domain.ErrStorage, err)
			}
			return s.appendHistory(tx, p.MAC, p.DeviceID, "", domain.PendingStatusPending, "observed", "")
		default:
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
	})
}

// Approve moves a pending row to approved. Terminal rows are left
// untouched and returned as-is; operator decisions are idempotent.
func (s *PendingStore) Approve(ctx context.Context, mac, notes, actor string) (*domain.PendingDevice, error) {
	return s.decide(ctx, mac, domain.PendingStatusApproved, notes, actor)
}

// Reject moves a pending row to rejected, terminally.
func (s *PendingStore) Reject(ctx context.Context, mac, notes, actor string) (*domain.PendingDevice, error) {
	return s.decide(ctx, mac, domain.PendingStatusRejected, notes, actor)
}

func (s *PendingStore) decide(ctx context.Context, mac string, to domain.PendingStatus, notes, actor string) (*domain.PendingDevice, error) {
	norm := domain.NormalizeMAC(mac)
	if norm == "" {
		return nil, domain.Validationf("malformed MAC %q", mac)
	}
	var result *domain.PendingDevice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model PendingDeviceModel
		if err := tx.First(&model, "mac = ?", norm).Error; err != nil {
			return translate(err, "pending entry for %s", norm)
		}
		cur := domain.PendingStatus(model.Status)
		if cur == to || cur.IsTerminal() {
			result = pendingToDomain(&model)
			return nil
		}
		if !cur.CanTransition(to) {
			return fmt.Errorf("%w: cannot move %s from %s to %s", domain.ErrConflict, norm, cur, to)
		}
		now := time.Now().UTC()
		model.Status = string(to)
		model.Notes = notes
		model.DecidedAt = &now
		if err := tx.Save(&model).Error; err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		result = pendingToDomain(&model)
		return s.appendHistory(tx, norm, model.DeviceID, cur, to, notes, actor)
	})
	return result, err
}

// MarkOnboarded finalizes an approved row after identity artifacts exist.
func (s *PendingStore) MarkOnboarded(ctx context.Context, mac string) error {
	norm := domain.NormalizeMAC(mac)
	if norm == "" {
		return domain.Validationf("malformed MAC %q", mac)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model PendingDeviceModel
		if err := tx.First(&model, "mac = ?", norm).Error; err != nil {
			return translate(err, "pending entry for %s", norm)
		}
		cur := domain.PendingStatus(model.Status)
		if cur == domain.PendingStatusOnboarded {
			return nil
		}
		if !cur.CanTransition(domain.PendingStatusOnboarded) {
			return fmt.Errorf("%w: cannot onboard %s from %s", domain.ErrConflict, norm, cur)
		}
		model.Status = string(domain.PendingStatusOnboarded)
		if err := tx.Save(&model).Error; err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		return s.appendHistory(tx, norm, model.DeviceID, cur, domain.PendingStatusOnboarded, "", "")
	})
}

// GetByMAC fetches a single queue entry.
func (s *PendingStore) GetByMAC(ctx context.Context, mac string) (*domain.PendingDevice, error) {
	norm := domain.NormalizeMAC(mac)
	if norm == "" {
		return nil, domain.Validationf("malformed MAC %q", mac)
	}
	var model PendingDeviceModel
	if err := s.db.WithContext(ctx).First(&model, "mac = ?", norm).Error; err != nil {
		return nil, translate(err, "pending entry for %s", norm)
	}
	return pendingToDomain(&model), nil
}

// ListPending returns entries still awaiting a decision.
func (s *PendingStore) ListPending(ctx context.Context) ([]*domain.PendingDevice, error) {
	return s.list(ctx, domain.PendingStatusPending)
}

// ListAll returns entries filtered by status; empty status means all.
func (s *PendingStore) ListAll(ctx context.Context, status domain.PendingStatus) ([]*domain.PendingDevice, error) {
	return s.list(ctx, status)
}

func (s *PendingStore) list(ctx context.Context, status domain.PendingStatus) ([]*domain.PendingDevice, error) {
	var models []PendingDeviceModel
	q := s.db.WithContext(ctx).Order("first_seen")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	out := make([]*domain.PendingDevice, len(models))
	for i := range models {
		out[i] = pendingToDomain(&models[i])
	}
	return out, nil
}

// History returns audit rows, newest first; empty mac means all devices.
func (s *PendingStore) History(ctx context.Context, mac string, limit int) ([]*domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []HistoryModel
	q := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if mac != "" {
		norm := domain.NormalizeMAC(mac)
		if norm == "" {
			return nil, domain.Validationf("malformed MAC %q", mac)
		}
		q = q.Where("mac = ?", norm)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	out := make([]*domain.HistoryEntry, len(models))
	for i := range models {
		out[i] = historyToDomain(&models[i])
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *PendingStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PendingStore) appendHistory(tx *gorm.DB, mac, deviceID string, from, to domain.PendingStatus, notes, actor string) error {
	entry := &HistoryModel{
		MAC:       mac,
		DeviceID:  deviceID,
		OldStatus: string(from),
		NewStatus: string(to),
		Notes:     notes,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}
