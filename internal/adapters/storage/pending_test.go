package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztlan/warden/internal/core/domain"
)

func newPendingStore(t *testing.T) *PendingStore {
	t.Helper()
	s, err := NewPendingStore(filepath.Join(t.TempDir(), "pending.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueue(t *testing.T, s *PendingStore, mac, deviceID string) *domain.PendingDevice {
	t.Helper()
	entry, err := domain.NewPendingDevice(mac, deviceID, "", "")
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(context.Background(), entry))
	return entry
}

func TestPendingStore_EnqueueAndList(t *testing.T) {
	s := newPendingStore(t)
	ctx := context.Background()

	enqueue(t, s, "AA:BB:CC:DD:EE:01", "DEV_AA_BB_CC_TEST01")
	enqueue(t, s, "AA:BB:CC:DD:EE:02", "DEV_AA_BB_CC_TEST02")

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	got, err := s.GetByMAC(ctx, "aa-bb-cc-dd-ee-01")
	require.NoError(t, err)
	assert.Equal(t, "DEV_AA_BB_CC_TEST01", got.DeviceID)
	assert.Equal(t, domain.PendingStatusPending, got.Status)

	// Duplicate while still queued.
	dup, err := domain.NewPendingDevice("AA:BB:CC:DD:EE:01", "DEV_AA_BB_CC_TEST09", "", "")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Enqueue(ctx, dup), domain.ErrConflict)
}

func TestPendingStore_ApproveThenOnboard(t *testing.T) {
	s := newPendingStore(t)
	ctx := context.Background()
	mac := "AA:BB:CC:DD:EE:01"
	enqueue(t, s, mac, "DEV_AA_BB_CC_TEST01")

	entry, err := s.Approve(ctx, mac, "lab device", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PendingStatusApproved, entry.Status)
	assert.Equal(t, "lab device", entry.Notes)
	require.NotNil(t, entry.DecidedAt)

	require.NoError(t, s.MarkOnboarded(ctx, mac))
	got, err := s.GetByMAC(ctx, mac)
	require.NoError(t, err)
	assert.Equal(t, domain.PendingStatusOnboarded, got.Status)

	// Finalizing twice is a no-op.
	assert.NoError(t, s.MarkOnboarded(ctx, mac))
}

func TestPendingStore_DecisionsAreIdempotentOnTerminalRows(t *testing.T) {
	s := newPendingStore(t)
	ctx := context.Background()
	mac := "AA:BB:CC:DD:EE:01"
	enqueue(t, s, mac, "DEV_AA_BB_CC_TEST01")

	_, err := s.Reject(ctx, mac, "unknown vendor", "alice")
	require.NoError(t, err)

	// Approving a rejected row returns it unchanged instead of failing.
	entry, err := s.Approve(ctx, mac, "", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.PendingStatusRejected, entry.Status)
}

func TestPendingStore_OnboardRequiresApproval(t *testing.T) {
	s := newPendingStore(t)
	ctx := context.Background()
	mac := "AA:BB:CC:DD:EE:01"
	enqueue(t, s, mac, "DEV_AA_BB_CC_TEST01")

	err := s.MarkOnboarded(ctx, mac)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPendingStore_TerminalRowIsResetOnReobservation(t *testing.T) {
	s := newPendingStore(t)
	ctx := context.Background()
	mac := "AA:BB:CC:DD:EE:01"
	enqueue(t, s, mac, "DEV_AA_BB_CC_TEST01")
	_, err := s.Reject(ctx, mac, "", "alice")
	require.NoError(t, err)

	fresh, err := domain.NewPendingDevice(mac, "DEV_AA_BB_CC_TEST02", "", "")
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(ctx, fresh))

	got, err := s.GetByMAC(ctx, mac)
	require.NoError(t, err)
	assert.Equal(t, domain.PendingStatusPending, got.Status)
	assert.Equal(t, "DEV_AA_BB_CC_TEST02", got.DeviceID)
}

func TestPendingStore_HistoryAudit(t *testing.T) {
	s := newPendingStore(t)
	ctx := context.Background()
	mac := "AA:BB:CC:DD:EE:01"
	enqueue(t, s, mac, "DEV_AA_BB_CC_TEST01")
	_, err := s.Approve(ctx, mac, "ok", "alice")
	require.NoError(t, err)
	require.NoError(t, s.MarkOnboarded(ctx, mac))

	hist, err := s.History(ctx, mac, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	// Newest first: onboarded, approved, observed.
	assert.Equal(t, domain.PendingStatusOnboarded, hist[0].NewStatus)
	assert.Equal(t, domain.PendingStatusApproved, hist[1].NewStatus)
	assert.Equal(t, "alice", hist[1].Actor)
	assert.Equal(t, domain.PendingStatusPending, hist[2].NewStatus)

	all, err := s.History(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.History(ctx, "garbage", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPendingStore_UnknownMAC(t *testing.T) {
	s := newPendingStore(t)
	ctx := context.Background()

	_, err := s.Approve(ctx, "AA:BB:CC:DD:EE:09", "", "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.GetByMAC(ctx, "not-a-mac")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
