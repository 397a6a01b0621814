package profiler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

type fakeStore struct {
	ports.IdentityStore
	baselines map[string]*domain.Baseline
}

func newFakeStore() *fakeStore {
	return &fakeStore{baselines: make(map[string]*domain.Baseline)}
}

func (f *fakeStore) SaveBaseline(ctx context.Context, deviceID string, b *domain.Baseline) error {
	f.baselines[deviceID] = b
	return nil
}

func TestProfiler_FinalizeComputesBaseline(t *testing.T) {
	store := newFakeStore()
	p := New(store, 300*time.Second)

	start := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return start }
	p.Begin("DEV_AA_BB_CC_TEST01")

	for i := 0; i < 10; i++ {
		p.Record("DEV_AA_BB_CC_TEST01", &domain.PacketInfo{
			DstIP:    "10.0.0.5",
			DstPort:  443,
			Protocol: "tcp",
			Size:     100,
		})
	}
	p.Record("DEV_AA_BB_CC_TEST01", &domain.PacketInfo{
		DstIP: "10.0.0.9", DstPort: 53, Protocol: "udp", Size: 60,
	})

	p.now = func() time.Time { return start.Add(300 * time.Second) }
	b, err := p.Finalize(context.Background(), "DEV_AA_BB_CC_TEST01")
	require.NoError(t, err)

	assert.InDelta(t, 11.0/300.0, b.AvgPPS, 1e-9)
	assert.InDelta(t, 1060.0/300.0, b.AvgBPS, 1e-9)
	assert.Equal(t, int64(11), b.TotalPackets)
	assert.False(t, b.LimitedTraffic)
	require.Len(t, b.TopDestinations, 2)
	assert.Equal(t, "10.0.0.5", b.TopDestinations[0].Key)
	assert.Equal(t, int64(10), b.TopDestinations[0].Count)
	assert.Equal(t, int64(10), b.Protocols["tcp"])
	assert.Same(t, b, store.baselines["DEV_AA_BB_CC_TEST01"])

	// Accumulator is gone after finalize.
	_, _, active := p.Status("DEV_AA_BB_CC_TEST01")
	assert.False(t, active)
}

func TestProfiler_LimitedTraffic(t *testing.T) {
	store := newFakeStore()
	p := New(store, 300*time.Second)
	p.Begin("dev")
	p.Record("dev", &domain.PacketInfo{DstIP: "10.0.0.1", Size: 40})

	b, err := p.Finalize(context.Background(), "dev")
	require.NoError(t, err)
	assert.True(t, b.LimitedTraffic)
	assert.Equal(t, int64(1), b.TotalPackets)
}

func TestProfiler_TopListsCapAtTen(t *testing.T) {
	store := newFakeStore()
	p := New(store, time.Second)
	p.Begin("dev")
	for i := 0; i < 15; i++ {
		p.Record("dev", &domain.PacketInfo{
			DstIP:   fmt.Sprintf("10.0.0.%d", i),
			DstPort: 1000 + i,
			Size:    10,
		})
	}
	b, err := p.Finalize(context.Background(), "dev")
	require.NoError(t, err)
	assert.Len(t, b.TopDestinations, 10)
	assert.Len(t, b.TopPorts, 10)
}

func TestProfiler_FinalizeWithoutActiveWindow(t *testing.T) {
	p := New(newFakeStore(), time.Second)
	_, err := p.Finalize(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProfiler_FinalizeExpired(t *testing.T) {
	store := newFakeStore()
	p := New(store, 300*time.Second)

	start := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return start }
	p.Begin("expired")
	p.Record("expired", &domain.PacketInfo{DstIP: "10.0.0.1", Size: 10})

	p.now = func() time.Time { return start.Add(100 * time.Second) }
	p.Begin("fresh")

	p.now = func() time.Time { return start.Add(301 * time.Second) }
	out := p.FinalizeExpired(context.Background())
	require.Len(t, out, 1)
	assert.Contains(t, out, "expired")
	assert.Contains(t, p.Active(), "fresh")
}

func TestProfiler_RecordIgnoredWithoutBegin(t *testing.T) {
	p := New(newFakeStore(), time.Second)
	p.Record("nobody", &domain.PacketInfo{Size: 10})
	assert.Empty(t, p.Active())
}
