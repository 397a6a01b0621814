package dataplane

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztlan/warden/internal/core/domain"
)

const devID = "DEV_AA_BB_CC_TEST01"

func TestMemoryInstaller_InstallAndQuery(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	match := map[string]string{domain.MatchEthSrc: "AA:BB:CC:DD:EE:FF"}

	require.NoError(t, m.Install(ctx, devID, domain.ActionDeny, match, 100))

	r, ok := m.Rule(devID)
	require.True(t, ok)
	assert.Equal(t, domain.ActionDeny, r.Action)
	assert.Equal(t, 100, r.Priority)
	assert.Equal(t, match, r.Match)
}

func TestMemoryInstaller_IdenticalReinstallKeepsState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	match := map[string]string{domain.MatchEthSrc: "AA:BB:CC:DD:EE:FF"}

	require.NoError(t, m.Install(ctx, devID, domain.ActionDeny, match, 100))
	first, _ := m.Rule(devID)

	require.NoError(t, m.Install(ctx, devID, domain.ActionDeny, match, 100))
	second, _ := m.Rule(devID)
	assert.Equal(t, first.Installed, second.Installed)

	// A different action replaces the rule.
	require.NoError(t, m.Install(ctx, devID, domain.ActionQuarantine, match, 100))
	third, _ := m.Rule(devID)
	assert.Equal(t, domain.ActionQuarantine, third.Action)
}

func TestMemoryInstaller_InvalidAction(t *testing.T) {
	m := NewMemory()
	err := m.Install(context.Background(), devID, domain.PolicyAction("shred"), nil, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMemoryInstaller_InstallCopiesMatch(t *testing.T) {
	m := NewMemory()
	match := map[string]string{domain.MatchEthSrc: "AA:BB:CC:DD:EE:FF"}
	require.NoError(t, m.Install(context.Background(), devID, domain.ActionAllow, match, 10))

	match[domain.MatchEthSrc] = "mutated"
	r, _ := m.Rule(devID)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", r.Match[domain.MatchEthSrc])
}

func TestMemoryInstaller_Remove(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Install(ctx, devID, domain.ActionAllow, nil, 10))
	require.NoError(t, m.Remove(ctx, devID))

	_, ok := m.Rule(devID)
	assert.False(t, ok)
	assert.Empty(t, m.Rules())

	// Removing again is harmless.
	assert.NoError(t, m.Remove(ctx, devID))
}

func TestMemoryInstaller_RulesSortedByDevice(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Install(ctx, "DEV_B", domain.ActionAllow, nil, 10))
	require.NoError(t, m.Install(ctx, "DEV_A", domain.ActionDeny, nil, 20))

	rules := m.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "DEV_A", rules[0].DeviceID)
	assert.Equal(t, "DEV_B", rules[1].DeviceID)
}

func TestMemoryInstaller_FlowSeeding(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.SeedFlows("sw2", []*domain.FlowSample{{SrcMAC: "aa:bb:cc:dd:ee:ff", Packets: 3}})
	m.SeedFlows("sw1", []*domain.FlowSample{{SrcMAC: "11:22:33:44:55:66", Packets: 1}})

	ids, err := m.SwitchIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sw1", "sw2"}, ids)

	flows, err := m.QueryFlows(ctx, "sw2")
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, int64(3), flows[0].Packets)

	none, err := m.QueryFlows(ctx, "sw9")
	require.NoError(t, err)
	assert.Empty(t, none)
}
