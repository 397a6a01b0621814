package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingStatus_Transitions(t *testing.T) {
	assert.True(t, PendingStatusPending.CanTransition(PendingStatusApproved))
	assert.True(t, PendingStatusPending.CanTransition(PendingStatusRejected))
	assert.True(t, PendingStatusApproved.CanTransition(PendingStatusOnboarded))

	// Terminal states never move.
	assert.False(t, PendingStatusRejected.CanTransition(PendingStatusApproved))
	assert.False(t, PendingStatusRejected.CanTransition(PendingStatusPending))
	assert.False(t, PendingStatusOnboarded.CanTransition(PendingStatusRejected))

	// No skipping pending -> onboarded.
	assert.False(t, PendingStatusPending.CanTransition(PendingStatusOnboarded))
	assert.False(t, PendingStatusApproved.CanTransition(PendingStatusRejected))
}

func TestPendingStatus_IsTerminal(t *testing.T) {
	assert.False(t, PendingStatusPending.IsTerminal())
	assert.False(t, PendingStatusApproved.IsTerminal())
	assert.True(t, PendingStatusRejected.IsTerminal())
	assert.True(t, PendingStatusOnboarded.IsTerminal())
}

func TestNewPendingDevice(t *testing.T) {
	p, err := NewPendingDevice("aa-bb-cc-dd-ee-ff", "DEV_AA_BB_CC_XYZ123", "camera", "")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", p.MAC)
	assert.Equal(t, PendingStatusPending, p.Status)
	assert.Nil(t, p.DecidedAt)

	_, err = NewPendingDevice("bogus", "DEV_AA_BB_CC_XYZ123", "", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewPendingDevice("AA:BB:CC:DD:EE:FF", "", "", "")
	assert.ErrorIs(t, err, ErrValidation)
}
