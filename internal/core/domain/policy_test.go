package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustLevelFor_Buckets(t *testing.T) {
	tests := []struct {
		score int
		level TrustLevel
	}{
		{100, TrustTrusted},
		{70, TrustTrusted},
		{69, TrustMonitored},
		{50, TrustMonitored},
		{49, TrustSuspicious},
		{30, TrustSuspicious},
		{29, TrustUntrusted},
		{0, TrustUntrusted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, TrustLevelFor(tt.score), "score %d", tt.score)
	}
}

func TestActionForTrustLevel(t *testing.T) {
	assert.Equal(t, ActionAllow, ActionForTrustLevel(TrustTrusted))
	assert.Equal(t, ActionRedirect, ActionForTrustLevel(TrustMonitored))
	assert.Equal(t, ActionDeny, ActionForTrustLevel(TrustSuspicious))
	assert.Equal(t, ActionQuarantine, ActionForTrustLevel(TrustUntrusted))
}

func TestPolicyAction_IsValid(t *testing.T) {
	for _, a := range []PolicyAction{ActionAllow, ActionDeny, ActionRedirect, ActionQuarantine} {
		assert.True(t, a.IsValid())
	}
	assert.False(t, PolicyAction("drop").IsValid())
	assert.False(t, PolicyAction("").IsValid())
}
