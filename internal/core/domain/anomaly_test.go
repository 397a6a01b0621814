package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Severity
	}{
		{100, SeverityHigh},
		{70, SeverityHigh},
		{69, SeverityMedium},
		{40, SeverityMedium},
		{39, SeverityLow},
		{20, SeverityLow},
		{19, SeverityNone},
		{0, SeverityNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityForScore(tt.score), "score %d", tt.score)
	}
}

func TestDominantAnomalyType_Precedence(t *testing.T) {
	assert.Equal(t, AnomalyDoS, DominantAnomalyType(map[AnomalyType]bool{
		AnomalyDoS: true, AnomalyScanning: true, AnomalyPortScanning: true,
	}))
	assert.Equal(t, AnomalyVolumeAttack, DominantAnomalyType(map[AnomalyType]bool{
		AnomalyVolumeAttack: true, AnomalyPortScanning: true,
	}))
	assert.Equal(t, AnomalyPortScanning, DominantAnomalyType(map[AnomalyType]bool{
		AnomalyPortScanning: true,
	}))
	assert.Equal(t, AnomalyGeneric, DominantAnomalyType(nil))
}

func TestTrustDeltas(t *testing.T) {
	assert.Equal(t, -5, AnomalyDelta(SeverityLow))
	assert.Equal(t, -15, AnomalyDelta(SeverityMedium))
	assert.Equal(t, -30, AnomalyDelta(SeverityHigh))
	assert.Equal(t, 0, AnomalyDelta(SeverityNone))

	assert.Equal(t, -10, AlertDelta(SeverityLow))
	assert.Equal(t, -20, AlertDelta(SeverityMedium))
	assert.Equal(t, -40, AlertDelta(SeverityHigh))
	assert.Equal(t, 0, AlertDelta(SeverityNone))
}

func TestClipTrustScore(t *testing.T) {
	assert.Equal(t, 0, ClipTrustScore(-10))
	assert.Equal(t, 0, ClipTrustScore(0))
	assert.Equal(t, 55, ClipTrustScore(55))
	assert.Equal(t, 100, ClipTrustScore(100))
	assert.Equal(t, 100, ClipTrustScore(140))
}
