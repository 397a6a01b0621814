package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF"},
		{"AA-BB-CC-DD-EE-FF", "AA:BB:CC:DD:EE:FF"},
		{"00:11:22:33:44:55", "00:11:22:33:44:55"},
		{"aa:bb:cc:dd:ee", ""},
		{"zz:bb:cc:dd:ee:ff", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMAC(tt.in), "input %q", tt.in)
	}
}

func TestIsValidDeviceID(t *testing.T) {
	assert.True(t, IsValidDeviceID("DEV_AA_BB_CC_X1Y2Z3"))
	assert.True(t, IsValidDeviceID("DEV_00_11_22_1700000000000000000"))
	assert.False(t, IsValidDeviceID("DEV_AA_BB_CC_"))
	assert.False(t, IsValidDeviceID("dev_aa_bb_cc_x1y2z3"))
	assert.False(t, IsValidDeviceID("AA_BB_CC_X1Y2Z3"))
}

func TestIsValidInterface(t *testing.T) {
	assert.True(t, IsValidInterface("wlan0"))
	assert.True(t, IsValidInterface("br-lan"))
	assert.False(t, IsValidInterface(""))
	assert.False(t, IsValidInterface("wlan0; rm -rf /"))
	assert.False(t, IsValidInterface("anameway_toolong_iface"))
}
