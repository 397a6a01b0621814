package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Device ID Generation
//
// IDs take the form DEV_<AA_BB_CC>_<SUFFIX>: the first three MAC octets
// joined by underscores plus a random 6-character suffix. The suffix
// alphabet excludes lowercase to keep IDs filesystem- and log-friendly.

const (
	idSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idSuffixLength   = 6
	idMaxAttempts    = 100
)

// GenerateDeviceID derives a fresh id for the given MAC. taken reports
// whether an id is already in use; after 100 collisions the suffix
// falls back to a timestamp, which is unique by construction.
func GenerateDeviceID(mac string, taken func(id string) bool) (string, error) {
	norm := NormalizeMAC(mac)
	if norm == "" {
		return "", Validationf("malformed MAC %q", mac)
	}
	prefix := "DEV_" + strings.ReplaceAll(norm[:8], ":", "_")

	for attempt := 0; attempt < idMaxAttempts; attempt++ {
		id := prefix + "_" + randomSuffix()
		if taken == nil || !taken(id) {
			return id, nil
		}
	}
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano()), nil
}

func randomSuffix() string {
	buf := make([]byte, idSuffixLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the kernel source is broken;
		// fall back to a time-derived suffix rather than panic.
		return fmt.Sprintf("%06X", time.Now().UnixNano()&0xFFFFFF)
	}
	var sb strings.Builder
	for _, b := range buf {
		sb.WriteByte(idSuffixAlphabet[int(b)%len(idSuffixAlphabet)])
	}
	return sb.String()
}
