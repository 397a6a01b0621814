package domain

import (
	"regexp"
	"strings"
)

// Validation Helpers

var (
	macRegex       = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)
	interfaceRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
	deviceIDRegex  = regexp.MustCompile(`^DEV_[0-9A-F]{2}_[0-9A-F]{2}_[0-9A-F]{2}_[A-Z0-9]+$`)
)

// IsValidMAC checks if the string is a valid MAC address
func IsValidMAC(mac string) bool {
	return macRegex.MatchString(mac)
}

// IsValidInterface checks if the string is a safe interface name (alphanumeric + - _)
func IsValidInterface(iface string) bool {
	// IFNAMSIZ is 16 on Linux
	if len(iface) == 0 || len(iface) > 16 {
		return false
	}
	return interfaceRegex.MatchString(iface)
}

// IsValidDeviceID checks if the string follows the DEV_<octets>_<suffix> scheme.
func IsValidDeviceID(id string) bool {
	return deviceIDRegex.MatchString(id)
}

// NormalizeMAC canonicalizes a MAC address to uppercase colon-separated form.
// Returns an empty string when the input is not a MAC.
func NormalizeMAC(mac string) string {
	if !IsValidMAC(mac) {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(mac, "-", ":"))
}
