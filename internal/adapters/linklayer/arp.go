package linklayer

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

const procNetARP = "/proc/net/arp"

// ARPTableSource reads the kernel ARP table. It is the fallback when no
// hostapd log is configured; it sees wired neighbors too.
type ARPTableSource struct {
	path  string
	iface string
}

var _ ports.LinkLayerSource = (*ARPTableSource)(nil)

// NewARPTableSource reads /proc/net/arp, optionally filtered to one interface.
func NewARPTableSource(iface string) *ARPTableSource {
	return &ARPTableSource{path: procNetARP, iface: iface}
}

// Poll returns all MACs currently present in the ARP table.
func (a *ARPTableSource) Poll(ctx context.Context) ([]string, error) {
	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var macs []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	scanner.Scan() // header row
	for scanner.Scan() {
		if ctx.Err() != nil {
			return macs, ctx.Err()
		}
		// IP address, HW type, Flags, HW address, Mask, Device
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		if a.iface != "" && fields[5] != a.iface {
			continue
		}
		mac := domain.NormalizeMAC(fields[3])
		if mac == "" || mac == "00:00:00:00:00:00" || seen[mac] {
			continue
		}
		seen[mac] = true
		macs = append(macs, mac)
	}
	return macs, scanner.Err()
}
