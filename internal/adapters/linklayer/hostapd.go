// Package linklayer produces candidate station MACs from the access
// layer. Three sources ship: a hostapd log tail, a procfs ARP table
// poll, and a live ARP capture.
package linklayer

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"sync"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

var staConnectedRegex = regexp.MustCompile(`AP-STA-(?:CONNECTED|POLL-OK)\s+([0-9A-Fa-f:]{17})`)

// HostapdSource tails a hostapd log for station association events.
// Each Poll reads only the bytes appended since the previous call;
// log rotation resets the offset.
type HostapdSource struct {
	path   string
	mu     sync.Mutex
	offset int64
}

var _ ports.LinkLayerSource = (*HostapdSource)(nil)

// NewHostapdSource watches the given hostapd log path.
func NewHostapdSource(path string) *HostapdSource {
	return &HostapdSource{path: path}
}

// Poll returns the normalized MACs that associated since the last call.
func (h *HostapdSource) Poll(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < h.offset {
		h.offset = 0
	}
	if _, err := f.Seek(h.offset, 0); err != nil {
		return nil, err
	}

	var macs []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return macs, ctx.Err()
		}
		m := staConnectedRegex.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		mac := domain.NormalizeMAC(m[1])
		if mac != "" && !seen[mac] {
			seen[mac] = true
			macs = append(macs, mac)
		}
	}
	if err := scanner.Err(); err != nil {
		return macs, err
	}
	h.offset = info.Size()
	return macs, nil
}
