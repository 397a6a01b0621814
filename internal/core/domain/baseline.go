package domain

import (
	"sort"
	"time"
)

// FreqEntry is one key of a frequency map, ordered by count.
type FreqEntry struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Baseline is the statistical summary of a device's learned normal
// traffic, produced once the profiling window closes.
type Baseline struct {
	DeviceID        string           `json:"device_id"`
	AvgPPS          float64          `json:"avg_pps"`
	AvgBPS          float64          `json:"avg_bps"`
	AvgPacketSize   float64          `json:"avg_packet_size"`
	TotalPackets    int64            `json:"total_packets"`
	TotalBytes      int64            `json:"total_bytes"`
	TopDestinations []FreqEntry      `json:"top_destinations"`
	TopPorts        []FreqEntry      `json:"top_ports"`
	Protocols       map[string]int64 `json:"protocols"`
	WindowSeconds   float64          `json:"window_seconds"`
	LimitedTraffic  bool             `json:"limited_traffic,omitempty"`
	CreatedAt       string           `json:"created_at"`
}

// UniqueDestinations is the distinct destination count observed during profiling.
func (b *Baseline) UniqueDestinations() int {
	return len(b.TopDestinations)
}

// UniquePorts is the distinct port count observed during profiling.
func (b *Baseline) UniquePorts() int {
	return len(b.TopPorts)
}

// TopN sorts a frequency map descending by count and keeps the first n keys.
// Ties break on key for deterministic output.
func TopN(freq map[string]int64, n int) []FreqEntry {
	entries := make([]FreqEntry, 0, len(freq))
	for k, v := range freq {
		entries = append(entries, FreqEntry{Key: k, Count: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// NewBaselineTimestamp formats baseline creation times the way the wire
// format expects them.
func NewBaselineTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
