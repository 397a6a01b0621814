package domain

import "time"

// FlowWindowSize bounds the per-device rolling sample window.
const FlowWindowSize = 100

// FlowSample is one duration-normalized flow counter reading attributed
// to a device.
type FlowSample struct {
	DeviceID    string    `json:"device_id"`
	SwitchID    string    `json:"switch_id"`
	SrcMAC      string    `json:"src_mac"`
	DstIP       string    `json:"dst_ip"`
	DstPort     int       `json:"dst_port"`
	Protocol    string    `json:"protocol"`
	Packets     int64     `json:"packets"`
	Bytes       int64     `json:"bytes"`
	DurationSec float64   `json:"duration_sec"`
	PPS         float64   `json:"pps"`
	BPS         float64   `json:"bps"`
	Timestamp   time.Time `json:"timestamp"`
}

// Normalize fills the rate fields from raw counters. Zero durations are
// treated as one second to avoid division blowups on fresh flows.
func (s *FlowSample) Normalize() {
	d := s.DurationSec
	if d <= 0 {
		d = 1
	}
	s.PPS = float64(s.Packets) / d
	s.BPS = float64(s.Bytes) / d
}

// DeviceStats is the aggregate the anomaly detector consumes.
type DeviceStats struct {
	DeviceID           string  `json:"device_id"`
	TotalPackets       int64   `json:"total_packets"`
	TotalBytes         int64   `json:"total_bytes"`
	AvgPPS             float64 `json:"avg_pps"`
	AvgBPS             float64 `json:"avg_bps"`
	UniqueDestinations int     `json:"unique_destinations"`
	UniquePorts        int     `json:"unique_ports"`
	FlowCount          int     `json:"flow_count"`
	WindowSeconds      float64 `json:"window_seconds"`
}

// PacketInfo is the profiler's per-packet observation.
type PacketInfo struct {
	SrcMAC    string    `json:"src_mac"`
	DstIP     string    `json:"dst_ip"`
	DstPort   int       `json:"dst_port"`
	Protocol  string    `json:"protocol"`
	Size      int       `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}
