package linklayer

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/ports"
)

// ARPSniffer captures ARP traffic live and buffers sender MACs for the
// admission poller. Requires root and a capture-capable interface; most
// deployments use the hostapd or procfs source instead.
type ARPSniffer struct {
	handle *pcap.Handle

	mu      sync.Mutex
	pending []string
	seen    map[string]bool

	stop chan struct{}
	done chan struct{}
}

var _ ports.LinkLayerSource = (*ARPSniffer)(nil)

// NewARPSniffer opens the interface and starts the capture loop.
func NewARPSniffer(iface string) (*ARPSniffer, error) {
	if !domain.IsValidInterface(iface) {
		return nil, domain.Validationf("bad interface name %q", iface)
	}
	handle, err := pcap.OpenLive(iface, 65536, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrUnavailable, iface, err)
	}
	if err := handle.SetBPFFilter("arp"); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set bpf filter: %w", err)
	}

	s := &ARPSniffer{
		handle: handle,
		seen:   make(map[string]bool),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

func (s *ARPSniffer) loop() {
	defer close(s.done)
	src := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	for {
		select {
		case <-s.stop:
			return
		case packet, ok := <-src.Packets():
			if !ok {
				return
			}
			s.ingest(packet)
		}
	}
}

func (s *ARPSniffer) ingest(packet gopacket.Packet) {
	arpLayer := packet.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		return
	}
	arp, ok := arpLayer.(*layers.ARP)
	if !ok {
		return
	}
	mac := domain.NormalizeMAC(net.HardwareAddr(arp.SourceHwAddress).String())
	if mac == "" {
		return
	}
	s.mu.Lock()
	if !s.seen[mac] {
		s.seen[mac] = true
		s.pending = append(s.pending, mac)
	}
	s.mu.Unlock()
}

// Poll drains the buffered MACs captured since the last call.
func (s *ARPSniffer) Poll(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	// Allow a MAC to reappear after it has been drained once; the
	// admission service does its own known-set dedup.
	s.seen = make(map[string]bool)
	return out, nil
}

// Close stops the capture loop and releases the handle.
func (s *ARPSniffer) Close() {
	close(s.stop)
	s.handle.Close()
	<-s.done
	log.Printf("arp sniffer stopped")
}
