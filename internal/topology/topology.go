// Package topology holds the static network descriptor and the derived
// switch-port adjacency. Port numbers are order-dependent: the emulator
// assigns them incrementally as hosts and links are attached, so the
// derivation here must replay declarations in the exact order hosts then
// links appear in the descriptor, or routing will target wrong ports.
package topology

import (
	"fmt"

	"SentiNet/internal/config"
)

// Link is one switch-to-switch link with its derived port numbers.
type Link struct {
	From          string
	To            string
	BandwidthMbps float64
	DelayMs       float64
	FromPort      uint32
	ToPort        uint32
}

// Topology is the immutable view of the network the controller manages.
type Topology struct {
	switches    []config.SwitchDef
	hosts       []config.HostDef
	links       []Link
	byDPID      map[uint64]string
	byID        map[string]config.SwitchDef
	hostByMAC   map[string]config.HostDef
	hostPort    map[string]uint32            // host id -> port on its switch
	switchPorts map[[2]string]uint32         // (from, to) -> port on from
	portPeer    map[string]map[uint32]string // switch -> port -> neighbor switch
}

// New validates the descriptor and derives the port map. Any inconsistency
// is a fatal configuration error: the controller must refuse to start
// rather than silently misroute.
func New(desc config.TopologyConfig) (*Topology, error) {
	t := &Topology{
		switches:    desc.Switches,
		hosts:       desc.Hosts,
		byDPID:      make(map[uint64]string),
		byID:        make(map[string]config.SwitchDef),
		hostByMAC:   make(map[string]config.HostDef),
		hostPort:    make(map[string]uint32),
		switchPorts: make(map[[2]string]uint32),
		portPeer:    make(map[string]map[uint32]string),
	}

	counters := make(map[string]uint32)
	for _, sw := range desc.Switches {
		if _, dup := t.byID[sw.ID]; dup {
			return nil, fmt.Errorf("duplicate switch id %q", sw.ID)
		}
		if other, dup := t.byDPID[sw.DPID]; dup {
			return nil, fmt.Errorf("duplicate dpid %d (switches %q and %q)", sw.DPID, other, sw.ID)
		}
		t.byID[sw.ID] = sw
		t.byDPID[sw.DPID] = sw.ID
		counters[sw.ID] = 1 // ports start at 1
		t.portPeer[sw.ID] = make(map[uint32]string)
	}

	// Hosts claim ports first, in declaration order.
	for _, h := range desc.Hosts {
		if _, ok := t.byID[h.Switch]; !ok {
			return nil, fmt.Errorf("host %q attached to unknown switch %q", h.ID, h.Switch)
		}
		if _, dup := t.hostByMAC[h.MAC]; dup {
			return nil, fmt.Errorf("duplicate host MAC %q", h.MAC)
		}
		t.hostByMAC[h.MAC] = h
		t.hostPort[h.ID] = counters[h.Switch]
		counters[h.Switch]++
	}

	// Then switch-to-switch links, in declaration order.
	for _, l := range desc.Links {
		if _, ok := t.byID[l.From]; !ok {
			return nil, fmt.Errorf("link references unknown switch %q", l.From)
		}
		if _, ok := t.byID[l.To]; !ok {
			return nil, fmt.Errorf("link references unknown switch %q", l.To)
		}

		fromPort := counters[l.From]
		counters[l.From]++
		toPort := counters[l.To]
		counters[l.To]++

		t.links = append(t.links, Link{
			From:          l.From,
			To:            l.To,
			BandwidthMbps: l.BandwidthMbps,
			DelayMs:       l.DelayMs,
			FromPort:      fromPort,
			ToPort:        toPort,
		})
		t.switchPorts[[2]string{l.From, l.To}] = fromPort
		t.switchPorts[[2]string{l.To, l.From}] = toPort
		t.portPeer[l.From][fromPort] = l.To
		t.portPeer[l.To][toPort] = l.From
	}

	return t, nil
}

// PortBetween returns the port on "from" that connects to neighbor "to".
func (t *Topology) PortBetween(from, to string) (uint32, bool) {
	p, ok := t.switchPorts[[2]string{from, to}]
	return p, ok
}

// NeighborAt returns the neighbor switch reachable through the given port,
// or "" if the port faces a host.
func (t *Topology) NeighborAt(switchID string, port uint32) (string, bool) {
	peers, ok := t.portPeer[switchID]
	if !ok {
		return "", false
	}
	n, ok := peers[port]
	return n, ok
}

// HostByMAC resolves a host by its MAC address.
func (t *Topology) HostByMAC(mac string) (config.HostDef, bool) {
	h, ok := t.hostByMAC[mac]
	return h, ok
}

// HostSwitch returns the attachment switch of a host MAC.
func (t *Topology) HostSwitch(mac string) (string, bool) {
	h, ok := t.hostByMAC[mac]
	if !ok {
		return "", false
	}
	return h.Switch, true
}

// HostSwitchMap returns MAC -> attachment switch for every known host.
func (t *Topology) HostSwitchMap() map[string]string {
	m := make(map[string]string, len(t.hostByMAC))
	for mac, h := range t.hostByMAC {
		m[mac] = h.Switch
	}
	return m
}

// SwitchByDPID maps a protocol-level datapath id to the stable switch id.
func (t *Topology) SwitchByDPID(dpid uint64) (string, bool) {
	id, ok := t.byDPID[dpid]
	return id, ok
}

// Switches returns the declared switches.
func (t *Topology) Switches() []config.SwitchDef { return t.switches }

// Hosts returns the declared hosts.
func (t *Topology) Hosts() []config.HostDef { return t.hosts }

// Links returns the switch-to-switch links with derived ports.
func (t *Topology) Links() []Link { return t.links }

// Descriptor rebuilds the wire-format topology for publishing to the bridge.
func (t *Topology) Descriptor() map[string]interface{} {
	links := make([]map[string]interface{}, 0, len(t.links))
	for _, l := range t.links {
		links = append(links, map[string]interface{}{
			"from": l.From, "to": l.To,
			"bw_mbps": l.BandwidthMbps, "delay_ms": l.DelayMs,
		})
	}
	return map[string]interface{}{
		"switches": t.switches,
		"hosts":    t.hosts,
		"links":    links,
	}
}
