// Package forwarding is the packet-in decision engine: MAC learning, block
// enforcement, and navigator-assisted output-port selection.
package forwarding

import (
	"log"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"SentiNet/internal/config"
	"SentiNet/internal/metrics"
	"SentiNet/internal/mitigation"
	"SentiNet/internal/model"
	"SentiNet/internal/navigator"
	"SentiNet/internal/registry"
	"SentiNet/internal/topology"
)

const forwardPriority = 1

// PacketIn is one unmatched frame forwarded to the controller.
type PacketIn struct {
	SwitchID string
	InPort   uint32
	Data     []byte
}

// Engine combines MAC learning, the block check, and navigator path lookup
// into a single output-port decision per packet.
type Engine struct {
	cfg       config.ControllerConfig
	topo      *topology.Topology
	reg       *registry.Registry
	mitigator *mitigation.Manager
	nav       *navigator.Navigator // nil when navigator routing is disabled
}

// NewEngine wires the forwarding engine. Pass a nil navigator to disable
// adaptive routing; unknown destinations then flood.
func NewEngine(cfg config.ControllerConfig, topo *topology.Topology, reg *registry.Registry,
	mitigator *mitigation.Manager, nav *navigator.Navigator) *Engine {
	return &Engine{cfg: cfg, topo: topo, reg: reg, mitigator: mitigator, nav: nav}
}

// HandlePacketIn runs the full decision pipeline for one frame. It never
// returns an error: every failure mode degrades to flooding or a silent
// drop.
func (e *Engine) HandlePacketIn(ev PacketIn) {
	srcMAC, dstMAC, ethType, ok := decodeEthernet(ev.Data)
	if !ok {
		return
	}

	// Link-layer discovery and IPv6 control traffic are non-routable noise.
	if ethType == layers.EthernetTypeLinkLayerDiscovery || ethType == layers.EthernetTypeIPv6 {
		return
	}

	metrics.PacketsHandled.Inc()

	e.reg.LearnSource(ev.SwitchID, srcMAC, ev.InPort)

	if e.mitigator.IsBlocked(srcMAC, dstMAC) {
		metrics.PacketsDroppedBlocked.Inc()
		log.Printf("[BLOCK] Dropping packet from blocked flow: %s -> %s", srcMAC, dstMAC)
		return
	}

	outPort, known := e.reg.LookupPort(ev.SwitchID, dstMAC)
	if !known {
		outPort = e.routeUnknown(ev.SwitchID, srcMAC, dstMAC)
	}

	dp, ok := e.reg.Datapath(ev.SwitchID)
	if !ok {
		// Switch went away mid-decision; nothing to send to.
		return
	}

	if outPort != model.PortFlood {
		rule := model.FlowRule{
			Priority: forwardPriority,
			Match:    model.FlowMatch{InPort: ev.InPort, SrcMAC: srcMAC, DstMAC: dstMAC},
			Actions:  []uint32{outPort},
		}
		if e.nav != nil {
			// Short idle timeout so path changes from re-learning are
			// picked up instead of being pinned by a stale rule.
			rule.IdleTimeout = e.cfg.RoutedIdleTimeoutSec
		} else {
			rule.IdleTimeout = e.cfg.FlowIdleTimeoutSec
			rule.HardTimeout = e.cfg.FlowHardTimeoutSec
		}
		if err := dp.InstallFlow(rule); err != nil {
			log.Printf("[FLOW] Failed to install rule on %s: %v", ev.SwitchID, err)
		}
	} else {
		metrics.PacketsFlooded.Inc()
	}

	if err := dp.SendPacketOut(ev.InPort, outPort, ev.Data); err != nil {
		log.Printf("[FLOW] Packet-out failed on %s: %v", ev.SwitchID, err)
	}
}

// routeUnknown consults the navigator for a path between the hosts and
// translates it to an output port. Any unresolvable step floods.
func (e *Engine) routeUnknown(switchID, srcMAC, dstMAC string) uint32 {
	if e.nav == nil {
		return model.PortFlood
	}

	path := e.nav.GetPathForHosts(srcMAC, dstMAC, e.topo.HostSwitchMap())
	if len(path) == 0 {
		return model.PortFlood
	}
	metrics.PathsComputed.Inc()

	port, ok := e.pathToPort(switchID, path, dstMAC)
	if !ok {
		return model.PortFlood
	}
	return port
}

// pathToPort locates this switch in the path and maps to a concrete port:
// the learned host port when this switch is the last hop, otherwise the
// derived adjacency port toward the next hop.
func (e *Engine) pathToPort(switchID string, path []string, dstMAC string) (uint32, bool) {
	idx := -1
	for i, sw := range path {
		if sw == switchID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, false
	}

	if idx == len(path)-1 {
		return e.reg.LookupPort(switchID, dstMAC)
	}
	return e.topo.PortBetween(switchID, path[idx+1])
}

// decodeEthernet extracts the MAC pair and ethertype from a raw frame.
func decodeEthernet(data []byte) (src, dst string, ethType layers.EthernetType, ok bool) {
	var eth layers.Ethernet
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth)
	parser.IgnoreUnsupported = true

	var decoded []gopacket.LayerType
	if err := parser.DecodeLayers(data, &decoded); err != nil {
		return "", "", 0, false
	}
	for _, layer := range decoded {
		if layer == layers.LayerTypeEthernet {
			return eth.SrcMAC.String(), eth.DstMAC.String(), eth.EthernetType, true
		}
	}
	return "", "", 0, false
}
