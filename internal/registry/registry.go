// Package registry tracks connected datapaths and their learned MAC tables.
package registry

import (
	"fmt"
	"log"
	"sync"

	"SentiNet/internal/model"
)

// Switch is one managed datapath and its learned L2 state.
type Switch struct {
	ID       string
	DPID     uint64
	State    model.ConnectionState
	datapath model.Datapath
	macTable map[string]uint32
}

// Registry owns the lifecycle of connected switches. All access goes
// through the registry mutex; callers receive copies, never live maps.
type Registry struct {
	mu       sync.RWMutex
	switches map[string]*Switch
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{switches: make(map[string]*Switch)}
}

// HandleConnect registers a switch, installs the table-miss rule that sends
// unknown traffic to the controller, and marks the switch Active.
func (r *Registry) HandleConnect(switchID string, dpid uint64, dp model.Datapath) error {
	rule := model.FlowRule{
		Priority: 0,
		Actions:  []uint32{model.PortController},
	}
	if err := dp.InstallFlow(rule); err != nil {
		return fmt.Errorf("failed to install table-miss on %s: %w", switchID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sw, ok := r.switches[switchID]
	if !ok {
		sw = &Switch{ID: switchID, DPID: dpid, macTable: make(map[string]uint32)}
		r.switches[switchID] = sw
	}
	sw.DPID = dpid
	sw.datapath = dp
	sw.State = model.StateActive
	log.Printf("[SWITCH] %s connected (dpid=%d)", switchID, dpid)
	return nil
}

// HandleDisconnect marks a switch Dead and purges its MAC table. The table
// is purged rather than retained: after a reconnect the attachment ports
// may have changed, and stale entries would misdirect traffic.
func (r *Registry) HandleDisconnect(switchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sw, ok := r.switches[switchID]
	if !ok {
		return
	}
	sw.State = model.StateDead
	sw.datapath = nil
	sw.macTable = make(map[string]uint32)
	log.Printf("[SWITCH] %s disconnected", switchID)
}

// LearnSource records the port a source MAC was observed on. Last writer
// wins, matching flat L2 learning semantics.
func (r *Registry) LearnSource(switchID, mac string, port uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sw, ok := r.switches[switchID]
	if !ok || sw.State != model.StateActive {
		return
	}
	sw.macTable[mac] = port
}

// LookupPort returns the learned port for a MAC on a switch.
func (r *Registry) LookupPort(switchID, mac string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sw, ok := r.switches[switchID]
	if !ok {
		return 0, false
	}
	port, ok := sw.macTable[mac]
	return port, ok
}

// Datapath returns the datapath handle for an Active switch.
func (r *Registry) Datapath(switchID string) (model.Datapath, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sw, ok := r.switches[switchID]
	if !ok || sw.State != model.StateActive || sw.datapath == nil {
		return nil, false
	}
	return sw.datapath, true
}

// ActiveDatapaths returns a snapshot of every Active switch's datapath,
// keyed by switch id. Used by the stats poller and the mitigation manager.
func (r *Registry) ActiveDatapaths() map[string]model.Datapath {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.Datapath)
	for id, sw := range r.switches {
		if sw.State == model.StateActive && sw.datapath != nil {
			out[id] = sw.datapath
		}
	}
	return out
}

// ActiveCount returns the number of Active switches.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sw := range r.switches {
		if sw.State == model.StateActive {
			n++
		}
	}
	return n
}

// SwitchInfo is a read-only snapshot of one switch for the admin API.
type SwitchInfo struct {
	ID       string            `json:"id"`
	DPID     uint64            `json:"dpid"`
	State    string            `json:"state"`
	MACTable map[string]uint32 `json:"mac_table"`
}

// Snapshot returns a copy of all switch state.
func (r *Registry) Snapshot() []SwitchInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SwitchInfo, 0, len(r.switches))
	for _, sw := range r.switches {
		tbl := make(map[string]uint32, len(sw.macTable))
		for mac, port := range sw.macTable {
			tbl[mac] = port
		}
		out = append(out, SwitchInfo{ID: sw.ID, DPID: sw.DPID, State: sw.State.String(), MACTable: tbl})
	}
	return out
}
