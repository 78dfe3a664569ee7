// Package stats turns raw per-flow counters from stats replies into
// instantaneous rates by delta computation against the previous sample.
package stats

import (
	"sync"
	"time"

	"SentiNet/internal/model"
	"SentiNet/internal/topology"
)

// hostFlowPriority is the priority forwarding rules are installed with;
// the table-miss catch-all sits at priority 0 and is excluded from stats.
const hostFlowPriority = 1

type sampleEntry struct {
	sample model.FlowSample
	gen    uint64
}

// Engine retains the last counter sample per flow key and produces rate
// records on every poll cycle. Samples absent from two consecutive polls
// of their switch are evicted, bounding the history map on long runs.
type Engine struct {
	mu     sync.Mutex
	prev   map[model.FlowKey]*sampleEntry
	gen    map[string]uint64 // per-switch poll generation
	latest map[string][]model.FlowRecord
}

// NewEngine creates an empty statistics engine.
func NewEngine() *Engine {
	return &Engine{
		prev:   make(map[model.FlowKey]*sampleEntry),
		gen:    make(map[string]uint64),
		latest: make(map[string][]model.FlowRecord),
	}
}

// Record consumes one stats reply for a switch and returns the per-flow
// rate records. A flow seen for the first time reports zero rates for the
// cycle: a lifetime average at cold start would show up as a spurious
// spike to the detector.
func (e *Engine) Record(switchID string, raw []model.RawFlowStat, ts time.Time) []model.FlowRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen[switchID]++
	gen := e.gen[switchID]

	records := make([]model.FlowRecord, 0, len(raw))
	for _, stat := range raw {
		if stat.Priority != hostFlowPriority {
			continue
		}

		key := model.FlowKey{SwitchID: switchID, SrcMAC: stat.SrcMAC, DstMAC: stat.DstMAC}
		var pps, bps float64
		if entry, ok := e.prev[key]; ok {
			dt := ts.Sub(entry.sample.Timestamp).Seconds()
			if dt > 0 {
				pps = (float64(stat.PacketCount) - float64(entry.sample.PacketCount)) / dt
				bps = (float64(stat.ByteCount) - float64(entry.sample.ByteCount)) * 8 / dt
				// Counters can regress if the switch re-installs a rule.
				if pps < 0 {
					pps = 0
				}
				if bps < 0 {
					bps = 0
				}
			}
			entry.sample = model.FlowSample{PacketCount: stat.PacketCount, ByteCount: stat.ByteCount, Timestamp: ts}
			entry.gen = gen
		} else {
			e.prev[key] = &sampleEntry{
				sample: model.FlowSample{PacketCount: stat.PacketCount, ByteCount: stat.ByteCount, Timestamp: ts},
				gen:    gen,
			}
		}

		var avgPktSize float64
		if stat.PacketCount > 0 {
			avgPktSize = float64(stat.ByteCount) / float64(stat.PacketCount)
		}

		records = append(records, model.FlowRecord{
			Timestamp:   ts,
			SwitchID:    switchID,
			SrcMAC:      stat.SrcMAC,
			DstMAC:      stat.DstMAC,
			InPort:      stat.InPort,
			OutPort:     stat.OutPort,
			PacketCount: stat.PacketCount,
			ByteCount:   stat.ByteCount,
			PPS:         pps,
			BPS:         bps,
			AvgPktSize:  avgPktSize,
		})
	}

	// Evict keys this switch has not reported for two consecutive polls.
	for key, entry := range e.prev {
		if key.SwitchID == switchID && gen-entry.gen >= 2 {
			delete(e.prev, key)
		}
	}

	e.latest[switchID] = records
	return records
}

// Forget drops all retained state for a switch, e.g. on disconnect.
func (e *Engine) Forget(switchID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.prev {
		if key.SwitchID == switchID {
			delete(e.prev, key)
		}
	}
	delete(e.latest, switchID)
	delete(e.gen, switchID)
}

// SampleCount reports the size of the retained sample map.
func (e *Engine) SampleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.prev)
}

// LinkUtilization sums the observed BPS of the latest records over each
// directed switch-to-switch link, resolved by mapping a flow's output port
// to the neighbor behind it. Flows leaving through host ports contribute
// nothing.
func (e *Engine) LinkUtilization(topo *topology.Topology) map[[2]string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	usage := make(map[[2]string]float64)
	for switchID, records := range e.latest {
		for _, rec := range records {
			neighbor, ok := topo.NeighborAt(switchID, rec.OutPort)
			if !ok {
				continue
			}
			usage[[2]string{switchID, neighbor}] += rec.BPS
		}
	}
	return usage
}

// LatestRecords returns the most recent records for every switch.
func (e *Engine) LatestRecords() map[string][]model.FlowRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]model.FlowRecord, len(e.latest))
	for id, recs := range e.latest {
		cp := make([]model.FlowRecord, len(recs))
		copy(cp, recs)
		out[id] = cp
	}
	return out
}
