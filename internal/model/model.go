package model

import (
	"time"
)

// ConnectionState tracks the protocol-level lifecycle of a switch.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateActive
	StateDead
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDead:
		return "dead"
	}
	return "unknown"
}

// Reserved OpenFlow port numbers used by forwarding decisions.
const (
	PortFlood      uint32 = 0xfffffffb
	PortController uint32 = 0xfffffffd
)

// FlowKey identifies a single MAC-pair flow on a specific switch.
type FlowKey struct {
	SwitchID string
	SrcMAC   string
	DstMAC   string
}

// FlowSample is the last observed counter state for a FlowKey, retained
// only to compute deltas on the next stats poll.
type FlowSample struct {
	PacketCount uint64
	ByteCount   uint64
	Timestamp   time.Time
}

// FlowRecord is one per-flow measurement produced by a stats poll cycle.
// PPS and BPS are instantaneous rates derived from counter deltas, not
// lifetime averages.
type FlowRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	SwitchID    string    `json:"switch_id"`
	SrcMAC      string    `json:"src_mac"`
	DstMAC      string    `json:"dst_mac"`
	InPort      uint32    `json:"in_port"`
	OutPort     uint32    `json:"out_port"`
	PacketCount uint64    `json:"packet_count"`
	ByteCount   uint64    `json:"byte_count"`
	PPS         float64   `json:"pps"`
	BPS         float64   `json:"bps"`
	AvgPktSize  float64   `json:"avg_pkt_size"`
}

// Verdict is the result of classifying a single flow's rate features.
type Verdict struct {
	IsThreat   bool    `json:"is_threat"`
	AttackType string  `json:"attack_type"`
	Confidence float64 `json:"confidence"`
}

// Alert describes a confirmed attack and the mitigation applied.
type Alert struct {
	Attacker         string  `json:"attacker_mac"`
	Target           string  `json:"target_mac"`
	AttackType       string  `json:"attack_type"`
	PPS              float64 `json:"pps"`
	BPS              float64 `json:"bps"`
	ActionTaken      string  `json:"action_taken"`
	BlockDurationSec int     `json:"block_duration_sec"`
}

// PendingCommand is an externally requested action retrieved from the bridge.
type PendingCommand struct {
	Command     string `json:"command"`
	Target      string `json:"target"`
	DurationSec int    `json:"duration_sec"`
}

// FlowMatch selects traffic for a flow rule. Zero/empty fields are wildcards.
type FlowMatch struct {
	InPort uint32
	SrcMAC string
	DstMAC string
}

// FlowRule is a forwarding entry to install on a switch. An empty action
// list means drop.
type FlowRule struct {
	Priority    int
	Match       FlowMatch
	Actions     []uint32
	IdleTimeout int
	HardTimeout int
}

// RawFlowStat is a single entry of a flow-stats reply as reported by a
// switch, before delta computation.
type RawFlowStat struct {
	Priority    int
	SrcMAC      string
	DstMAC      string
	InPort      uint32
	OutPort     uint32
	PacketCount uint64
	ByteCount   uint64
	DurationSec float64
}

// Datapath is the protocol-side capability of a connected switch: the
// controller installs rules and emits packets through it, nothing more.
type Datapath interface {
	InstallFlow(rule FlowRule) error
	SendPacketOut(inPort, outPort uint32, data []byte) error
	RequestFlowStats() error
}

// Classifier is the external threat-classification capability. It must be
// safely callable before a model is available; implementations signal that
// condition with ErrClassifierUnavailable so callers can fall back to
// threshold detection.
type Classifier interface {
	Classify(pps, bps, avgPktSize float64) (Verdict, error)
}

// Bridge is the gateway to the external visualization/alerting backend.
// All publish calls must return immediately; delivery is best-effort.
type Bridge interface {
	PublishTopology(topology interface{})
	PublishStats(switchID string, records []FlowRecord)
	PublishAlert(alert Alert)
	PollPendingCommand() (PendingCommand, bool)
}

// RecordWriter persists flow records for offline analysis or training.
type RecordWriter interface {
	Write(records []FlowRecord) error
}
