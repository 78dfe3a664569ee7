// Package southbound bridges the switch side to the controller core over
// NATS. Switch agents (or an emulation shim) publish protocol events on
// the event subject; the adapter decodes them into typed controller
// events. Flow mods, packet-outs, and stats requests travel the other way
// on per-switch command subjects.
package southbound

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"SentiNet/internal/controller"
	"SentiNet/internal/model"
)

// wireEvent is the JSON envelope switch agents publish.
type wireEvent struct {
	Type   string         `json:"type"` // switch_up|switch_down|packet_in|stats_reply
	DPID   uint64         `json:"dpid"`
	InPort uint32         `json:"in_port,omitempty"`
	Data   []byte         `json:"data,omitempty"`
	Stats  []wireFlowStat `json:"stats,omitempty"`
}

type wireFlowStat struct {
	Priority    int     `json:"priority"`
	SrcMAC      string  `json:"src_mac"`
	DstMAC      string  `json:"dst_mac"`
	InPort      uint32  `json:"in_port"`
	OutPort     uint32  `json:"out_port"`
	PacketCount uint64  `json:"packet_count"`
	ByteCount   uint64  `json:"byte_count"`
	DurationSec float64 `json:"duration_sec"`
}

// wireCommand is the JSON envelope sent to a switch agent.
type wireCommand struct {
	Type        string   `json:"type"` // flow_mod|packet_out|stats_request
	Priority    int      `json:"priority,omitempty"`
	MatchInPort uint32   `json:"match_in_port,omitempty"`
	MatchSrc    string   `json:"match_src,omitempty"`
	MatchDst    string   `json:"match_dst,omitempty"`
	Actions     []uint32 `json:"actions,omitempty"`
	IdleTimeout int      `json:"idle_timeout,omitempty"`
	HardTimeout int      `json:"hard_timeout,omitempty"`
	InPort      uint32   `json:"in_port,omitempty"`
	OutPort     uint32   `json:"out_port,omitempty"`
	Data        []byte   `json:"data,omitempty"`
}

// Adapter subscribes to the event subject and feeds the controller.
type Adapter struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	prefix string
	ctrl   *controller.Controller
}

// NewAdapter connects to NATS. Subjects are <prefix>.events for inbound
// events and <prefix>.<dpid>.cmd for outbound commands.
func NewAdapter(natsURL, prefix string, ctrl *controller.Controller) (*Adapter, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("[SOUTHBOUND] Connected to NATS server at %s", natsURL)
	return &Adapter{nc: nc, prefix: prefix, ctrl: ctrl}, nil
}

// Start subscribes and begins dispatching events to the controller.
func (a *Adapter) Start() error {
	sub, err := a.nc.Subscribe(a.prefix+".events", func(msg *nats.Msg) {
		var ev wireEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("[SOUTHBOUND] Malformed event: %v", err)
			return
		}
		a.dispatch(ev)
	})
	if err != nil {
		return err
	}
	a.sub = sub
	log.Printf("[SOUTHBOUND] Subscribed to '%s.events'", a.prefix)
	return nil
}

func (a *Adapter) dispatch(ev wireEvent) {
	switch ev.Type {
	case "switch_up":
		a.ctrl.Dispatch(controller.SwitchUp{
			DPID:     ev.DPID,
			Datapath: a.datapath(ev.DPID),
		})
	case "switch_down":
		a.ctrl.Dispatch(controller.SwitchDown{DPID: ev.DPID})
	case "packet_in":
		a.ctrl.Dispatch(controller.PacketIn{DPID: ev.DPID, InPort: ev.InPort, Data: ev.Data})
	case "stats_reply":
		stats := make([]model.RawFlowStat, 0, len(ev.Stats))
		for _, s := range ev.Stats {
			stats = append(stats, model.RawFlowStat{
				Priority:    s.Priority,
				SrcMAC:      s.SrcMAC,
				DstMAC:      s.DstMAC,
				InPort:      s.InPort,
				OutPort:     s.OutPort,
				PacketCount: s.PacketCount,
				ByteCount:   s.ByteCount,
				DurationSec: s.DurationSec,
			})
		}
		a.ctrl.Dispatch(controller.StatsReply{DPID: ev.DPID, Stats: stats, Timestamp: time.Now()})
	default:
		log.Printf("[SOUTHBOUND] Unknown event type %q", ev.Type)
	}
}

func (a *Adapter) datapath(dpid uint64) model.Datapath {
	return &natsDatapath{nc: a.nc, subject: fmt.Sprintf("%s.%d.cmd", a.prefix, dpid)}
}

// Close unsubscribes and closes the NATS connection.
func (a *Adapter) Close() {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
	if a.nc != nil {
		a.nc.Close()
		log.Println("[SOUTHBOUND] NATS connection closed.")
	}
}

// natsDatapath implements model.Datapath over the per-switch command
// subject.
type natsDatapath struct {
	nc      *nats.Conn
	subject string
}

func (d *natsDatapath) publish(cmd wireCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return d.nc.Publish(d.subject, data)
}

func (d *natsDatapath) InstallFlow(rule model.FlowRule) error {
	return d.publish(wireCommand{
		Type:        "flow_mod",
		Priority:    rule.Priority,
		MatchInPort: rule.Match.InPort,
		MatchSrc:    rule.Match.SrcMAC,
		MatchDst:    rule.Match.DstMAC,
		Actions:     rule.Actions,
		IdleTimeout: rule.IdleTimeout,
		HardTimeout: rule.HardTimeout,
	})
}

func (d *natsDatapath) SendPacketOut(inPort, outPort uint32, data []byte) error {
	return d.publish(wireCommand{
		Type:    "packet_out",
		InPort:  inPort,
		OutPort: outPort,
		Data:    data,
	})
}

func (d *natsDatapath) RequestFlowStats() error {
	return d.publish(wireCommand{Type: "stats_request"})
}
