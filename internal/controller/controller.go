// Package controller is the decision core's event loop. Protocol events
// arrive as typed variants on a single channel consumed by one goroutine;
// a separate monitor loop drives stats polling, cooldown sweeping, and
// the bridge command poll.
package controller

import (
	"fmt"
	"log"
	"sync"
	"time"

	"SentiNet/internal/config"
	"SentiNet/internal/forwarding"
	"SentiNet/internal/metrics"
	"SentiNet/internal/mitigation"
	"SentiNet/internal/model"
	"SentiNet/internal/navigator"
	"SentiNet/internal/registry"
	"SentiNet/internal/sentinel"
	"SentiNet/internal/stats"
	"SentiNet/internal/topology"
)

const eventQueueSize = 1024

// Event is a protocol event routed to the controller core.
type Event interface{ isEvent() }

// SwitchUp reports a completed switch handshake.
type SwitchUp struct {
	DPID     uint64
	Datapath model.Datapath
}

// SwitchDown reports a lost switch connection.
type SwitchDown struct {
	DPID uint64
}

// PacketIn carries an unmatched frame sent up by a switch.
type PacketIn struct {
	DPID   uint64
	InPort uint32
	Data   []byte
}

// StatsReply carries one switch's flow counters for a poll cycle.
type StatsReply struct {
	DPID      uint64
	Stats     []model.RawFlowStat
	Timestamp time.Time
}

func (SwitchUp) isEvent()   {}
func (SwitchDown) isEvent() {}
func (PacketIn) isEvent()   {}
func (StatsReply) isEvent() {}

// Controller owns the decision core and its collaborators.
type Controller struct {
	cfg  *config.Config
	topo *topology.Topology

	Registry  *registry.Registry
	Stats     *stats.Engine
	Mitigator *mitigation.Manager
	Navigator *navigator.Navigator // nil when disabled
	Detector  *sentinel.Detector
	Forwarder *forwarding.Engine

	bridge model.Bridge
	writer model.RecordWriter // nil when storage is disabled

	pollInterval time.Duration
	events       chan Event
	done         chan struct{}
	wg           sync.WaitGroup
	topologySent bool
}

// New builds the full decision core from configuration. A topology that
// fails validation is a fatal error: misrouting is unsafe, so the
// controller refuses to start.
func New(cfg *config.Config, topo *topology.Topology, classifier model.Classifier,
	bridge model.Bridge, writer model.RecordWriter, nav *navigator.Navigator) (*Controller, error) {

	pollInterval, err := cfg.PollInterval()
	if err != nil {
		return nil, err
	}
	cooldown, err := cfg.AlertCooldown()
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	mitigator := mitigation.NewManager(reg)
	detector := sentinel.NewDetector(cfg.Sentinel, cooldown, classifier, mitigator, bridge)
	forwarder := forwarding.NewEngine(cfg.Controller, topo, reg, mitigator, nav)

	c := &Controller{
		cfg:          cfg,
		topo:         topo,
		Registry:     reg,
		Stats:        stats.NewEngine(),
		Mitigator:    mitigator,
		Navigator:    nav,
		Detector:     detector,
		Forwarder:    forwarder,
		bridge:       bridge,
		writer:       writer,
		pollInterval: pollInterval,
		events:       make(chan Event, eventQueueSize),
		done:         make(chan struct{}),
	}

	if nav != nil {
		nav.InitializeFromTopology(topo)
	}
	return c, nil
}

// Dispatch hands a protocol event to the core. It never blocks: if the
// event queue is full the event is dropped with a log line, which for
// packet-ins simply means the frame is re-sent by the switch's table-miss
// rule on the next packet.
func (c *Controller) Dispatch(ev Event) {
	select {
	case c.events <- ev:
	default:
		log.Printf("[CONTROLLER] Event queue full, dropping %T", ev)
	}
}

// Start launches the event and monitor loops.
func (c *Controller) Start() {
	c.wg.Add(2)
	go c.eventLoop()
	go c.monitorLoop()
	log.Println("[CONTROLLER] Started")
}

// Stop shuts both loops down and waits for them.
func (c *Controller) Stop() {
	close(c.done)
	c.wg.Wait()
	log.Println("[CONTROLLER] Stopped")
}

// eventLoop is the single event-processing context. All shared state
// mutation happens here or behind the components' own locks.
func (c *Controller) eventLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev Event) {
	switch ev := ev.(type) {
	case SwitchUp:
		c.handleSwitchUp(ev)
	case SwitchDown:
		c.handleSwitchDown(ev)
	case PacketIn:
		c.handlePacketIn(ev)
	case StatsReply:
		c.handleStatsReply(ev)
	}
}

func (c *Controller) handleSwitchUp(ev SwitchUp) {
	switchID, ok := c.topo.SwitchByDPID(ev.DPID)
	if !ok {
		log.Printf("[CONTROLLER] Ignoring unknown dpid %d", ev.DPID)
		return
	}
	if err := c.Registry.HandleConnect(switchID, ev.DPID, ev.Datapath); err != nil {
		log.Printf("[CONTROLLER] Connect failed for %s: %v", switchID, err)
		return
	}
	if !c.topologySent {
		c.bridge.PublishTopology(c.topo.Descriptor())
		c.topologySent = true
	}
}

func (c *Controller) handleSwitchDown(ev SwitchDown) {
	switchID, ok := c.topo.SwitchByDPID(ev.DPID)
	if !ok {
		return
	}
	c.Registry.HandleDisconnect(switchID)
	c.Stats.Forget(switchID)
}

func (c *Controller) handlePacketIn(ev PacketIn) {
	switchID, ok := c.topo.SwitchByDPID(ev.DPID)
	if !ok {
		return
	}
	c.Forwarder.HandlePacketIn(forwarding.PacketIn{
		SwitchID: switchID,
		InPort:   ev.InPort,
		Data:     ev.Data,
	})
}

func (c *Controller) handleStatsReply(ev StatsReply) {
	switchID, ok := c.topo.SwitchByDPID(ev.DPID)
	if !ok {
		return
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	records := c.Stats.Record(switchID, ev.Stats, ts)

	for _, rec := range records {
		c.Detector.Inspect(rec)
	}

	c.bridge.PublishStats(switchID, records)

	if c.Navigator != nil {
		c.Navigator.UpdateLinkWeights(c.Stats.LinkUtilization(c.topo))
		metrics.NavigatorEpsilon.Set(c.Navigator.Epsilon())
	}

	if c.writer != nil && len(records) > 0 {
		recs := records
		go func() {
			if err := c.writer.Write(recs); err != nil {
				log.Printf("[STORAGE] Failed to write flow records: %v", err)
			}
		}()
	}
}

// monitorLoop drives the periodic work: cooldown sweep, stats polling of
// every Active switch, and the bridge command poll. It runs for the
// process lifetime.
func (c *Controller) monitorLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.monitorCycle()
		}
	}
}

func (c *Controller) monitorCycle() {
	c.Detector.SweepCooldowns()

	for switchID, dp := range c.Registry.ActiveDatapaths() {
		if err := dp.RequestFlowStats(); err != nil {
			log.Printf("[MONITOR] Stats request failed for %s: %v", switchID, err)
		}
	}
	metrics.StatsPolls.Inc()

	if cmd, ok := c.bridge.PollPendingCommand(); ok {
		c.applyCommand(cmd)
	}
}

// applyCommand executes an externally requested action. The only supported
// command is a block, applied exactly as a normal mitigation block with a
// wildcard destination.
func (c *Controller) applyCommand(cmd model.PendingCommand) {
	switch cmd.Command {
	case "block":
		duration := time.Duration(cmd.DurationSec) * time.Second
		if duration <= 0 {
			duration = time.Duration(c.cfg.Sentinel.BlockDurationSec) * time.Second
		}
		target := cmd.Target
		// Accept a host id or IP in place of a MAC.
		for _, h := range c.topo.Hosts() {
			if h.ID == target || h.IP == target {
				target = h.MAC
				break
			}
		}
		log.Printf("[CONTROL] External block command: %s for %s", target, duration)
		c.Mitigator.Block(target, "", duration)
	default:
		log.Printf("[CONTROL] Ignoring unsupported command %q", cmd.Command)
	}
}

// Topology exposes the static topology for the admin API.
func (c *Controller) Topology() *topology.Topology { return c.topo }

// LinkUtilization returns the latest per-link usage for the admin API.
func (c *Controller) LinkUtilization() map[[2]string]float64 {
	return c.Stats.LinkUtilization(c.topo)
}

// String implements fmt.Stringer for debug logging.
func (c *Controller) String() string {
	return fmt.Sprintf("controller(switches=%d)", c.Registry.ActiveCount())
}
