package bridge

import (
	"log"
	"sync"

	"SentiNet/internal/model"
)

// Noop is the disabled-backend bridge: every call succeeds and goes
// nowhere. Used when the bridge is disabled in config.
type Noop struct{}

func (Noop) PublishTopology(interface{})             {}
func (Noop) PublishStats(string, []model.FlowRecord) {}
func (Noop) PublishAlert(model.Alert)                {}

func (Noop) PollPendingCommand() (model.PendingCommand, bool) {
	return model.PendingCommand{}, false
}

// Capture records every published message in memory for inspection. Test
// double for the real gateway; also handy for local runs without NATS.
type Capture struct {
	mu       sync.Mutex
	Topology []interface{}
	Stats    map[string][][]model.FlowRecord
	Alerts   []model.Alert
	Commands []model.PendingCommand
}

// NewCapture creates an empty capturing bridge.
func NewCapture() *Capture {
	return &Capture{Stats: make(map[string][][]model.FlowRecord)}
}

func (c *Capture) PublishTopology(topology interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Topology = append(c.Topology, topology)
	log.Println("[MOCK-BACKEND] Would send: topology")
}

func (c *Capture) PublishStats(switchID string, records []model.FlowRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Stats[switchID] = append(c.Stats[switchID], records)
}

func (c *Capture) PublishAlert(alert model.Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Alerts = append(c.Alerts, alert)
	log.Printf("[MOCK-BACKEND] Would send: security_alert %s -> %s", alert.Attacker, alert.Target)
}

// PollPendingCommand pops the next queued command, if any.
func (c *Capture) PollPendingCommand() (model.PendingCommand, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Commands) == 0 {
		return model.PendingCommand{}, false
	}
	cmd := c.Commands[0]
	c.Commands = c.Commands[1:]
	return cmd, true
}

// QueueCommand enqueues a command as if the backend had one pending.
func (c *Capture) QueueCommand(cmd model.PendingCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Commands = append(c.Commands, cmd)
}

// AlertCount returns the number of captured alerts.
func (c *Capture) AlertCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Alerts)
}
