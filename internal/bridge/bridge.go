// Package bridge is the gateway to the external visualization/alerting
// backend. Every publish is queued and delivered by a single sender
// goroutine; a slow or unreachable backend can never stall the packet
// path. The outbound queue is bounded with a drop-oldest policy.
package bridge

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"SentiNet/internal/config"
	"SentiNet/internal/model"
)

const senderBackoff = 2 * time.Second

// envelope is the wire format of every outbound bridge message.
type envelope struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type outbound struct {
	subject string
	payload []byte
}

// Gateway publishes core events to NATS subjects and polls the backend's
// command mailbox. Implements model.Bridge.
type Gateway struct {
	nc             *nats.Conn
	prefix         string
	commandTimeout time.Duration

	mu    sync.Mutex
	queue []outbound
	limit int
	wake  chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup

	dropped uint64
}

// NewGateway connects to NATS and starts the sender goroutine.
func NewGateway(cfg config.BridgeConfig) (*Gateway, error) {
	timeout, err := time.ParseDuration(cfg.CommandTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid command_timeout: %w", err)
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("[BACKEND] Connected to NATS server at %s", cfg.NATSURL)

	g := &Gateway{
		nc:             nc,
		prefix:         cfg.SubjectPrefix,
		commandTimeout: timeout,
		limit:          cfg.QueueSize,
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	g.wg.Add(1)
	go g.senderLoop()
	return g, nil
}

// enqueue appends a message, evicting the oldest entry when the queue is
// full. Dropping old telemetry is preferable to unbounded growth while the
// backend is down.
func (g *Gateway) enqueue(subject, msgType string, data interface{}) {
	payload, err := json.Marshal(envelope{
		Type:      msgType,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Data:      data,
	})
	if err != nil {
		log.Printf("[BACKEND] Failed to marshal %s message: %v", msgType, err)
		return
	}

	g.mu.Lock()
	if g.limit > 0 && len(g.queue) >= g.limit {
		g.queue = g.queue[1:]
		g.dropped++
		if g.dropped%100 == 1 {
			log.Printf("[BACKEND] Outbound queue full, dropped %d messages so far", g.dropped)
		}
	}
	g.queue = append(g.queue, outbound{subject: subject, payload: payload})
	g.mu.Unlock()

	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *Gateway) senderLoop() {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			g.flush()
			return
		case <-g.wake:
			g.flush()
		}
	}
}

func (g *Gateway) flush() {
	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			g.mu.Unlock()
			return
		}
		msg := g.queue[0]
		g.queue = g.queue[1:]
		g.mu.Unlock()

		if err := g.nc.Publish(msg.subject, msg.payload); err != nil {
			log.Printf("[BACKEND] Send failed: %v", err)
			// Put the message back and back off; drop-oldest still
			// bounds the queue while we wait.
			g.mu.Lock()
			g.queue = append([]outbound{msg}, g.queue...)
			g.mu.Unlock()
			select {
			case <-g.done:
				return
			case <-time.After(senderBackoff):
			}
		}
	}
}

// PublishTopology sends the topology descriptor. Called once, when the
// first switch becomes Active.
func (g *Gateway) PublishTopology(topology interface{}) {
	g.enqueue(g.prefix+".topology", "topology", topology)
	log.Println("[BACKEND] Topology queued for sending")
}

// PublishStats sends one switch's flow records for the poll cycle.
func (g *Gateway) PublishStats(switchID string, records []model.FlowRecord) {
	g.enqueue(g.prefix+".stats", "stats_update", map[string]interface{}{
		"switch_id": switchID,
		"flows":     records,
	})
}

// PublishAlert sends a security alert.
func (g *Gateway) PublishAlert(alert model.Alert) {
	g.enqueue(g.prefix+".alerts", "security_alert", alert)
	log.Printf("[BACKEND] ALERT queued: %s -> %s (%s)", alert.Attacker, alert.Target, alert.AttackType)
}

// PollPendingCommand asks the backend for the next queued command. A
// timeout or empty mailbox returns ok=false; the monitor loop simply
// tries again next cycle.
func (g *Gateway) PollPendingCommand() (model.PendingCommand, bool) {
	msg, err := g.nc.Request(g.prefix+".commands", nil, g.commandTimeout)
	if err != nil {
		return model.PendingCommand{}, false
	}
	var cmd model.PendingCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		log.Printf("[BACKEND] Malformed command reply: %v", err)
		return model.PendingCommand{}, false
	}
	if cmd.Command == "" {
		return model.PendingCommand{}, false
	}
	return cmd, true
}

// QueueDepth reports the current outbound queue length and drop count.
func (g *Gateway) QueueDepth() (int, uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue), g.dropped
}

// Close drains the queue and closes the NATS connection.
func (g *Gateway) Close() {
	close(g.done)
	g.wg.Wait()
	if g.nc != nil {
		g.nc.Drain()
		log.Println("[BACKEND] NATS connection drained and closed.")
	}
}
