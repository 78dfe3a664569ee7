// Package mitigation installs and expires drop rules for flows confirmed
// as attacks.
package mitigation

import (
	"log"
	"sync"
	"time"

	"SentiNet/internal/metrics"
	"SentiNet/internal/model"
	"SentiNet/internal/registry"
)

// dropRulePriority outranks forwarding rules so a block takes effect even
// when a forwarding entry for the pair already exists.
const dropRulePriority = 100

type pair struct {
	src string
	dst string
}

// CancelFunc stops a scheduled unblock. Returns false if it already fired.
type CancelFunc func() bool

// Manager owns the blocked-flow set. Blocks install protocol-level drop
// rules with a hard timeout and schedule an in-process unblock at the same
// deadline, keeping application and switch state aligned even if they
// drift slightly.
type Manager struct {
	mu      sync.Mutex
	blocked map[pair]time.Time
	timers  map[pair]CancelFunc
	reg     *registry.Registry

	// schedule is swapped by tests to simulate time without real delay.
	schedule func(d time.Duration, f func()) CancelFunc
}

// NewManager creates a mitigation manager over the given switch registry.
func NewManager(reg *registry.Registry) *Manager {
	return &Manager{
		blocked: make(map[pair]time.Time),
		timers:  make(map[pair]CancelFunc),
		reg:     reg,
		schedule: func(d time.Duration, f func()) CancelFunc {
			t := time.AfterFunc(d, f)
			return t.Stop
		},
	}
}

// SetScheduler replaces the delayed-task scheduler. Test hook.
func (m *Manager) SetScheduler(s func(d time.Duration, f func()) CancelFunc) {
	m.schedule = s
}

// Block drops all traffic from src to dst for the given duration. The call
// is idempotent: re-blocking an already blocked pair refreshes the expiry
// and reschedules the unblock.
func (m *Manager) Block(srcMAC, dstMAC string, duration time.Duration) {
	p := pair{srcMAC, dstMAC}
	expiry := time.Now().Add(duration)

	m.mu.Lock()
	if cancel, ok := m.timers[p]; ok {
		cancel()
	}
	m.blocked[p] = expiry
	m.timers[p] = m.schedule(duration, func() { m.Unblock(srcMAC, dstMAC) })
	metrics.BlockedFlows.Set(float64(len(m.blocked)))
	m.mu.Unlock()

	log.Printf("[BLOCK] Blocking flow: %s -> %s for %s", srcMAC, dstMAC, duration)

	rule := model.FlowRule{
		Priority:    dropRulePriority,
		Match:       model.FlowMatch{SrcMAC: srcMAC, DstMAC: dstMAC},
		Actions:     nil, // empty actions = drop
		HardTimeout: int(duration.Seconds()),
	}
	for switchID, dp := range m.reg.ActiveDatapaths() {
		if err := dp.InstallFlow(rule); err != nil {
			log.Printf("[BLOCK] Failed to install drop rule on %s: %v", switchID, err)
		}
	}
}

// Unblock removes the pair from the blocked set. Unblocking a pair that is
// not blocked is a no-op.
func (m *Manager) Unblock(srcMAC, dstMAC string) {
	p := pair{srcMAC, dstMAC}

	m.mu.Lock()
	_, was := m.blocked[p]
	delete(m.blocked, p)
	if cancel, ok := m.timers[p]; ok {
		cancel()
		delete(m.timers, p)
	}
	metrics.BlockedFlows.Set(float64(len(m.blocked)))
	m.mu.Unlock()

	if was {
		log.Printf("[UNBLOCK] Flow unblocked: %s -> %s", srcMAC, dstMAC)
	}
}

// IsBlocked reports whether traffic from src to dst is currently blocked.
// Consulted by the forwarding engine on every packet before any output
// decision. An entry with an empty destination blocks every flow from
// that source (externally requested host blocks).
func (m *Manager) IsBlocked(srcMAC, dstMAC string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocked[pair{srcMAC, dstMAC}]; ok {
		return true
	}
	_, ok := m.blocked[pair{srcMAC, ""}]
	return ok
}

// BlockedFlow is a snapshot entry for the admin API.
type BlockedFlow struct {
	SrcMAC string    `json:"src_mac"`
	DstMAC string    `json:"dst_mac"`
	Expiry time.Time `json:"expiry"`
}

// BlockedFlows returns a snapshot of the blocked set.
func (m *Manager) BlockedFlows() []BlockedFlow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BlockedFlow, 0, len(m.blocked))
	for p, exp := range m.blocked {
		out = append(out, BlockedFlow{SrcMAC: p.src, DstMAC: p.dst, Expiry: exp})
	}
	return out
}
