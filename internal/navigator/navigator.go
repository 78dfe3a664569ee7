// Package navigator is the Q-learning routing engine. States are switches,
// actions are neighbor switches, and the reward is the negative of the
// traversed path's latency plus congestion penalty. The engine learns to
// route around congested links instead of pinning static shortest paths.
package navigator

import (
	"log"
	"math/rand"
	"sync"

	"SentiNet/internal/config"
	"SentiNet/internal/topology"
)

// pathRewardCongestionScale weights accumulated congestion against
// accumulated delay in the terminal path reward.
const pathRewardCongestionScale = 50

// Edge is one directed adjacency entry. Weight is the only mutable routing
// cost: static delay plus the live congestion penalty.
type Edge struct {
	Neighbor      string
	Weight        float64
	BandwidthMbps float64
	DelayMs       float64
	CurrentBps    float64
	Congestion    float64
}

// Navigator holds the congestion-aware graph and the Q-table. The mutex
// covers whole path walks including their backward update, so a concurrent
// UpdateLinkWeights can never interleave with a walk's read-then-write.
type Navigator struct {
	mu sync.Mutex

	cfg   config.NavigatorConfig
	rng   *rand.Rand
	graph map[string][]*Edge
	qtab  map[string]map[string]float64

	epsilon     float64
	initialized bool

	totalUpdates    int
	pathsCalculated int
}

// New creates a Navigator with the given hyperparameters. The random
// source drives Q-value jitter and epsilon-greedy exploration; tests pass
// a seeded source for reproducibility.
func New(cfg config.NavigatorConfig, rng *rand.Rand) *Navigator {
	return &Navigator{
		cfg:     cfg,
		rng:     rng,
		graph:   make(map[string][]*Edge),
		qtab:    make(map[string]map[string]float64),
		epsilon: cfg.Epsilon,
	}
}

// InitializeFromTopology builds the bidirectional routing graph from the
// switch-to-switch links. Host links never enter the graph. Initial edge
// weight is the static delay; initial Q-values carry a small negative-delay
// bias plus jitter so early exploitation already prefers low-latency edges.
func (n *Navigator) InitializeFromTopology(topo *topology.Topology) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.graph = make(map[string][]*Edge)
	n.qtab = make(map[string]map[string]float64)
	for _, sw := range topo.Switches() {
		n.graph[sw.ID] = nil
		n.qtab[sw.ID] = make(map[string]float64)
	}

	for _, l := range topo.Links() {
		n.graph[l.From] = append(n.graph[l.From], &Edge{
			Neighbor: l.To, Weight: l.DelayMs,
			BandwidthMbps: l.BandwidthMbps, DelayMs: l.DelayMs,
		})
		n.graph[l.To] = append(n.graph[l.To], &Edge{
			Neighbor: l.From, Weight: l.DelayMs,
			BandwidthMbps: l.BandwidthMbps, DelayMs: l.DelayMs,
		})
	}

	links := 0
	for state, edges := range n.graph {
		for _, e := range edges {
			n.qtab[state][e.Neighbor] = -e.DelayMs + n.rng.Float64()*0.1
			links++
		}
	}

	n.initialized = true
	log.Printf("[NAVIGATOR] Initialized from topology: %d switches, %d links",
		len(n.graph), links/2)
}

// Initialized reports whether a topology has been loaded.
func (n *Navigator) Initialized() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.initialized
}

// UpdateLinkWeights recomputes every edge's congestion and weight from the
// live per-link utilization. A link with no observed traffic decongests
// back to its static delay. After every update epsilon decays
// multiplicatively toward its floor: exploration shrinks as live data
// accumulates but never reaches zero.
func (n *Navigator) UpdateLinkWeights(linkBps map[[2]string]float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for state, edges := range n.graph {
		for _, e := range edges {
			bps := linkBps[[2]string{state, e.Neighbor}]
			capacity := e.BandwidthMbps * 1e6

			congestion := 0.0
			if capacity > 0 {
				congestion = bps / capacity
				if congestion > 1 {
					congestion = 1
				}
			}

			e.CurrentBps = bps
			e.Congestion = congestion
			e.Weight = e.DelayMs + congestion*n.cfg.CongestionPenaltyScale
		}
	}

	n.totalUpdates++
	if n.epsilon > n.cfg.MinEpsilon {
		n.epsilon *= n.cfg.EpsilonDecay
		if n.epsilon < n.cfg.MinEpsilon {
			n.epsilon = n.cfg.MinEpsilon
		}
	}
}

// GetOptimalPath performs an epsilon-greedy walk from src to dst, bounded
// by numSwitches+1 hops. On success it applies the backward Q-learning
// update for the realized path before returning it. An empty path means
// the search exhausted its options; the caller falls back to flooding.
func (n *Navigator) GetOptimalPath(src, dst string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.walk(src, dst)
}

func (n *Navigator) walk(src, dst string) []string {
	if !n.initialized {
		log.Printf("[NAVIGATOR] Not initialized, returning empty path")
		return nil
	}
	if _, ok := n.graph[src]; !ok {
		return nil
	}
	if _, ok := n.graph[dst]; !ok {
		return nil
	}
	if src == dst {
		return []string{src}
	}

	maxHops := len(n.graph) + 1
	path := []string{src}
	visited := map[string]bool{src: true}
	current := src

	// Backtracking unmarks nodes, so the hop cap alone does not bound the
	// loop. The step budget does; exceeding it falls back to flooding.
	steps := 0
	maxSteps := 4 * maxHops * maxHops

	for current != dst && len(path) < maxHops {
		steps++
		if steps > maxSteps {
			log.Printf("[NAVIGATOR] Walk from %s to %s exceeded step budget", src, dst)
			break
		}
		var candidates []*Edge
		for _, e := range n.graph[current] {
			if !visited[e.Neighbor] {
				candidates = append(candidates, e)
			}
		}

		if len(candidates) == 0 {
			// Dead end: backtrack one hop and retry from there.
			if len(path) > 1 {
				path = path[:len(path)-1]
				delete(visited, current)
				current = path[len(path)-1]
				continue
			}
			break
		}

		var next *Edge
		if n.rng.Float64() < n.epsilon {
			next = candidates[n.rng.Intn(len(candidates))]
		} else {
			best := -1.0
			for i, e := range candidates {
				score := n.qtab[current][e.Neighbor] - e.Weight*n.cfg.WeightPenaltyFactor
				if e.Neighbor == dst {
					score += n.cfg.DestinationBonus
				}
				// First maximal candidate wins ties.
				if next == nil || score > best {
					best = score
					next = candidates[i]
				}
			}
		}

		path = append(path, next.Neighbor)
		visited[next.Neighbor] = true
		current = next.Neighbor
	}

	n.pathsCalculated++

	if path[len(path)-1] != dst {
		log.Printf("[NAVIGATOR] No valid path from %s to %s", src, dst)
		return nil
	}

	reward := n.pathReward(path)
	n.updateFromExperience(path, reward)
	return path
}

// pathReward is the terminal reward of a completed path: the negative of
// the summed static delays plus scaled congestion over the traversed edges.
func (n *Navigator) pathReward(path []string) float64 {
	var delay, congestion float64
	for i := 0; i < len(path)-1; i++ {
		for _, e := range n.graph[path[i]] {
			if e.Neighbor == path[i+1] {
				delay += e.DelayMs
				congestion += e.Congestion
				break
			}
		}
	}
	return -(delay + congestion*pathRewardCongestionScale)
}

// updateFromExperience walks the path backward applying the flat-horizon
// Q-learning update. Every transition sees the terminal path reward, not a
// per-edge reward.
func (n *Navigator) updateFromExperience(path []string, reward float64) {
	if len(path) < 2 {
		return
	}
	for i := len(path) - 2; i >= 0; i-- {
		state, action := path[i], path[i+1]

		maxNext := 0.0
		if actions, ok := n.qtab[action]; ok && len(actions) > 0 {
			first := true
			for _, q := range actions {
				if first || q > maxNext {
					maxNext = q
					first = false
				}
			}
		}

		old := n.qtab[state][action]
		n.qtab[state][action] = old + n.cfg.LearningRate*(reward+n.cfg.DiscountFactor*maxNext-old)
	}
}

// GetPathForHosts resolves both MACs to their attachment switches and
// delegates to GetOptimalPath. Unknown hosts yield an empty path.
func (n *Navigator) GetPathForHosts(srcMAC, dstMAC string, hostSwitch map[string]string) []string {
	srcSwitch, okSrc := hostSwitch[srcMAC]
	dstSwitch, okDst := hostSwitch[dstMAC]
	if !okSrc || !okDst {
		log.Printf("[NAVIGATOR] Unknown host MAC: %s or %s", srcMAC, dstMAC)
		return nil
	}
	return n.GetOptimalPath(srcSwitch, dstSwitch)
}

// Epsilon returns the current exploration probability.
func (n *Navigator) Epsilon() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.epsilon
}

// SetEpsilon overrides the exploration probability. Used by tests and the
// admin API to force deterministic exploitation.
func (n *Navigator) SetEpsilon(eps float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.epsilon = eps
}

// QValue returns the learned value of taking action (moving to neighbor)
// from a state.
func (n *Navigator) QValue(state, action string) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.qtab[state][action]
}

// Status summarizes engine state for monitoring.
type Status struct {
	Initialized     bool    `json:"initialized"`
	Switches        int     `json:"switches"`
	Epsilon         float64 `json:"epsilon"`
	TotalUpdates    int     `json:"total_updates"`
	PathsCalculated int     `json:"paths_calculated"`
	QTableSize      int     `json:"q_table_size"`
}

// GetStatus returns a snapshot of the engine's counters.
func (n *Navigator) GetStatus() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	size := 0
	for _, actions := range n.qtab {
		size += len(actions)
	}
	return Status{
		Initialized:     n.initialized,
		Switches:        len(n.graph),
		Epsilon:         n.epsilon,
		TotalUpdates:    n.totalUpdates,
		PathsCalculated: n.pathsCalculated,
		QTableSize:      size,
	}
}

// LinkInfo is one undirected link's live routing state.
type LinkInfo struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	Weight        float64 `json:"weight"`
	Congestion    float64 `json:"congestion"`
	CurrentBps    float64 `json:"current_bps"`
	BandwidthMbps float64 `json:"bandwidth_mbps"`
}

// GetLinkInfo returns one entry per undirected link for debugging.
func (n *Navigator) GetLinkInfo() []LinkInfo {
	n.mu.Lock()
	defer n.mu.Unlock()

	seen := make(map[[2]string]bool)
	var out []LinkInfo
	for state, edges := range n.graph {
		for _, e := range edges {
			key := [2]string{state, e.Neighbor}
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, LinkInfo{
				From: state, To: e.Neighbor,
				Weight: e.Weight, Congestion: e.Congestion,
				CurrentBps: e.CurrentBps, BandwidthMbps: e.BandwidthMbps,
			})
		}
	}
	return out
}

// EdgeState returns the live state of the directed edge from->to.
func (n *Navigator) EdgeState(from, to string) (Edge, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.graph[from] {
		if e.Neighbor == to {
			return *e, true
		}
	}
	return Edge{}, false
}
