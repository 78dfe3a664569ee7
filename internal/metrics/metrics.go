// Package metrics exposes the controller's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PacketsHandled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinet_packets_handled_total",
		Help: "Packet-in events processed by the forwarding engine.",
	})

	PacketsFlooded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinet_packets_flooded_total",
		Help: "Packet-in events that fell back to flooding.",
	})

	PacketsDroppedBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinet_packets_dropped_blocked_total",
		Help: "Packets dropped because their flow is blocked.",
	})

	AlertsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinet_alerts_published_total",
		Help: "Security alerts published to the bridge.",
	})

	BlockedFlows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinet_blocked_flows",
		Help: "Flows currently blocked by the mitigation manager.",
	})

	PathsComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinet_navigator_paths_total",
		Help: "Paths computed by the Q-learning navigator.",
	})

	NavigatorEpsilon = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinet_navigator_epsilon",
		Help: "Current exploration probability of the navigator.",
	})

	StatsPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinet_stats_polls_total",
		Help: "Flow-stats poll cycles completed.",
	})
)
