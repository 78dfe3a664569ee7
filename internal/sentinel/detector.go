// Package sentinel is the threat detector: it feeds per-flow rates to the
// classification capability, applies fusion and cooldown logic, and
// triggers mitigation on confirmed attacks.
package sentinel

import (
	"errors"
	"log"
	"sync"
	"time"

	"SentiNet/internal/config"
	"SentiNet/internal/metrics"
	"SentiNet/internal/mitigation"
	"SentiNet/internal/model"
)

type alertKey struct {
	src string
	dst string
}

// Detector inspects flow records as they come off the stats engine. A
// confirmed threat blocks the flow and publishes exactly one alert per
// cooldown window for the (src, dst) pair.
type Detector struct {
	mu        sync.Mutex
	cooldowns map[alertKey]time.Time

	classifier model.Classifier
	fallback   *ThresholdClassifier
	mitigator  *mitigation.Manager
	bridge     model.Bridge

	cooldownWindow time.Duration
	blockDuration  time.Duration

	now func() time.Time
}

// NewDetector wires the detector to its collaborators. The classifier may
// be nil, in which case only the threshold fallback runs.
func NewDetector(cfg config.SentinelConfig, cooldown time.Duration, classifier model.Classifier,
	mitigator *mitigation.Manager, bridge model.Bridge) *Detector {
	return &Detector{
		cooldowns:      make(map[alertKey]time.Time),
		classifier:     classifier,
		fallback:       NewThresholdClassifier(cfg),
		mitigator:      mitigator,
		bridge:         bridge,
		cooldownWindow: cooldown,
		blockDuration:  time.Duration(cfg.BlockDurationSec) * time.Second,
		now:            time.Now,
	}
}

// Inspect classifies one flow record and mitigates if it is a threat.
func (d *Detector) Inspect(rec model.FlowRecord) {
	if d.mitigator.IsBlocked(rec.SrcMAC, rec.DstMAC) {
		return
	}

	verdict := d.classify(rec)

	// Fusion: either sub-signal alone is sufficient. A named non-Normal
	// class wins the label; a bare anomaly flag is an Unknown Anomaly.
	isThreat := verdict.IsThreat || (verdict.AttackType != "" && verdict.AttackType != "Normal")
	if !isThreat {
		return
	}
	label := verdict.AttackType
	if label == "" || label == "Normal" {
		label = "Unknown Anomaly"
	}

	d.handleThreat(rec, label)
}

func (d *Detector) classify(rec model.FlowRecord) model.Verdict {
	if d.classifier != nil {
		verdict, err := d.classifier.Classify(rec.PPS, rec.BPS, rec.AvgPktSize)
		if err == nil {
			return verdict
		}
		if !errors.Is(err, ErrClassifierUnavailable) {
			log.Printf("[SENTINEL] Classifier error, using threshold fallback: %v", err)
		}
	}
	verdict, _ := d.fallback.Classify(rec.PPS, rec.BPS, rec.AvgPktSize)
	return verdict
}

func (d *Detector) handleThreat(rec model.FlowRecord, label string) {
	key := alertKey{rec.SrcMAC, rec.DstMAC}
	now := d.now()

	d.mu.Lock()
	if until, ok := d.cooldowns[key]; ok && now.Before(until) {
		d.mu.Unlock()
		return // already handled, still in cooldown
	}
	d.cooldowns[key] = now.Add(d.cooldownWindow)
	d.mu.Unlock()

	log.Printf("[ATTACK] %s detected: %s -> %s (pps=%.2f bps=%.2f)",
		label, rec.SrcMAC, rec.DstMAC, rec.PPS, rec.BPS)

	d.mitigator.Block(rec.SrcMAC, rec.DstMAC, d.blockDuration)

	metrics.AlertsPublished.Inc()
	d.bridge.PublishAlert(model.Alert{
		Attacker:         rec.SrcMAC,
		Target:           rec.DstMAC,
		AttackType:       label,
		PPS:              rec.PPS,
		BPS:              rec.BPS,
		ActionTaken:      "BLOCKED",
		BlockDurationSec: int(d.blockDuration.Seconds()),
	})
}

// SweepCooldowns drops expired cooldown entries. Invoked by the monitor
// loop once per cycle.
func (d *Detector) SweepCooldowns() {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, until := range d.cooldowns {
		if until.Before(now) {
			delete(d.cooldowns, key)
		}
	}
}

// ActiveAlert is a cooldown entry exposed through the admin API.
type ActiveAlert struct {
	SrcMAC    string  `json:"src_mac"`
	DstMAC    string  `json:"dst_mac"`
	ExpiresIn float64 `json:"expires_in_sec"`
}

// ActiveAlerts returns the cooldown entries that have not yet expired.
func (d *Detector) ActiveAlerts() []ActiveAlert {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ActiveAlert, 0, len(d.cooldowns))
	for key, until := range d.cooldowns {
		if until.After(now) {
			out = append(out, ActiveAlert{SrcMAC: key.src, DstMAC: key.dst, ExpiresIn: until.Sub(now).Seconds()})
		}
	}
	return out
}
