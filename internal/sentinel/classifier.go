package sentinel

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"SentiNet/internal/config"
	"SentiNet/internal/model"
)

// ErrClassifierUnavailable signals that no classification model can be
// reached; the detector falls back to threshold detection.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// ThresholdClassifier is the always-available fallback: static PPS/BPS
// thresholds with no model behind them.
type ThresholdClassifier struct {
	PPSThreshold float64
	BPSThreshold float64
}

// NewThresholdClassifier builds the fallback classifier from config.
func NewThresholdClassifier(cfg config.SentinelConfig) *ThresholdClassifier {
	return &ThresholdClassifier{PPSThreshold: cfg.PPSThreshold, BPSThreshold: cfg.BPSThreshold}
}

// Classify flags the flow when either rate exceeds its threshold.
func (c *ThresholdClassifier) Classify(pps, bps, avgPktSize float64) (model.Verdict, error) {
	if pps > c.PPSThreshold {
		log.Printf("[SENTINEL-FALLBACK] High PPS detected: %.2f", pps)
		return model.Verdict{IsThreat: true, AttackType: "DDoS"}, nil
	}
	if bps > c.BPSThreshold {
		log.Printf("[SENTINEL-FALLBACK] High BPS detected: %.2f", bps)
		return model.Verdict{IsThreat: true, AttackType: "DDoS"}, nil
	}
	return model.Verdict{AttackType: "Normal"}, nil
}

// classifyRequest is the wire payload sent to the remote model service.
type classifyRequest struct {
	PPS        float64 `json:"pps"`
	BPS        float64 `json:"bps"`
	AvgPktSize float64 `json:"avg_pkt_size"`
}

// RemoteClassifier calls the external dual-model service over NATS
// request/reply. The service runs the anomaly detector and the attack
// classifier and returns the fused verdict.
type RemoteClassifier struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

// NewRemoteClassifier connects to NATS and returns a classifier bound to
// the configured subject.
func NewRemoteClassifier(cfg config.ClassifierConfig, natsURL string) (*RemoteClassifier, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier timeout: %w", err)
	}
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("[SENTINEL] Remote classifier bound to subject %q", cfg.Subject)
	return &RemoteClassifier{nc: nc, subject: cfg.Subject, timeout: timeout}, nil
}

// Classify sends the rate features to the model service. Any transport
// failure maps to ErrClassifierUnavailable so the caller can fall back.
func (c *RemoteClassifier) Classify(pps, bps, avgPktSize float64) (model.Verdict, error) {
	data, err := json.Marshal(classifyRequest{PPS: pps, BPS: bps, AvgPktSize: avgPktSize})
	if err != nil {
		return model.Verdict{}, err
	}

	msg, err := c.nc.Request(c.subject, data, c.timeout)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	var v model.Verdict
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: malformed reply: %v", ErrClassifierUnavailable, err)
	}
	return v, nil
}

// Close releases the NATS connection.
func (c *RemoteClassifier) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
