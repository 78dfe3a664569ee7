package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SwitchDef describes one switch in the topology descriptor.
type SwitchDef struct {
	ID   string `yaml:"id"`
	DPID uint64 `yaml:"dpid"`
	Role string `yaml:"role"`
}

// HostDef describes one host and the switch it attaches to.
type HostDef struct {
	ID     string `yaml:"id"`
	MAC    string `yaml:"mac"`
	IP     string `yaml:"ip"`
	Switch string `yaml:"switch"`
}

// LinkDef describes one switch-to-switch link. Declaration order matters:
// physical port numbers are derived by replaying hosts then links in the
// exact order they appear here.
type LinkDef struct {
	From          string  `yaml:"from"`
	To            string  `yaml:"to"`
	BandwidthMbps float64 `yaml:"bw_mbps"`
	DelayMs       float64 `yaml:"delay_ms"`
}

// TopologyConfig is the static topology descriptor consumed by the core.
type TopologyConfig struct {
	Switches []SwitchDef `yaml:"switches"`
	Hosts    []HostDef   `yaml:"hosts"`
	Links    []LinkDef   `yaml:"links"`
}

// ControllerConfig holds polling and flow-rule timing.
type ControllerConfig struct {
	PollInterval         string `yaml:"poll_interval"`
	FlowIdleTimeoutSec   int    `yaml:"flow_idle_timeout_sec"`
	FlowHardTimeoutSec   int    `yaml:"flow_hard_timeout_sec"`
	RoutedIdleTimeoutSec int    `yaml:"routed_idle_timeout_sec"`
}

// SentinelConfig holds threat-detection tuning.
type SentinelConfig struct {
	AlertCooldown    string  `yaml:"alert_cooldown"`
	BlockDurationSec int     `yaml:"block_duration_sec"`
	PPSThreshold     float64 `yaml:"attack_pps_threshold"`
	BPSThreshold     float64 `yaml:"attack_bps_threshold"`
}

// ClassifierConfig selects the classification collaborator.
type ClassifierConfig struct {
	Mode    string `yaml:"mode"` // "threshold" or "remote"
	Subject string `yaml:"subject"`
	Timeout string `yaml:"timeout"`
}

// NavigatorConfig holds the Q-learning hyperparameters.
type NavigatorConfig struct {
	Enabled                bool    `yaml:"enabled"`
	LearningRate           float64 `yaml:"learning_rate"`
	DiscountFactor         float64 `yaml:"discount_factor"`
	Epsilon                float64 `yaml:"epsilon"`
	EpsilonDecay           float64 `yaml:"epsilon_decay"`
	MinEpsilon             float64 `yaml:"min_epsilon"`
	CongestionPenaltyScale float64 `yaml:"congestion_penalty_scale"`
	WeightPenaltyFactor    float64 `yaml:"weight_penalty_factor"`
	DestinationBonus       float64 `yaml:"destination_bonus"`
}

// BridgeConfig holds the NATS gateway settings.
type BridgeConfig struct {
	Enabled        bool   `yaml:"enabled"`
	NATSURL        string `yaml:"nats_url"`
	SubjectPrefix  string `yaml:"subject_prefix"`
	QueueSize      int    `yaml:"queue_size"`
	CommandTimeout string `yaml:"command_timeout"`
}

// ClickHouseConfig holds connection details for the flow-record writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StorageConfig selects the optional flow-record writer.
type StorageConfig struct {
	Type       string           `yaml:"type"` // "none", "csv" or "clickhouse"
	CSVPath    string           `yaml:"csv_path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// APIConfig holds the admin HTTP server settings.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Sentinel   SentinelConfig   `yaml:"sentinel"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Navigator  NavigatorConfig  `yaml:"navigator"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Storage    StorageConfig    `yaml:"storage"`
	API        APIConfig        `yaml:"api"`
	Topology   TopologyConfig   `yaml:"topology"`
}

// Default returns the built-in configuration; a YAML file overrides it
// wholesale.
func Default() *Config {
	return &Config{
		Controller: ControllerConfig{
			PollInterval:         "2s",
			FlowIdleTimeoutSec:   30,
			FlowHardTimeoutSec:   300,
			RoutedIdleTimeoutSec: 5,
		},
		Sentinel: SentinelConfig{
			AlertCooldown:    "10s",
			BlockDurationSec: 60,
			PPSThreshold:     1000,
			BPSThreshold:     100000,
		},
		Classifier: ClassifierConfig{
			Mode:    "threshold",
			Subject: "sentinet.classify",
			Timeout: "500ms",
		},
		Navigator: NavigatorConfig{
			Enabled:                true,
			LearningRate:           0.1,
			DiscountFactor:         0.9,
			Epsilon:                0.1,
			EpsilonDecay:           0.995,
			MinEpsilon:             0.01,
			CongestionPenaltyScale: 100,
			WeightPenaltyFactor:    0.1,
			DestinationBonus:       100,
		},
		Bridge: BridgeConfig{
			Enabled:        false,
			NATSURL:        "nats://localhost:4222",
			SubjectPrefix:  "sentinet",
			QueueSize:      1024,
			CommandTimeout: "250ms",
		},
		Storage: StorageConfig{Type: "none", CSVPath: "traffic_data.csv"},
		API:     APIConfig{ListenAddr: ":8080"},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return cfg, nil
}

// PollInterval parses the controller poll interval.
func (c *Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Controller.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("poll_interval must be a positive duration")
	}
	return d, nil
}

// AlertCooldown parses the sentinel cooldown window.
func (c *Config) AlertCooldown() (time.Duration, error) {
	d, err := time.ParseDuration(c.Sentinel.AlertCooldown)
	if err != nil {
		return 0, fmt.Errorf("invalid alert_cooldown: %w", err)
	}
	return d, nil
}
