// Package config loads and validates the JSON or YAML configuration that
// describes a run: fleet sizes, network parameters, the chosen algorithm,
// and that algorithm's tunables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/nicmcd/ratesim/internal/sendercontrol"
)

// Algorithm names one of the three sending algorithms a run can select.
type Algorithm string

const (
	Basic Algorithm = "basic"
	Relay Algorithm = "relay"
	Dist  Algorithm = "dist"
)

// Config is the top-level run description, matching spec §6.
type Config struct {
	Senders   uint32 `json:"senders" yaml:"senders"`
	Receivers uint32 `json:"receivers" yaml:"receivers"`
	Relays    uint32 `json:"relays" yaml:"relays"`
	Threads   uint32 `json:"threads" yaml:"threads"`

	NetworkDelay uint64 `json:"network_delay" yaml:"network_delay"`
	Queuing      string `json:"queuing" yaml:"queuing"`

	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`

	MinMessageSize uint32 `json:"min_message_size" yaml:"min_message_size"`
	MaxMessageSize uint32 `json:"max_message_size" yaml:"max_message_size"`

	Algorithm Algorithm `json:"algorithm" yaml:"algorithm"`

	Verbosity uint32 `json:"verbosity" yaml:"verbosity"`
	LogFile   string `json:"log_file" yaml:"log_file"`

	SenderConfig SenderConfig `json:"sender_config" yaml:"sender_config"`

	SenderControl []RawControlEntry `json:"sender_control" yaml:"sender_control"`
}

// SenderConfig holds the algorithm-specific tunables; only the block
// matching Config.Algorithm is required to be populated.
type SenderConfig struct {
	MaxOutstanding uint32 `json:"max_outstanding" yaml:"max_outstanding"`

	StealTokens bool             `json:"steal_tokens" yaml:"steal_tokens"`
	StealRate   bool             `json:"steal_rate" yaml:"steal_rate"`
	Params      DistSenderParams `json:"params" yaml:"params"`
}

// DistSenderParams is sender_config.params for algorithm="dist".
type DistSenderParams struct {
	MaxTokens              uint64  `json:"max_tokens" yaml:"max_tokens"`
	StealThreshold         float64 `json:"steal_threshold" yaml:"steal_threshold"`
	TokenAskFactor         float64 `json:"token_ask_factor" yaml:"token_ask_factor"`
	RateAskFactor          float64 `json:"rate_ask_factor" yaml:"rate_ask_factor"`
	MaxRequestsOutstanding uint32  `json:"max_requests_outstanding" yaml:"max_requests_outstanding"`
	GiveTokenThreshold     float64 `json:"give_token_threshold" yaml:"give_token_threshold"`
	GiveRateThreshold      float64 `json:"give_rate_threshold" yaml:"give_rate_threshold"`
	MaxRateGiveFactor      float64 `json:"max_rate_give_factor" yaml:"max_rate_give_factor"`
}

// RawControlEntry is one [tick, control] pair as it appears in
// configuration, before Control's group=rate clauses are parsed. Control
// may be a bare JSON/YAML number (legacy scalar rate) or a string.
type RawControlEntry struct {
	Tick    float64
	Control string
}

// UnmarshalJSON accepts the [tick, control] two-element array form, with
// control as either a number or a string.
func (e *RawControlEntry) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("sender_control entry: expected a 2-element array: %w", err)
	}
	if err := json.Unmarshal(pair[0], &e.Tick); err != nil {
		return fmt.Errorf("sender_control entry: tick: %w", err)
	}
	var asString string
	if err := json.Unmarshal(pair[1], &asString); err == nil {
		e.Control = asString
		return nil
	}
	var asNumber float64
	if err := json.Unmarshal(pair[1], &asNumber); err != nil {
		return fmt.Errorf("sender_control entry: control: must be a number or string")
	}
	e.Control = formatRate(asNumber)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for the YAML decoder.
func (e *RawControlEntry) UnmarshalYAML(value *yaml.Node) error {
	var pair []yaml.Node
	if err := value.Decode(&pair); err != nil || len(pair) != 2 {
		return fmt.Errorf("sender_control entry: expected a 2-element sequence")
	}
	if err := pair[0].Decode(&e.Tick); err != nil {
		return fmt.Errorf("sender_control entry: tick: %w", err)
	}
	var asString string
	if err := pair[1].Decode(&asString); err == nil {
		e.Control = asString
		return nil
	}
	var asNumber float64
	if err := pair[1].Decode(&asNumber); err != nil {
		return fmt.Errorf("sender_control entry: control: must be a number or string")
	}
	e.Control = formatRate(asNumber)
	return nil
}

func formatRate(r float64) string {
	return fmt.Sprintf("%v", r)
}

// Load reads and validates a configuration file, dispatching on its
// extension: .yaml/.yml decode with yaml.v3, anything else with
// encoding/json.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", filename, err)
	}

	var cfg Config
	switch path.Ext(filename) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", filename, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", filename, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every constraint spec §6 and §7 (Class 1 errors) name.
// A non-nil error means the caller must abort before any event is
// scheduled.
func (c *Config) Validate() error {
	if c.Senders < 1 {
		return fmt.Errorf("config: senders must be >= 1")
	}
	if c.Receivers < 1 {
		return fmt.Errorf("config: receivers must be >= 1")
	}
	if c.Threads < 1 {
		return fmt.Errorf("config: threads must be >= 1")
	}
	if c.Queuing != "fifo" {
		return fmt.Errorf("config: queuing %q not supported (only \"fifo\")", c.Queuing)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("config: rate_limit must be > 0")
	}
	if c.MinMessageSize < 1 {
		return fmt.Errorf("config: min_message_size must be >= 1")
	}
	if c.MaxMessageSize < c.MinMessageSize {
		return fmt.Errorf("config: max_message_size must be >= min_message_size")
	}

	switch c.Algorithm {
	case Basic:
	case Relay:
		if c.Relays < 1 {
			return fmt.Errorf("config: algorithm \"relay\" requires relays >= 1")
		}
		if c.SenderConfig.MaxOutstanding == 0 {
			return fmt.Errorf("config: sender_config.max_outstanding must be > 0")
		}
	case Dist:
		if err := c.validateDist(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("config: algorithm %q must be one of basic, relay, dist", c.Algorithm)
	}

	if _, err := sendercontrol.ParseSchedule(toRawEntries(c.SenderControl), int(c.Senders)); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDist() error {
	p := c.SenderConfig.Params
	if p.MaxRequestsOutstanding < 1 || p.MaxRequestsOutstanding > c.Senders-1 {
		return fmt.Errorf("config: max_requests_outstanding must be in [1, senders-1]")
	}
	if p.StealThreshold < 0 || p.StealThreshold > 1 {
		return fmt.Errorf("config: steal_threshold must be in [0,1]")
	}
	if p.TokenAskFactor <= 0 || p.TokenAskFactor > 1 {
		return fmt.Errorf("config: token_ask_factor must be in (0,1]")
	}
	if p.RateAskFactor <= 0 || p.RateAskFactor > 1 {
		return fmt.Errorf("config: rate_ask_factor must be in (0,1]")
	}
	if p.GiveTokenThreshold < 0 || p.GiveTokenThreshold > 1 {
		return fmt.Errorf("config: give_token_threshold must be in [0,1]")
	}
	if p.GiveRateThreshold < 0 || p.GiveRateThreshold > 1 {
		return fmt.Errorf("config: give_rate_threshold must be in [0,1]")
	}
	if p.MaxRateGiveFactor <= 0 || p.MaxRateGiveFactor > 1 {
		return fmt.Errorf("config: max_rate_give_factor must be in (0,1]")
	}
	if float64(p.MaxTokens) < float64(c.MinMessageSize) {
		return fmt.Errorf("config: max_tokens must be >= min_message_size")
	}
	if c.SenderConfig.StealRate && p.StealThreshold*float64(p.MaxTokens) < float64(c.MaxMessageSize) {
		return fmt.Errorf("config: steal_threshold*max_tokens must be >= max_message_size when steal_rate is set")
	}
	return nil
}

func toRawEntries(entries []RawControlEntry) []sendercontrol.RawEntry {
	out := make([]sendercontrol.RawEntry, len(entries))
	for i, e := range entries {
		out[i] = sendercontrol.RawEntry{Tick: e.Tick, Control: e.Control}
	}
	return out
}
