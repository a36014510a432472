package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/MarineYachtRadar/mayara-server/radar"
)

// Config is the complete set of recognised options.
type Config struct {
	Interfaces           []string `yaml:"interfaces"`
	DiscoveryGraceMs     int      `yaml:"discovery_grace_ms"`
	CommandTimeoutMs     int      `yaml:"command_timeout_ms"`
	PollIntervalMs       int      `yaml:"poll_interval_ms"`
	SpokeSubscriberQueue int      `yaml:"spoke_subscriber_queue"`
	AllowedVendors       []string `yaml:"allowed_vendors"`
}

// Defaults for every option the operator leaves unset.
const (
	DefaultDiscoveryGraceMs     = 60000
	DefaultCommandTimeoutMs     = 500
	DefaultPollIntervalMs       = 2000
	DefaultSpokeSubscriberQueue = 32
)

// schemaJSON is the JSON Schema every loaded config is validated
// against before the core starts any listener.
const schemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "interfaces": {"type": "array", "items": {"type": "string"}},
    "discovery_grace_ms": {"type": "integer", "minimum": 0},
    "command_timeout_ms": {"type": "integer", "minimum": 0},
    "poll_interval_ms": {"type": "integer", "minimum": 0},
    "spoke_subscriber_queue": {"type": "integer", "minimum": 1},
    "allowed_vendors": {"type": "array", "items": {"type": "string"}}
  }
}`

// Defaults returns a Config with every zero-value option filled in.
func Defaults() *Config {
	return &Config{
		DiscoveryGraceMs:     DefaultDiscoveryGraceMs,
		CommandTimeoutMs:     DefaultCommandTimeoutMs,
		PollIntervalMs:       DefaultPollIntervalMs,
		SpokeSubscriberQueue: DefaultSpokeSubscriberQueue,
		AllowedVendors:       []string{"Navico", "Furuno", "Raymarine", "Garmin"},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return Defaults()
	}
	out := *c
	out.Interfaces = append([]string{}, c.Interfaces...)
	out.AllowedVendors = append([]string{}, c.AllowedVendors...)
	return &out
}

// Validate checks option ranges and normalises AllowedVendors against
// the closed vendor set.
func (c *Config) Validate() error {
	if c.DiscoveryGraceMs < 0 {
		return fmt.Errorf("discovery_grace_ms must be >= 0")
	}
	if c.CommandTimeoutMs < 0 {
		return fmt.Errorf("command_timeout_ms must be >= 0")
	}
	if c.PollIntervalMs < 0 {
		return fmt.Errorf("poll_interval_ms must be >= 0")
	}
	if c.SpokeSubscriberQueue < 1 {
		return fmt.Errorf("spoke_subscriber_queue must be >= 1")
	}
	for _, v := range c.AllowedVendors {
		switch radar.Vendor(v) {
		case radar.VendorNavico, radar.VendorFuruno, radar.VendorRaymarine, radar.VendorGarmin:
		default:
			return fmt.Errorf("allowed_vendors: unknown vendor %q", v)
		}
	}
	return nil
}

// AllowsVendor reports whether v is in AllowedVendors, or true if the
// list is empty (no restriction configured).
func (c *Config) AllowsVendor(v radar.Vendor) bool {
	if len(c.AllowedVendors) == 0 {
		return true
	}
	for _, a := range c.AllowedVendors {
		if radar.Vendor(a) == v {
			return true
		}
	}
	return false
}

// DiscoveryGrace, CommandTimeout, PollInterval convert the millisecond
// options into time.Duration for the components that consume them.
func (c *Config) DiscoveryGrace() time.Duration { return time.Duration(c.DiscoveryGraceMs) * time.Millisecond }
func (c *Config) CommandTimeout() time.Duration { return time.Duration(c.CommandTimeoutMs) * time.Millisecond }
func (c *Config) PollInterval() time.Duration   { return time.Duration(c.PollIntervalMs) * time.Millisecond }

// SafeConfig provides thread-safe, read-mostly access to a loaded
// Config.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps cfg, defaulting to Defaults() if nil.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Defaults()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Loader loads a YAML config file, applies MAYARA_* environment
// overrides and validates the result against schemaJSON before
// unmarshaling into Config.
type Loader struct {
	envPrefix string
}

// NewLoader constructs a Loader using the MAYARA_ environment prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "MAYARA"}
}

// LoadFile loads path, applying defaults for any option it omits.
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := l.validateSchema(data); err != nil {
			return nil, fmt.Errorf("validate config %s: %w", path, err)
		}
		var file Config
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeNonZero(cfg, &file)
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateSchema converts the YAML document to JSON and checks it
// against schemaJSON so unknown options are rejected before they are
// silently ignored by yaml.Unmarshal.
func (l *Loader) validateSchema(yamlData []byte) error {
	var doc any
	if err := yaml.Unmarshal(yamlData, &doc); err != nil {
		return err
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	schema := gojsonschema.NewStringLoader(schemaJSON)
	document := gojsonschema.NewBytesLoader(jsonData)
	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return err
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// mergeNonZero overlays every non-zero-valued field of override onto a
// copy of base.
func mergeNonZero(base, override *Config) *Config {
	merged := base.Clone()
	if len(override.Interfaces) > 0 {
		merged.Interfaces = override.Interfaces
	}
	if override.DiscoveryGraceMs != 0 {
		merged.DiscoveryGraceMs = override.DiscoveryGraceMs
	}
	if override.CommandTimeoutMs != 0 {
		merged.CommandTimeoutMs = override.CommandTimeoutMs
	}
	if override.PollIntervalMs != 0 {
		merged.PollIntervalMs = override.PollIntervalMs
	}
	if override.SpokeSubscriberQueue != 0 {
		merged.SpokeSubscriberQueue = override.SpokeSubscriberQueue
	}
	if len(override.AllowedVendors) > 0 {
		merged.AllowedVendors = override.AllowedVendors
	}
	return merged
}

// applyEnvOverrides applies MAYARA_* environment overrides on top of
// whatever the file provided.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_INTERFACES"); val != "" {
		cfg.Interfaces = strings.Split(val, ",")
	}
	if val := os.Getenv(l.envPrefix + "_DISCOVERY_GRACE_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.DiscoveryGraceMs = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_COMMAND_TIMEOUT_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.CommandTimeoutMs = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_POLL_INTERVAL_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.PollIntervalMs = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_SPOKE_SUBSCRIBER_QUEUE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.SpokeSubscriberQueue = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_ALLOWED_VENDORS"); val != "" {
		cfg.AllowedVendors = strings.Split(val, ",")
	}
}

// String returns a YAML representation of the config.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
