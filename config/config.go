// Package config handles configuration persistence for the tagscan
// application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Database    DatabaseConfig     `yaml:"database"`
	Poll        PollConfig         `yaml:"poll"`
	Web         WebConfig          `yaml:"web"`
	MQTT        []MQTTConfig       `yaml:"mqtt,omitempty"`
	Valkey      []ValkeyConfig     `yaml:"valkey,omitempty"`
	Kafka       []KafkaConfig      `yaml:"kafka,omitempty"`
	Controllers []ControllerConfig `yaml:"controllers"`

	// Protects all fields against concurrent access. Callers that
	// modify config should Lock(), modify, then Unlock() and Save().
	dataMu sync.Mutex `yaml:"-"`
}

// DatabaseConfig locates the SQLite tag database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PollConfig tunes the live tag poller.
type PollConfig struct {
	Interval     time.Duration `yaml:"interval"`
	HistoryDepth int           `yaml:"history_depth"`
}

// WebConfig holds the read-only HTTP API configuration.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	// TokenHash is a bcrypt hash of the bearer token required on API
	// requests. Empty disables authentication.
	TokenHash string `yaml:"token_hash,omitempty"`
}

// ControllerConfig names one controller to scan.
type ControllerConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Slot    byte   `yaml:"slot"`
	Enabled bool   `yaml:"enabled"`
}

// MQTTConfig holds MQTT publisher configuration.
type MQTTConfig struct {
	Name     string `yaml:"name"`
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	ClientID string `yaml:"client_id"`
	UseTLS   bool   `yaml:"use_tls,omitempty"`
}

// ValkeyConfig holds Valkey/Redis publisher configuration.
type ValkeyConfig struct {
	Name     string        `yaml:"name"`
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"` // host:port
	Password string        `yaml:"password,omitempty"`
	Database int           `yaml:"database"`
	UseTLS   bool          `yaml:"use_tls,omitempty"`
	KeyTTL   time.Duration `yaml:"key_ttl,omitempty"` // 0 = no expiry
}

// KafkaConfig holds Kafka publisher configuration.
type KafkaConfig struct {
	Name          string   `yaml:"name"`
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	UseTLS        bool     `yaml:"use_tls,omitempty"`
	TLSSkipVerify bool     `yaml:"tls_skip_verify,omitempty"`
	SASLMechanism string   `yaml:"sasl_mechanism,omitempty"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string   `yaml:"username,omitempty"`
	Password      string   `yaml:"password,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "tagscan.db",
		},
		Poll: PollConfig{
			Interval:     5 * time.Second,
			HistoryDepth: 10,
		},
		Web: WebConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		Controllers: []ControllerConfig{},
	}
}

// DefaultPath returns the default configuration file path
// (~/.tagscan/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".tagscan", "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults and writes them back so the user has something to edit.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg.Save(path) // Best-effort save of defaults
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 5 * time.Second
	}
	if cfg.Poll.HistoryDepth <= 0 {
		cfg.Poll.HistoryDepth = 10
	}

	return cfg, nil
}

// Lock acquires the config data mutex for exclusive access.
func (c *Config) Lock() { c.dataMu.Lock() }

// Unlock releases the config data mutex.
func (c *Config) Unlock() { c.dataMu.Unlock() }

// Save marshals the config and writes it to path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	c.dataMu.Lock()
	data, err := yaml.Marshal(c)
	c.dataMu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, ctrl := range c.Controllers {
		if ctrl.Name == "" {
			return fmt.Errorf("controller with empty name")
		}
		if ctrl.Address == "" {
			return fmt.Errorf("controller %q has no address", ctrl.Name)
		}
		if seen[ctrl.Name] {
			return fmt.Errorf("duplicate controller name %q", ctrl.Name)
		}
		seen[ctrl.Name] = true
	}
	if c.Web.Enabled && (c.Web.Port < 1 || c.Web.Port > 65535) {
		return fmt.Errorf("invalid web port %d", c.Web.Port)
	}
	return nil
}

// FindController returns the controller config with the given name, or
// nil if not found.
func (c *Config) FindController(name string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].Name == name {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds a new controller configuration.
func (c *Config) AddController(ctrl ControllerConfig) {
	c.Controllers = append(c.Controllers, ctrl)
}

// RemoveController removes a controller by name.
func (c *Config) RemoveController(name string) bool {
	for i, ctrl := range c.Controllers {
		if ctrl.Name == name {
			c.Controllers = append(c.Controllers[:i], c.Controllers[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateController updates an existing controller configuration.
func (c *Config) UpdateController(name string, updated ControllerConfig) bool {
	for i, ctrl := range c.Controllers {
		if ctrl.Name == name {
			c.Controllers[i] = updated
			return true
		}
	}
	return false
}

// FindMQTT returns the MQTT config with the given name, or nil if not
// found.
func (c *Config) FindMQTT(name string) *MQTTConfig {
	for i := range c.MQTT {
		if c.MQTT[i].Name == name {
			return &c.MQTT[i]
		}
	}
	return nil
}

// AddMQTT adds a new MQTT configuration.
func (c *Config) AddMQTT(mqtt MQTTConfig) {
	c.MQTT = append(c.MQTT, mqtt)
}

// RemoveMQTT removes an MQTT config by name.
func (c *Config) RemoveMQTT(name string) bool {
	for i, m := range c.MQTT {
		if m.Name == name {
			c.MQTT = append(c.MQTT[:i], c.MQTT[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateMQTT updates an existing MQTT configuration.
func (c *Config) UpdateMQTT(name string, updated MQTTConfig) bool {
	for i, m := range c.MQTT {
		if m.Name == name {
			c.MQTT[i] = updated
			return true
		}
	}
	return false
}

// FindValkey returns the Valkey config with the given name, or nil if
// not found.
func (c *Config) FindValkey(name string) *ValkeyConfig {
	for i := range c.Valkey {
		if c.Valkey[i].Name == name {
			return &c.Valkey[i]
		}
	}
	return nil
}

// AddValkey adds a new Valkey configuration.
func (c *Config) AddValkey(valkey ValkeyConfig) {
	c.Valkey = append(c.Valkey, valkey)
}

// RemoveValkey removes a Valkey config by name.
func (c *Config) RemoveValkey(name string) bool {
	for i, v := range c.Valkey {
		if v.Name == name {
			c.Valkey = append(c.Valkey[:i], c.Valkey[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateValkey updates an existing Valkey configuration.
func (c *Config) UpdateValkey(name string, updated ValkeyConfig) bool {
	for i, v := range c.Valkey {
		if v.Name == name {
			c.Valkey[i] = updated
			return true
		}
	}
	return false
}

// FindKafka returns the Kafka config with the given name, or nil if
// not found.
func (c *Config) FindKafka(name string) *KafkaConfig {
	for i := range c.Kafka {
		if c.Kafka[i].Name == name {
			return &c.Kafka[i]
		}
	}
	return nil
}

// AddKafka adds a new Kafka configuration.
func (c *Config) AddKafka(kafka KafkaConfig) {
	c.Kafka = append(c.Kafka, kafka)
}

// RemoveKafka removes a Kafka config by name.
func (c *Config) RemoveKafka(name string) bool {
	for i, k := range c.Kafka {
		if k.Name == name {
			c.Kafka = append(c.Kafka[:i], c.Kafka[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateKafka updates an existing Kafka configuration.
func (c *Config) UpdateKafka(name string, updated KafkaConfig) bool {
	for i, k := range c.Kafka {
		if k.Name == name {
			c.Kafka[i] = updated
			return true
		}
	}
	return false
}
