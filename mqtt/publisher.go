// Package mqtt publishes polled tag values to MQTT brokers.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"tagscan/config"
	"tagscan/logging"
)

// RootTopic prefixes every published tag topic.
const RootTopic = "tagscan"

// TagMessage is the JSON payload published for each tag value.
type TagMessage struct {
	Value     interface{} `json:"value"`
	Type      string      `json:"type,omitempty"`
	Timestamp string      `json:"timestamp"`
	Quality   string      `json:"quality"` // "good" or "bad"
}

// Publisher maintains one broker connection and publishes tag values
// on change.
type Publisher struct {
	config  *config.MQTTConfig
	client  pahomqtt.Client
	running bool
	mu      sync.RWMutex

	// Track last published values to detect changes
	lastValues map[string]interface{}
	lastMu     sync.RWMutex
}

// NewPublisher creates a publisher for a single broker.
func NewPublisher(cfg *config.MQTTConfig) *Publisher {
	return &Publisher{
		config:     cfg,
		lastValues: make(map[string]interface{}),
	}
}

// Name returns the publisher's configured name.
func (p *Publisher) Name() string {
	return p.config.Name
}

// Config returns the publisher's configuration.
func (p *Publisher) Config() *config.MQTTConfig {
	return p.config
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Address returns the broker URL.
func (p *Publisher) Address() string {
	if p.config.UseTLS {
		return fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port)
	}
	return fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port)
}

// Start connects to the broker. Safe to call when already running.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	// Build options without holding the lock; Connect blocks.
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.Address())
	if p.config.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	logging.DebugLog("mqtt", "connecting to broker %s", p.Address())

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("Start: connection timeout for %s", p.Address())
	}
	if token.Error() != nil {
		return fmt.Errorf("Start: %w", token.Error())
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		client.Disconnect(100)
		return nil
	}
	p.client = client
	p.running = true
	p.mu.Unlock()

	// Force a republish of everything on reconnect.
	p.lastMu.Lock()
	p.lastValues = make(map[string]interface{})
	p.lastMu.Unlock()

	logging.DebugLog("mqtt", "connected to broker %s", p.Address())
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running || p.client == nil {
		p.mu.Unlock()
		return
	}
	p.running = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	client.Disconnect(500)
	logging.DebugLog("mqtt", "disconnected from broker %s", p.Address())
}

// BuildTopic constructs the topic for one tag path.
func BuildTopic(controller, path string) string {
	return fmt.Sprintf("%s/%s/%s", RootTopic, controller, path)
}

// Publish sends a tag value if it changed since the last publish (or
// force is set). Reports whether a message went out.
func (p *Publisher) Publish(controller, path, typeName string, value interface{}, force bool) bool {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return false
	}

	cacheKey := controller + "/" + path

	p.lastMu.RLock()
	lastValue, exists := p.lastValues[cacheKey]
	p.lastMu.RUnlock()

	if exists && !force && fmt.Sprintf("%v", lastValue) == fmt.Sprintf("%v", value) {
		return false
	}

	quality := "good"
	if value == nil {
		quality = "bad"
	}
	msg := TagMessage{
		Value:     value,
		Type:      typeName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Quality:   quality,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	token := client.Publish(BuildTopic(controller, path), 1, true, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return false
	}
	if token.Error() != nil {
		logging.DebugLog("mqtt", "publish %s failed: %v", cacheKey, token.Error())
		return false
	}

	p.lastMu.Lock()
	p.lastValues[cacheKey] = value
	p.lastMu.Unlock()

	return true
}

// Manager owns the configured publishers.
type Manager struct {
	publishers map[string]*Publisher
	mu         sync.RWMutex
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{publishers: make(map[string]*Publisher)}
}

// LoadFromConfig creates publishers from configuration.
func (m *Manager) LoadFromConfig(cfgs []config.MQTTConfig) {
	for i := range cfgs {
		m.Add(NewPublisher(&cfgs[i]))
	}
}

// Add registers a publisher.
func (m *Manager) Add(pub *Publisher) {
	m.mu.Lock()
	m.publishers[pub.Name()] = pub
	m.mu.Unlock()
}

// Remove stops and removes a publisher by name.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	pub, exists := m.publishers[name]
	if exists {
		delete(m.publishers, name)
	}
	m.mu.Unlock()

	if exists {
		pub.Stop()
	}
}

// Get returns a publisher by name, or nil.
func (m *Manager) Get(name string) *Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publishers[name]
}

// List returns all publishers.
func (m *Manager) List() []*Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Publisher, 0, len(m.publishers))
	for _, pub := range m.publishers {
		result = append(result, pub)
	}
	return result
}

// StartAll starts every enabled publisher and returns how many came
// up.
func (m *Manager) StartAll() int {
	started := 0
	for _, pub := range m.List() {
		if pub.config.Enabled && !pub.IsRunning() {
			if err := pub.Start(); err != nil {
				logging.DebugLog("mqtt", "failed to start %s: %v", pub.Name(), err)
				continue
			}
			started++
		}
	}
	return started
}

// StopAll stops all publishers.
func (m *Manager) StopAll() {
	for _, pub := range m.List() {
		pub.Stop()
	}
}

// AnyRunning returns true if any publisher is connected.
func (m *Manager) AnyRunning() bool {
	for _, pub := range m.List() {
		if pub.IsRunning() {
			return true
		}
	}
	return false
}

// Publish fans a tag value out to every running publisher.
func (m *Manager) Publish(controller, path, typeName string, value interface{}, force bool) {
	for _, pub := range m.List() {
		if pub.IsRunning() {
			pub.Publish(controller, path, typeName, value, force)
		}
	}
}
