package valkey

import (
	"sync"

	"tagscan/config"
	"tagscan/logging"
)

// Manager owns the configured Valkey publishers.
type Manager struct {
	publishers []*Publisher
	mu         sync.RWMutex
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{publishers: make([]*Publisher, 0)}
}

// LoadFromConfig creates publishers from configuration.
func (m *Manager) LoadFromConfig(configs []config.ValkeyConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range configs {
		m.publishers = append(m.publishers, NewPublisher(&configs[i]))
	}
}

// Add registers a new publisher.
func (m *Manager) Add(cfg *config.ValkeyConfig) *Publisher {
	m.mu.Lock()
	defer m.mu.Unlock()

	pub := NewPublisher(cfg)
	m.publishers = append(m.publishers, pub)
	return pub
}

// Remove stops and removes a publisher by name.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	var pubToStop *Publisher
	for i, pub := range m.publishers {
		if pub.config.Name == name {
			pubToStop = pub
			m.publishers = append(m.publishers[:i], m.publishers[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	// Stop outside the lock to prevent blocking.
	if pubToStop != nil {
		pubToStop.Stop()
		return true
	}
	return false
}

// Get returns a publisher by name, or nil.
func (m *Manager) Get(name string) *Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, pub := range m.publishers {
		if pub.config.Name == name {
			return pub
		}
	}
	return nil
}

// List returns all publishers.
func (m *Manager) List() []*Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Publisher, len(m.publishers))
	copy(result, m.publishers)
	return result
}

// StartAll starts every enabled publisher and returns how many came
// up.
func (m *Manager) StartAll() int {
	started := 0
	for _, pub := range m.List() {
		if pub.config.Enabled {
			if err := pub.Start(); err != nil {
				logging.DebugLog("valkey", "failed to start %s: %v", pub.config.Name, err)
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

// Publish stores a tag value in every running publisher.
func (m *Manager) Publish(controller, path, typeName string, value interface{}) {
	for _, pub := range m.List() {
		if pub.IsRunning() {
			if err := pub.Publish(controller, path, typeName, value); err != nil {
				logging.DebugLog("valkey", "publish error (%s): %v", pub.config.Name, err)
			}
		}
	}
}
