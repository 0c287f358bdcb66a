package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"tagscan/config"
	"tagscan/logging"
)

// TagMessage is the JSON payload published for each tag value.
type TagMessage struct {
	Value     interface{} `json:"value"`
	Type      string      `json:"type,omitempty"`
	Timestamp string      `json:"timestamp"`
	Quality   string      `json:"quality"`
}

// publishJob is one pending publish operation.
type publishJob struct {
	producer *Producer
	key      []byte
	payload  []byte
	cacheKey string
	value    interface{}
}

// MaxPublishWorkers bounds concurrent publish goroutines.
const MaxPublishWorkers = 10

// MaxPublishQueueSize bounds pending publish jobs; overflow drops.
const MaxPublishQueueSize = 1000

// Manager owns the configured producers and fans tag values out to
// them through a bounded worker pool.
type Manager struct {
	producers map[string]*Producer
	mu        sync.RWMutex

	// Track last published values to detect changes
	lastValues map[string]interface{}
	lastMu     sync.RWMutex

	publishQueue chan publishJob
	wg           sync.WaitGroup
	stopChan     chan struct{}
	started      bool
}

// NewManager creates a manager and starts its workers.
func NewManager() *Manager {
	m := &Manager{
		producers:    make(map[string]*Producer),
		lastValues:   make(map[string]interface{}),
		publishQueue: make(chan publishJob, MaxPublishQueueSize),
		stopChan:     make(chan struct{}),
	}
	m.startWorkers()
	return m
}

func (m *Manager) startWorkers() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < MaxPublishWorkers; i++ {
		m.wg.Add(1)
		go m.publishWorker()
	}
}

func (m *Manager) publishWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopChan:
			return
		case job, ok := <-m.publishQueue:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := job.producer.Produce(ctx, job.key, job.payload); err == nil {
				m.lastMu.Lock()
				m.lastValues[job.cacheKey] = job.value
				m.lastMu.Unlock()
			} else {
				logging.DebugLog("kafka", "publish %s failed: %v", job.cacheKey, err)
			}
			cancel()
		}
	}
}

// LoadFromConfig creates producers from configuration.
func (m *Manager) LoadFromConfig(cfgs []config.KafkaConfig) {
	for i := range cfgs {
		m.AddCluster(&cfgs[i])
	}
}

// AddCluster registers a new cluster. Duplicate names are ignored.
func (m *Manager) AddCluster(cfg *config.KafkaConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.producers[cfg.Name]; exists {
		return
	}
	m.producers[cfg.Name] = NewProducer(cfg)
}

// RemoveCluster disconnects and removes a cluster.
func (m *Manager) RemoveCluster(name string) {
	m.mu.Lock()
	producer, exists := m.producers[name]
	if exists {
		delete(m.producers, name)
	}
	m.mu.Unlock()

	if exists && producer != nil {
		producer.Disconnect()
	}
}

// Producer returns the producer for the named cluster, or nil.
func (m *Manager) Producer(name string) *Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.producers[name]
}

// Clusters returns all cluster names.
func (m *Manager) Clusters() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.producers))
	for name := range m.producers {
		names = append(names, name)
	}
	return names
}

// ConnectEnabled connects every enabled cluster in the background.
func (m *Manager) ConnectEnabled() {
	for _, p := range m.list() {
		if p.config.Enabled {
			go p.Connect()
		}
	}
}

func (m *Manager) list() []*Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Producer, 0, len(m.producers))
	for _, p := range m.producers {
		out = append(out, p)
	}
	return out
}

// StopAll stops the workers and disconnects every cluster.
func (m *Manager) StopAll() {
	m.mu.Lock()
	if m.started {
		oldStopChan := m.stopChan
		m.stopChan = make(chan struct{})
		m.publishQueue = make(chan publishJob, MaxPublishQueueSize)
		m.started = false
		m.mu.Unlock()

		close(oldStopChan)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			logging.DebugLog("kafka", "timeout waiting for publish workers")
		}
	} else {
		m.mu.Unlock()
	}

	for _, p := range m.list() {
		p.Disconnect()
	}
}

// Publish queues a tag value for every connected cluster, skipping
// unchanged values unless force is set. Messages are keyed by
// <controller>/<path> so one tag's values stay ordered.
func (m *Manager) Publish(controller, path, typeName string, value interface{}, force bool) {
	m.startWorkers()

	for _, p := range m.list() {
		if p.Status() != StatusConnected || p.config.Topic == "" {
			continue
		}

		cacheKey := fmt.Sprintf("%s/%s/%s", p.config.Name, controller, path)

		m.lastMu.RLock()
		lastValue, exists := m.lastValues[cacheKey]
		m.lastMu.RUnlock()

		if exists && !force && fmt.Sprintf("%v", lastValue) == fmt.Sprintf("%v", value) {
			continue
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
			continue
		}

		job := publishJob{
			producer: p,
			key:      []byte(controller + "/" + path),
			payload:  payload,
			cacheKey: cacheKey,
			value:    value,
		}
		select {
		case m.publishQueue <- job:
		default:
			logging.DebugLog("kafka", "publish queue full, dropping %s", cacheKey)
		}
	}
}

// AnyPublishing returns true if any cluster can accept tag values.
func (m *Manager) AnyPublishing() bool {
	for _, p := range m.list() {
		if p.Status() == StatusConnected && p.config.Topic != "" {
			return true
		}
	}
	return false
}

// ClearLastValues resets change tracking, forcing a republish of
// everything.
func (m *Manager) ClearLastValues() {
	m.lastMu.Lock()
	m.lastValues = make(map[string]interface{})
	m.lastMu.Unlock()
}
