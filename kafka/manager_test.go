package kafka

import (
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"tagscan/config"
)

// shouldPublish replicates the Publish change check against the cache.
func (m *Manager) shouldPublish(cacheKey string, value interface{}, force bool) bool {
	m.lastMu.RLock()
	lastValue, exists := m.lastValues[cacheKey]
	m.lastMu.RUnlock()
	return !exists || force || fmt.Sprintf("%v", lastValue) != fmt.Sprintf("%v", value)
}

func (m *Manager) updateLastValue(cacheKey string, value interface{}) {
	m.lastMu.Lock()
	m.lastValues[cacheKey] = value
	m.lastMu.Unlock()
}

// TestManagerChangeDetection tests that duplicate values are not
// republished.
func TestManagerChangeDetection(t *testing.T) {
	t.Run("identical values should not republish", func(t *testing.T) {
		m := NewManager()
		defer m.StopAll()

		m.updateLastValue("cluster/Line1/Counter", int32(100))
		if m.shouldPublish("cluster/Line1/Counter", int32(100), false) {
			t.Error("identical value should not republish")
		}
	})

	t.Run("different values should republish", func(t *testing.T) {
		m := NewManager()
		defer m.StopAll()

		m.updateLastValue("cluster/Line1/Counter", int32(100))
		if !m.shouldPublish("cluster/Line1/Counter", int32(200), false) {
			t.Error("different value should republish")
		}
	})

	t.Run("force flag should override change detection", func(t *testing.T) {
		m := NewManager()
		defer m.StopAll()

		m.updateLastValue("cluster/Line1/Counter", int32(100))
		if !m.shouldPublish("cluster/Line1/Counter", int32(100), true) {
			t.Error("force flag should override change detection")
		}
	})

	t.Run("different clusters are tracked separately", func(t *testing.T) {
		m := NewManager()
		defer m.StopAll()

		m.updateLastValue("cluster1/Line1/Counter", int32(100))
		if !m.shouldPublish("cluster2/Line1/Counter", int32(100), false) {
			t.Error("different clusters should be tracked separately")
		}
	})

	t.Run("ClearLastValues forces republish", func(t *testing.T) {
		m := NewManager()
		defer m.StopAll()

		m.updateLastValue("cluster/Line1/Counter", int32(100))
		m.ClearLastValues()
		if !m.shouldPublish("cluster/Line1/Counter", int32(100), false) {
			t.Error("cleared cache should republish")
		}
	})
}

func TestManagerClusters(t *testing.T) {
	m := NewManager()
	defer m.StopAll()

	m.LoadFromConfig([]config.KafkaConfig{
		{Name: "a", Brokers: []string{"kafka:9092"}, Topic: "tags"},
		{Name: "b", Brokers: []string{"kafka:9093"}, Topic: "tags"},
	})

	if len(m.Clusters()) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(m.Clusters()))
	}
	if m.Producer("a") == nil || m.Producer("b") == nil {
		t.Error("Producer by name failed")
	}
	if m.Producer("missing") != nil {
		t.Error("expected nil for unknown cluster")
	}

	// Duplicate names are ignored.
	m.AddCluster(&config.KafkaConfig{Name: "a", Brokers: []string{"other:9092"}})
	if len(m.Clusters()) != 2 {
		t.Error("duplicate cluster name should be ignored")
	}

	if m.AnyPublishing() {
		t.Error("disconnected clusters should not report publishing")
	}

	m.RemoveCluster("a")
	if m.Producer("a") != nil {
		t.Error("RemoveCluster failed")
	}
}

func TestProducerStatus(t *testing.T) {
	p := NewProducer(&config.KafkaConfig{Name: "test", Brokers: []string{"localhost:9092"}, Topic: "tags"})

	if p.Status() != StatusDisconnected {
		t.Errorf("new producer status = %v, want Disconnected", p.Status())
	}
	if p.Name() != "test" {
		t.Errorf("Name = %q", p.Name())
	}

	sent, errors, _ := p.Stats()
	if sent != 0 || errors != 0 {
		t.Error("new producer should have zero stats")
	}
}

func TestConnectionStatusString(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "Disconnected"},
		{StatusConnecting, "Connecting"},
		{StatusConnected, "Connected"},
		{StatusError, "Error"},
		{ConnectionStatus(99), "Unknown"},
	}

	for _, tc := range tests {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestTagMessagePayload(t *testing.T) {
	msg := TagMessage{
		Value:     int32(42),
		Type:      "DINT",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Quality:   "good",
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	for _, field := range []string{"value", "type", "timestamp", "quality"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("missing field %s", field)
		}
	}
	if decoded["value"].(float64) != 42 {
		t.Errorf("value = %v", decoded["value"])
	}
}
