package mqtt

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"tagscan/config"
)

// TestChangeDetectionLogic tests the core change detection logic.
func TestChangeDetectionLogic(t *testing.T) {
	t.Run("identical values should not republish", func(t *testing.T) {
		cache := map[string]interface{}{"Line1/Counter": int32(100)}

		lastValue, exists := cache["Line1/Counter"]
		shouldPublish := !exists || fmt.Sprintf("%v", lastValue) != fmt.Sprintf("%v", int32(100))

		if shouldPublish {
			t.Error("identical value should not republish")
		}
	})

	t.Run("different values should republish", func(t *testing.T) {
		cache := map[string]interface{}{"Line1/Counter": int32(100)}

		lastValue, exists := cache["Line1/Counter"]
		shouldPublish := !exists || fmt.Sprintf("%v", lastValue) != fmt.Sprintf("%v", int32(200))

		if !shouldPublish {
			t.Error("different value should republish")
		}
	})

	t.Run("force flag should override change detection", func(t *testing.T) {
		cache := map[string]interface{}{"Line1/Counter": int32(100)}
		force := true

		lastValue, exists := cache["Line1/Counter"]
		shouldPublish := !exists || force || fmt.Sprintf("%v", lastValue) != fmt.Sprintf("%v", int32(100))

		if !shouldPublish {
			t.Error("force flag should override change detection")
		}
	})

	t.Run("new key should always publish", func(t *testing.T) {
		cache := make(map[string]interface{})

		_, exists := cache["Line1/Counter"]
		if exists {
			t.Error("new key should always publish")
		}
	})

	t.Run("different controllers are tracked separately", func(t *testing.T) {
		cache := map[string]interface{}{"Line1/Counter": int32(100)}

		if _, exists := cache["Line2/Counter"]; exists {
			t.Error("different controllers should be tracked separately")
		}
	})

	t.Run("different paths are tracked separately", func(t *testing.T) {
		cache := map[string]interface{}{"Line1/Counter": int32(100)}

		if _, exists := cache["Line1/Motor.Speed"]; exists {
			t.Error("different paths should be tracked separately")
		}
	})
}

// TestChangeDetectionTypes tests change detection across data types.
func TestChangeDetectionTypes(t *testing.T) {
	tests := []struct {
		name      string
		value1    interface{}
		value2    interface{}
		shouldPub bool
	}{
		{"int32_same", int32(100), int32(100), false},
		{"int32_diff", int32(100), int32(200), true},
		{"float32_same", float32(3.14), float32(3.14), false},
		{"float32_diff", float32(3.14), float32(2.71), true},
		{"float64_same", float64(3.14159), float64(3.14159), false},
		{"bool_same", true, true, false},
		{"bool_diff", true, false, true},
		{"string_same", "hello", "hello", false},
		{"string_diff", "hello", "world", true},
		{"zero_int", int32(0), int32(0), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			shouldPublish := fmt.Sprintf("%v", tc.value1) != fmt.Sprintf("%v", tc.value2)
			if shouldPublish != tc.shouldPub {
				t.Errorf("expected publish=%v, got %v", tc.shouldPub, shouldPublish)
			}
		})
	}
}

func TestBuildTopic(t *testing.T) {
	tests := []struct {
		controller string
		path       string
		want       string
	}{
		{"Line1", "Counter", "tagscan/Line1/Counter"},
		{"Line1", "Motor.Speed", "tagscan/Line1/Motor.Speed"},
		{"Press", "Program:Main.Rate", "tagscan/Press/Program:Main.Rate"},
	}

	for _, tc := range tests {
		if got := BuildTopic(tc.controller, tc.path); got != tc.want {
			t.Errorf("BuildTopic(%q, %q) = %q, want %q", tc.controller, tc.path, got, tc.want)
		}
	}
}

// TestTagMessagePayload tests the published JSON shape.
func TestTagMessagePayload(t *testing.T) {
	t.Run("message includes all fields", func(t *testing.T) {
		msg := TagMessage{
			Value:     int32(100),
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
				t.Errorf("missing required field: %s", field)
			}
		}
	})

	t.Run("empty type omitted", func(t *testing.T) {
		msg := TagMessage{Value: true, Quality: "good", Timestamp: time.Now().UTC().Format(time.RFC3339)}

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal error: %v", err)
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}
		if _, ok := decoded["type"]; ok {
			t.Error("type should be omitted when empty")
		}
	})
}

// TestMessageValueAccuracy tests that published values survive the
// JSON round trip.
func TestMessageValueAccuracy(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		value    interface{}
	}{
		{"int32_positive", "DINT", int32(2147483647)},
		{"int32_negative", "DINT", int32(-2147483648)},
		{"int16_max", "INT", int16(32767)},
		{"float32_precise", "REAL", float32(3.14159)},
		{"float64_precise", "LREAL", float64(3.141592653589793)},
		{"bool_true", "BOOL", true},
		{"string_ascii", "STRING", "Hello, World!"},
		{"string_special", "STRING", "Line1\nLine2\tTab"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := TagMessage{
				Value:     tc.value,
				Type:      tc.typeName,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Quality:   "good",
			}

			data, err := json.Marshal(msg)
			if err != nil {
				t.Fatalf("marshal error: %v", err)
			}

			var decoded TagMessage
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal error: %v", err)
			}

			switch v := tc.value.(type) {
			case int32:
				if decoded.Value.(float64) != float64(v) {
					t.Errorf("int32 mismatch: expected %v, got %v", v, decoded.Value)
				}
			case int16:
				if decoded.Value.(float64) != float64(v) {
					t.Errorf("int16 mismatch: expected %v, got %v", v, decoded.Value)
				}
			case float32:
				if diff := decoded.Value.(float64) - float64(v); diff > 0.0001 || diff < -0.0001 {
					t.Errorf("float32 mismatch: expected %v, got %v", v, decoded.Value)
				}
			case float64:
				if decoded.Value.(float64) != v {
					t.Errorf("float64 mismatch: expected %v, got %v", v, decoded.Value)
				}
			case bool:
				if decoded.Value.(bool) != v {
					t.Errorf("bool mismatch: expected %v, got %v", v, decoded.Value)
				}
			case string:
				if decoded.Value.(string) != v {
					t.Errorf("string mismatch: expected %q, got %q", v, decoded.Value)
				}
			}
		})
	}
}

// TestConcurrentCacheAccess tests thread safety of cache operations.
func TestConcurrentCacheAccess(t *testing.T) {
	cache := make(map[string]interface{})
	var mu sync.RWMutex

	var wg sync.WaitGroup
	controllers := []string{"Line1", "Line2", "Line3"}
	paths := []string{"Counter", "Motor.Speed", "Motor.Limits.High"}

	for _, ctrl := range controllers {
		for _, path := range paths {
			wg.Add(1)
			go func(ctrl, path string) {
				defer wg.Done()
				mu.Lock()
				cache[ctrl+"/"+path] = int32(100)
				mu.Unlock()
			}(ctrl, path)
		}
	}

	wg.Wait()

	mu.RLock()
	defer mu.RUnlock()
	if len(cache) != len(controllers)*len(paths) {
		t.Errorf("expected %d cache entries, got %d", len(controllers)*len(paths), len(cache))
	}
}

func TestNewPublisher(t *testing.T) {
	cfg := &config.MQTTConfig{
		Name:    "test",
		Broker:  "localhost",
		Port:    1883,
		Enabled: true,
	}
	pub := NewPublisher(cfg)

	if pub == nil {
		t.Fatal("expected non-nil publisher")
	}
	if pub.Name() != "test" {
		t.Errorf("expected name 'test', got %q", pub.Name())
	}
	if pub.IsRunning() {
		t.Error("new publisher should not be running")
	}
}

func TestPublisherAddress(t *testing.T) {
	t.Run("tcp address", func(t *testing.T) {
		pub := NewPublisher(&config.MQTTConfig{Broker: "localhost", Port: 1883})
		if addr := pub.Address(); addr != "tcp://localhost:1883" {
			t.Errorf("expected 'tcp://localhost:1883', got %q", addr)
		}
	})

	t.Run("ssl address", func(t *testing.T) {
		pub := NewPublisher(&config.MQTTConfig{Broker: "localhost", Port: 8883, UseTLS: true})
		if addr := pub.Address(); addr != "ssl://localhost:8883" {
			t.Errorf("expected 'ssl://localhost:8883', got %q", addr)
		}
	})
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()

	m.LoadFromConfig([]config.MQTTConfig{
		{Name: "a", Broker: "localhost", Port: 1883},
		{Name: "b", Broker: "localhost", Port: 1884},
	})

	if len(m.List()) != 2 {
		t.Fatalf("expected 2 publishers, got %d", len(m.List()))
	}
	if m.Get("a") == nil || m.Get("b") == nil {
		t.Error("Get by name failed")
	}
	if m.Get("missing") != nil {
		t.Error("expected nil for unknown name")
	}
	if m.AnyRunning() {
		t.Error("nothing should be running")
	}

	m.Remove("a")
	if m.Get("a") != nil || len(m.List()) != 1 {
		t.Error("Remove failed")
	}
}
