// Package valkey stores polled tag values in a Valkey/Redis server.
package valkey

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"tagscan/config"
	"tagscan/logging"
)

// KeyPrefix leads every tag key.
const KeyPrefix = "tagscan"

// joinKey joins key segments with colons, trimming stray colons from
// each segment so keys never contain empty parts.
func joinKey(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

// TagMessage is the JSON value stored under each tag key.
type TagMessage struct {
	Value     interface{} `json:"value"`
	Type      string      `json:"type,omitempty"`
	Timestamp string      `json:"timestamp"`
	Quality   string      `json:"quality"`
}

// Publisher stores tag values in one Valkey server.
type Publisher struct {
	config  *config.ValkeyConfig
	client  *redis.Client
	running bool
	mu      sync.RWMutex
}

// NewPublisher creates a publisher for one server.
func NewPublisher(cfg *config.ValkeyConfig) *Publisher {
	return &Publisher{config: cfg}
}

// Name returns the publisher's configured name.
func (p *Publisher) Name() string {
	return p.config.Name
}

// Config returns the publisher's configuration.
func (p *Publisher) Config() *config.ValkeyConfig {
	return p.config
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Address returns the server URL.
func (p *Publisher) Address() string {
	scheme := "redis"
	if p.config.UseTLS {
		scheme = "rediss"
	}
	return fmt.Sprintf("%s://%s", scheme, p.config.Address)
}

// Start connects to the server and verifies it with a ping.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := &redis.Options{
		Addr:         p.config.Address,
		Password:     p.config.Password,
		DB:           p.config.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if p.config.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	logging.DebugLog("valkey", "connecting to %s (db %d)", p.config.Address, p.config.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("Start: connect to %s: %w", p.config.Address, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		client.Close()
		return nil
	}
	p.client = client
	p.running = true

	logging.DebugLog("valkey", "connected to %s", p.config.Address)
	return nil
}

// Stop disconnects from the server.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

// BuildKey constructs the key for one tag path.
func BuildKey(controller, path string) string {
	return joinKey(KeyPrefix, controller, path)
}

// Publish stores a tag value under tagscan:<controller>:<path>.
func (p *Publisher) Publish(controller, path, typeName string, value interface{}) error {
	p.mu.RLock()
	if !p.running || p.client == nil {
		p.mu.RUnlock()
		return nil
	}
	client := p.client
	cfg := p.config
	p.mu.RUnlock()

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

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("Publish: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := BuildKey(controller, path)
	if err := client.Set(ctx, key, data, cfg.KeyTTL).Err(); err != nil {
		return fmt.Errorf("Publish: set %s: %w", key, err)
	}

	return nil
}
