package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"tagscan/config"
	"tagscan/logging"
)

// ConnectionStatus represents the state of a cluster connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Producer writes messages to one Kafka cluster.
type Producer struct {
	config  *config.KafkaConfig
	writer  *kafka.Writer
	status  ConnectionStatus
	lastErr error
	mu      sync.RWMutex

	messagesSent  int64
	messagesError int64
	lastSendTime  time.Time
}

// NewProducer creates a producer for one cluster.
func NewProducer(cfg *config.KafkaConfig) *Producer {
	return &Producer{
		config: cfg,
		status: StatusDisconnected,
	}
}

// Name returns the producer's configured cluster name.
func (p *Producer) Name() string {
	return p.config.Name
}

// Status returns the current connection status.
func (p *Producer) Status() ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Err returns the last produce or connect error.
func (p *Producer) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Stats returns producer counters.
func (p *Producer) Stats() (sent, errors int64, lastSend time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.messagesSent, p.messagesError, p.lastSendTime
}

// Connect verifies broker reachability and prepares the topic writer.
func (p *Producer) Connect() error {
	p.mu.Lock()
	p.status = StatusConnecting
	p.lastErr = nil
	brokers := p.config.Brokers
	p.mu.Unlock()

	if len(brokers) == 0 {
		err := fmt.Errorf("Connect: no brokers configured for %s", p.config.Name)
		p.mu.Lock()
		p.status = StatusError
		p.lastErr = err
		p.mu.Unlock()
		return err
	}

	logging.DebugLog("kafka", "connecting to %s brokers %v", p.config.Name, brokers)

	dialer := &kafka.Dialer{
		Timeout:       10 * time.Second,
		DualStack:     true,
		TLS:           tlsConfig(p.config),
		SASLMechanism: saslMechanism(p.config),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		p.mu.Lock()
		p.status = StatusError
		p.lastErr = fmt.Errorf("Connect: %w", err)
		p.mu.Unlock()
		logging.DebugLog("kafka", "connect %s failed: %v", p.config.Name, err)
		return p.lastErr
	}
	conn.Close()

	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
		TLS:         tlsConfig(p.config),
		SASL:        saslMechanism(p.config),
	}

	writer := &kafka.Writer{
		Addr:      kafka.TCP(brokers...),
		Topic:     p.config.Topic,
		Balancer:  &kafka.LeastBytes{},
		Transport: transport,

		RequiredAcks: kafka.RequireAll,
		Async:        false,
		MaxAttempts:  3,

		BatchSize:    100,
		BatchBytes:   1048576,
		BatchTimeout: 10 * time.Millisecond,

		AllowAutoTopicCreation: true,
	}

	p.mu.Lock()
	p.writer = writer
	p.status = StatusConnected
	p.mu.Unlock()

	logging.DebugLog("kafka", "connected to %s", p.config.Name)
	return nil
}

// Disconnect closes the writer.
func (p *Producer) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil {
		p.writer.Close()
		p.writer = nil
	}
	p.status = StatusDisconnected
	p.lastErr = nil
	logging.DebugLog("kafka", "disconnected from %s", p.config.Name)
}

// Produce writes one message to the configured topic. Blocks until
// the cluster acknowledges.
func (p *Producer) Produce(ctx context.Context, key, value []byte) error {
	p.mu.RLock()
	writer := p.writer
	status := p.status
	p.mu.RUnlock()

	if status != StatusConnected || writer == nil {
		return fmt.Errorf("Produce: cluster %s not connected", p.config.Name)
	}

	err := writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		p.mu.Lock()
		p.messagesError++
		p.lastErr = err
		p.mu.Unlock()
		return fmt.Errorf("Produce: %w", err)
	}

	p.mu.Lock()
	p.messagesSent++
	p.lastSendTime = time.Now()
	p.lastErr = nil
	p.mu.Unlock()

	return nil
}
