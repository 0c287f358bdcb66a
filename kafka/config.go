// Package kafka publishes polled tag values to Kafka clusters.
package kafka

import (
	"crypto/tls"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"tagscan/config"
)

// SASL mechanism names accepted in configuration.
const (
	SASLPlain       = "PLAIN"
	SASLSCRAMSHA256 = "SCRAM-SHA-256"
	SASLSCRAMSHA512 = "SCRAM-SHA-512"
)

// tlsConfig returns the TLS configuration for a cluster, or nil when
// TLS is disabled.
func tlsConfig(cfg *config.KafkaConfig) *tls.Config {
	if !cfg.UseTLS {
		return nil
	}
	return &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}
}

// saslMechanism returns the configured SASL mechanism, or nil when
// authentication is disabled.
func saslMechanism(cfg *config.KafkaConfig) sasl.Mechanism {
	if cfg.Username == "" {
		return nil
	}

	switch cfg.SASLMechanism {
	case SASLPlain:
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	case SASLSCRAMSHA256:
		mechanism, _ := scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
		return mechanism
	case SASLSCRAMSHA512:
		mechanism, _ := scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
		return mechanism
	default:
		return nil
	}
}
