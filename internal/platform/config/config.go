// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// PostgresURL enables the postgres-backed stores; empty keeps the
	// in-memory stores for local runs.
	PostgresURL string

	// RedisURL enables the redis credential cache; empty keeps the
	// in-memory cache.
	RedisURL string

	// KafkaBrokers enables the audit outbox relay; empty disables it.
	KafkaBrokers []string
	AuditTopic   string

	// SealKeyHex is the hex-encoded 32-byte key sealing full vendor
	// responses in the ledger.
	SealKeyHex string

	VendorTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("VOUCH_ADDR", ":8080"),
		PostgresURL:   os.Getenv("VOUCH_POSTGRES_URL"),
		RedisURL:      os.Getenv("VOUCH_REDIS_URL"),
		AuditTopic:    envOr("VOUCH_AUDIT_TOPIC", "vouch.audit"),
		SealKeyHex:    os.Getenv("VOUCH_SEAL_KEY"),
		VendorTimeout: 10 * time.Second,
	}
	if brokers := os.Getenv("VOUCH_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if timeout, err := time.ParseDuration(os.Getenv("VOUCH_VENDOR_TIMEOUT")); err == nil {
		cfg.VendorTimeout = timeout
	}
	return cfg
}

// SealKey decodes the configured sealing key. A missing key falls back to a
// fixed development key; production deployments must override it.
func (s Server) SealKey() ([]byte, error) {
	if s.SealKeyHex == "" {
		return []byte("dev-seal-key-change-in-prod-0000"), nil
	}
	key, err := hex.DecodeString(s.SealKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode seal key: %w", err)
	}
	return key, nil
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
