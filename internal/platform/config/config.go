// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Admin credentials. AdminTokenHash takes precedence when both are set.
	AdminToken     string
	AdminTokenHash string

	JWTSigningKey string
	JWTIssuer     string

	// PostgresURL enables the persistent store. Empty means in-memory.
	PostgresURL string

	RedisURL      string
	RedisPoolSize int

	KafkaBrokers    []string
	KafkaAuditTopic string

	RefDataBaseURL string
	RefDataToken   string
	RefDataTTL     time.Duration

	// StoreTimezone is the merchant storefront timezone used for time-window
	// rule evaluation, e.g. "Asia/Riyadh".
	StoreTimezone string

	ShutdownTimeout time.Duration
}

func FromEnv() (Config, error) {
	cfg := Config{
		Addr:            getEnv("ADDR", ":8080"),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		AdminTokenHash:  os.Getenv("ADMIN_TOKEN_HASH"),
		JWTSigningKey:   os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:       getEnv("JWT_ISSUER", "storegate"),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaAuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "storegate.audit"),
		RefDataBaseURL:  os.Getenv("REFDATA_BASE_URL"),
		RefDataToken:    os.Getenv("REFDATA_TOKEN"),
		StoreTimezone:   getEnv("STORE_TIMEZONE", "UTC"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.RedisPoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return Config{}, err
	}
	if cfg.RefDataTTL, err = getDuration("REFDATA_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.AdminToken == "" && cfg.AdminTokenHash == "" && cfg.JWTSigningKey == "" {
		return Config{}, fmt.Errorf("config: one of ADMIN_TOKEN, ADMIN_TOKEN_HASH or JWT_SIGNING_KEY must be set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
