package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	Version     string

	// Client facade selection: when UseMock is set, tooling built on the
	// client package talks to the in-memory simulation instead of BaseURL.
	UseMock bool
	BaseURL string

	RiskURL     string
	RiskTimeout time.Duration
	RiskRetries int

	KafkaBrokers []string
	KafkaTopic   string

	S3Bucket string
	S3Prefix string
}

const (
	defaultAddr        = ":8571"
	defaultVersion     = "1.0.0"
	defaultRiskTimeout = 10 * time.Second
	defaultRiskRetries = 2
	defaultKafkaTopic  = "atp.audit.events"
)

func Load() (Config, error) {
	cfg := Config{
		Addr:         getEnv("ATP_ADDR", defaultAddr),
		DatabaseURL:  firstNonEmpty(os.Getenv("ATP_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		JWTSecret:    os.Getenv("ATP_JWT_SECRET"),
		Version:      getEnv("ATP_VERSION", defaultVersion),
		UseMock:      getBool("ATP_USE_MOCK", false),
		BaseURL:      getEnv("ATP_BASE_URL", "http://localhost"+defaultAddr+"/atp/v1"),
		RiskURL:      os.Getenv("ATP_RISK_URL"),
		RiskTimeout:  getDuration("ATP_RISK_TIMEOUT", defaultRiskTimeout),
		RiskRetries:  getInt("ATP_RISK_RETRIES", defaultRiskRetries),
		KafkaBrokers: splitList(os.Getenv("ATP_KAFKA_BROKERS")),
		KafkaTopic:   getEnv("ATP_KAFKA_TOPIC", defaultKafkaTopic),
		S3Bucket:     os.Getenv("ATP_S3_BUCKET"),
		S3Prefix:     getEnv("ATP_S3_PREFIX", "atp"),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
