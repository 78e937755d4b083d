package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("JWT_EXPIRATION_HOURS", "2")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("KAFKA_TOPIC", "refill.request.events")
	t.Setenv("TOKEN_DIRECTORY", "firestore")

	cfg := Load()
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.StoreDriver != "memory" {
		t.Errorf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.DBPort != 6543 {
		t.Errorf("DBPort = %d", cfg.DBPort)
	}
	if cfg.JWTExpirationHours != 2*time.Hour {
		t.Errorf("JWTExpirationHours = %v", cfg.JWTExpirationHours)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.TokenDirectory != "firestore" {
		t.Errorf("TokenDirectory = %q", cfg.TokenDirectory)
	}
}

func TestGetEnvFallback(t *testing.T) {
	if got := getEnv("TEA_REFILL_SURELY_UNSET_KEY", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q, want fallback", got)
	}
}
