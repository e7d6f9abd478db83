package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type APIConfig struct {
	Addr            string
	DatabaseURL     string
	IdentityURL     string
	IdentityAnonKey string
	StartGrace      time.Duration
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("MARKETMANIA_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		IdentityURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("IDENTITY_URL")), "/"),
		IdentityAnonKey: strings.TrimSpace(os.Getenv("IDENTITY_ANON_KEY")),
		StartGrace:      envDurationDefault("MARKETMANIA_START_GRACE", time.Second),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.IdentityURL == "" {
		return cfg, fmt.Errorf("IDENTITY_URL is required")
	}
	if cfg.IdentityAnonKey == "" {
		return cfg, fmt.Errorf("IDENTITY_ANON_KEY is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("MM_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
