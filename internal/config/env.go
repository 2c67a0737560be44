package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with TRIPSYNC_* environment variables. A .env
// file in the working directory is loaded first, without overriding
// variables already exported.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("TRIPSYNC_SERVER"); v != "" {
		cfg.ServerBaseURL = v
	}
	if v := os.Getenv("TRIPSYNC_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("TRIPSYNC_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("TRIPSYNC_ONLINE_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OnlineCheckInterval = d
		}
	}
	if v := os.Getenv("TRIPSYNC_KEEPWARM_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.KeepWarmInterval = d
		}
	}
	if v := os.Getenv("TRIPSYNC_BOOTSTRAP_FANOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BootstrapFanout = n
		}
	}
}
