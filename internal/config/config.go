// Package config assembles runtime settings from layered sources: built-in
// defaults, then environment (with optional .env file), then an optional
// JSON file, then command-line flags. Later sources win.
package config

import "time"

// Config holds runtime settings for the tripsync client.
type Config struct {
	// ServerBaseURL is the base URL of the server-of-record CRUD API.
	ServerBaseURL string

	// DatabasePath is the SQLite file backing the local durable store.
	DatabasePath string

	// Token is the session token, if provided outside the login flow.
	Token string

	// OnlineCheckInterval is how often the watcher probes reachability.
	OnlineCheckInterval time.Duration

	// KeepWarmInterval is how often the light snapshot refresh runs.
	KeepWarmInterval time.Duration

	// BootstrapFanout bounds per-plan concurrency during bootstrap.
	BootstrapFanout int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = "tripsync.db"
	c.OnlineCheckInterval = 5 * time.Second
	c.KeepWarmInterval = 5 * time.Minute
	c.BootstrapFanout = 4
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment, a JSON file (if present), and command-line flags.
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
