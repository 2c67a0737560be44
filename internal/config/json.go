package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// duration accepts either a string like "5s" or integer nanoseconds.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return err
		}
		d.Duration = parsed
	case float64:
		d.Duration = time.Duration(t)
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

// jsonConfig is the DTO for the optional JSON config file.
type jsonConfig struct {
	ServerBaseURL       string   `json:"server_base_url"`
	DatabasePath        string   `json:"database_path"`
	Token               string   `json:"token"`
	OnlineCheckInterval duration `json:"online_check_interval"`
	KeepWarmInterval    duration `json:"keepwarm_interval"`
	BootstrapFanout     int      `json:"bootstrap_fanout"`
}

// parseJson overlays Config with values from the file named by -c/-config.
// No flag, no file, no overlay. Panics on read or unmarshal errors: a config
// file that exists but cannot be used is a startup defect.
func parseJson(cfg *Config) {
	path := jsonConfigPath()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.Token != "" {
		cfg.Token = jc.Token
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.KeepWarmInterval.Duration != 0 {
		cfg.KeepWarmInterval = jc.KeepWarmInterval.Duration
	}
	if jc.BootstrapFanout != 0 {
		cfg.BootstrapFanout = jc.BootstrapFanout
	}
}
