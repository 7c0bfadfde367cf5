package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

func errInvalid(field string, value int) error {
	return fmt.Errorf("config: %s=%d is not in the allowed value set", field, value)
}

// LoadConfig builds a Config from, in increasing priority: spec.md defaults,
// an optional YAML file (path, or "config.yaml" if path is empty and that
// file exists), then VIS_* environment overrides. Validate is called last.
//
// Mirrors the teacher's internal/config/yaml.go LoadConfig shape: defaults
// first, file overlay, env overrides, then validation.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides mirrors the teacher's ENV_* pattern in
// internal/config/yaml.go, renamed to the VIS_* prefix for this domain.
func (c *Config) applyEnvOverrides() {
	if v, ok := os.LookupEnv("VIS_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v, ok := os.LookupEnv("VIS_SOURCE"); ok {
		c.Source = v
	}
	if v, ok := os.LookupEnv("VIS_BAR_COUNT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.BarCount = n
		}
	}
	if v, ok := os.LookupEnv("VIS_FREQ_MAX"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.FreqMax = n
		}
	}
	if v, ok := os.LookupEnv("VIS_FPS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.FPS = n
		}
	}
	if v, ok := os.LookupEnv("VIS_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv("VIS_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Telemetry.UDPEnabled = b
		}
	}
	if v, ok := os.LookupEnv("VIS_UDP_TARGET_ADDRESS"); ok {
		c.Telemetry.UDPTargetAddress = v
	}
	if v, ok := os.LookupEnv("VIS_UDP_SEND_INTERVAL"); ok {
		c.Telemetry.UDPSendInterval = v
	}
}
