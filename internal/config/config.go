// SPDX-License-Identifier: MIT
//
// Package config defines vis-capture's runtime configuration: defaults,
// an optional YAML overlay, and VIS_* environment overrides, applied in
// that order by LoadConfig. The cmd package then re-applies any CLI flag
// the user passed explicitly, so such a flag wins over file and environment.
package config

import "viscapture/pkg/bitint"

// Restricted value sets and fixed constants from the wire protocol.
const (
	DefaultPort       = 7700
	DefaultSource     = "@DEFAULT_MONITOR@"
	DefaultBarCount   = 72
	DefaultFreqMax    = 12000
	DefaultFPS        = 30
	DefaultLogLevel   = "info"
	FreqMin           = 50.0 // fixed, not user-configurable
	SampleRate        = 44100
	FrameSize         = SampleRate / 60 // 735
	FFTSize           = 4096
	MaxInboundPayload = 4096 // bytes, §4.C safety cap

	DefaultTelemetryEnabled  = false
	DefaultTelemetryTarget   = "127.0.0.1:9090"
	DefaultTelemetryInterval = "33ms" // ~30Hz, parsed with time.ParseDuration
)

// ValidFPS, ValidFreqMax, ValidBarCount are the restricted value sets from
// spec.md §3. Out-of-set values are silently ignored by the control plane,
// not rejected here — Validate only checks the config loaded at startup.
var (
	ValidFPS      = []int{24, 30, 60}
	ValidFreqMax  = []int{10000, 12000, 14000, 16000, 18000}
	ValidBarCount = []int{8, 16, 24, 36, 72, 100, 144}
)

// Config holds all runtime configuration for one vis-capture process.
type Config struct {
	Port     int    `yaml:"port"`
	Source   string `yaml:"source"`
	BarCount int    `yaml:"bar_count"`
	FreqMax  int    `yaml:"freq_max"`
	FPS      int    `yaml:"fps"`
	LogLevel string `yaml:"log_level"`

	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Command is set by the `list` subcommand; empty means "run the daemon".
	Command string `yaml:"-"`
}

// TelemetryConfig controls the supplemental UDP diagnostics sidecar
// (SPEC_FULL.md §10). Off by default; strictly additive to the primary
// WebSocket channel.
type TelemetryConfig struct {
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address"`
	UDPSendInterval  string `yaml:"udp_send_interval"`
}

// NewConfig returns a Config populated with spec.md defaults.
func NewConfig() *Config {
	return &Config{
		Port:     DefaultPort,
		Source:   DefaultSource,
		BarCount: DefaultBarCount,
		FreqMax:  DefaultFreqMax,
		FPS:      DefaultFPS,
		LogLevel: DefaultLogLevel,
		Telemetry: TelemetryConfig{
			UDPEnabled:       DefaultTelemetryEnabled,
			UDPTargetAddress: DefaultTelemetryTarget,
			UDPSendInterval:  DefaultTelemetryInterval,
		},
	}
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Validate checks the restricted value sets spec.md §3 defines. Unlike the
// control plane's SET_* handling (which silently ignores bad values at
// runtime), a bad startup configuration is a hard error.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errInvalid("port", c.Port)
	}
	if !contains(ValidFPS, c.FPS) {
		return errInvalid("fps", c.FPS)
	}
	if !contains(ValidFreqMax, c.FreqMax) {
		return errInvalid("freq_max", c.FreqMax)
	}
	if !contains(ValidBarCount, c.BarCount) {
		return errInvalid("bar_count", c.BarCount)
	}
	// spec.md §3: "FFT_SIZE = 4096, power of two" and "FFT_SIZE > frame_size".
	// These are fixed constants, not user-configurable, but a corrupted
	// build (bad -ldflags, a typo'd constant edit) should fail loudly at
	// startup rather than produce silently wrong bin math.
	if !bitint.IsPowerOfTwo(FFTSize) {
		return errInvalid("fft_size", FFTSize)
	}
	if FFTSize <= FrameSize {
		return errInvalid("fft_size", FFTSize)
	}
	return nil
}
