// Package config loads the ffbctl configuration from YAML with
// environment overrides. Every field has a working default, so a
// missing config file is not an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Force   ForceConfig   `yaml:"force"`
	Poll    PollConfig    `yaml:"poll"`
	Logging LoggingConfig `yaml:"logging"`
}

// DeviceConfig identifies the wheel to drive.
type DeviceConfig struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
}

// ForceConfig bounds the tunable effect scalars. The duration bounds
// are operator conveniences rather than hardware limits, which is why
// they live here and not in the driver binding.
type ForceConfig struct {
	Max            int16 `yaml:"max"`
	IntensityStep  int   `yaml:"intensity_step"`
	Intensity      int16 `yaml:"intensity"`
	DirectionStep  int   `yaml:"direction_step"`
	DurationMinMS  int   `yaml:"duration_min_ms"`
	DurationMaxMS  int   `yaml:"duration_max_ms"`
	DurationMS     int   `yaml:"duration_ms"` // 0 plays until stopped
	DurationStepMS int   `yaml:"duration_step_ms"`
}

// PollConfig sets the two loop cadences.
type PollConfig struct {
	TelemetryIntervalMS int `yaml:"telemetry_interval_ms"`
	ControlTickMS       int `yaml:"control_tick_ms"`
}

// LoggingConfig selects log level, format and destination. Output
// "file" writes a timestamped session log under Dir.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stderr, stdout or file
	Dir    string `yaml:"dir"`
}

// Default values match the Sidewinder wheel and the classic tuning of
// the simulator this tool grew out of.
func Default() Config {
	return Config{
		Device: DeviceConfig{VendorID: 0x045E, ProductID: 0x0034},
		Force: ForceConfig{
			Max:            32767,
			IntensityStep:  2000,
			Intensity:      16000,
			DirectionStep:  2000,
			DurationMinMS:  100,
			DurationMaxMS:  10000,
			DurationMS:     0,
			DurationStepMS: 500,
		},
		Poll: PollConfig{
			TelemetryIntervalMS: 16,
			ControlTickMS:       50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
			Dir:    ".",
		},
	}
}

// Load reads the YAML file at path into the defaults, applies
// environment overrides and validates. An absent file yields the
// defaults; any other read error is returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FFBCTL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FFBCTL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("FFBCTL_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
	if v := os.Getenv("FFBCTL_VENDOR_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 0, 16); err == nil {
			cfg.Device.VendorID = uint16(id)
		}
	}
	if v := os.Getenv("FFBCTL_PRODUCT_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 0, 16); err == nil {
			cfg.Device.ProductID = uint16(id)
		}
	}
}

// Validate rejects configurations the rest of the program cannot run
// under.
func (c *Config) Validate() error {
	if c.Device.VendorID == 0 || c.Device.ProductID == 0 {
		return fmt.Errorf("config: device vendor_id and product_id must be set")
	}
	if c.Force.Max <= 0 {
		return fmt.Errorf("config: force.max must be positive, got %d", c.Force.Max)
	}
	if c.Force.IntensityStep <= 0 {
		return fmt.Errorf("config: force.intensity_step must be positive, got %d", c.Force.IntensityStep)
	}
	if c.Force.DurationMinMS <= 0 || c.Force.DurationMaxMS < c.Force.DurationMinMS {
		return fmt.Errorf("config: duration bounds invalid: min %dms max %dms",
			c.Force.DurationMinMS, c.Force.DurationMaxMS)
	}
	if c.Poll.TelemetryIntervalMS <= 0 {
		return fmt.Errorf("config: poll.telemetry_interval_ms must be positive, got %d", c.Poll.TelemetryIntervalMS)
	}
	if c.Poll.ControlTickMS <= 0 {
		return fmt.Errorf("config: poll.control_tick_ms must be positive, got %d", c.Poll.ControlTickMS)
	}
	switch c.Logging.Output {
	case "stderr", "stdout", "file":
	default:
		return fmt.Errorf("config: logging.output must be stderr, stdout or file, got %q", c.Logging.Output)
	}
	return nil
}

// TelemetryInterval returns the poll cadence as a duration.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Poll.TelemetryIntervalMS) * time.Millisecond
}

// ControlTick returns the control loop cadence as a duration.
func (c *Config) ControlTick() time.Duration {
	return time.Duration(c.Poll.ControlTickMS) * time.Millisecond
}
