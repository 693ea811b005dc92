package sessioncredit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Config.withDefaults.
const (
	// DefaultUsageReportingLimit caps the per-direction delta carried by a
	// single usage report. Larger bursts are spread across multiple
	// report/grant round trips.
	DefaultUsageReportingLimit uint64 = 1 << 30 // 1 GiB

	// DefaultMaxOverage is the volume a key may overspend beyond its
	// allowance while a report/grant round trip is outstanding, before
	// access is restricted.
	DefaultMaxOverage uint64 = 10 << 20 // 10 MiB

	// DefaultPollIntervalSec is how often the manager re-evaluates update
	// decisions.
	DefaultPollIntervalSec = 10
)

// Config holds the credit-control tunables. The zero value is usable;
// zero fields fall back to the defaults above.
type Config struct {
	// UsageReportingLimit bounds the per-direction volume included in one
	// usage report. Termination reports are never capped.
	UsageReportingLimit uint64 `yaml:"usage_reporting_limit"`

	// MaxOverage is the tolerated overspend beyond allowed volume before
	// enforcement restricts access.
	MaxOverage uint64 `yaml:"max_overage"`

	// PollIntervalSec is the manager's update-evaluation interval.
	PollIntervalSec int `yaml:"poll_interval_sec"`
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("sessioncredit: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("sessioncredit: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for consistency.
func (c Config) Validate() error {
	if c.PollIntervalSec < 0 {
		return fmt.Errorf("sessioncredit: config: poll_interval_sec must not be negative")
	}
	return nil
}

// PollInterval returns the configured poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	sec := c.PollIntervalSec
	if sec == 0 {
		sec = DefaultPollIntervalSec
	}
	return time.Duration(sec) * time.Second
}

func (c Config) withDefaults() Config {
	if c.UsageReportingLimit == 0 {
		c.UsageReportingLimit = DefaultUsageReportingLimit
	}
	if c.MaxOverage == 0 {
		c.MaxOverage = DefaultMaxOverage
	}
	if c.PollIntervalSec == 0 {
		c.PollIntervalSec = DefaultPollIntervalSec
	}
	return c
}
