package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the deployment engine. All timing lives
// here so that tests can shrink intervals to milliseconds.
type Config struct {
	// APIOrigin is the base URL of the platform API.
	APIOrigin string `yaml:"api_origin"`

	// DataDir holds the local key/value store (token, UI preferences).
	DataDir string `yaml:"data_dir"`

	// DeployPollInterval is the delay between deploy-status ticks.
	DeployPollInterval time.Duration `yaml:"deploy_poll_interval"`

	// MaxDeployTicks bounds an in-editor deploy; at 2s per tick the default
	// gives roughly a 60s deadline.
	MaxDeployTicks int `yaml:"max_deploy_ticks"`

	// BackgroundDeployTicks bounds a background dashboard deploy.
	BackgroundDeployTicks int `yaml:"background_deploy_ticks"`

	// LogPollInterval is the delay between log polls in fallback mode.
	LogPollInterval time.Duration `yaml:"log_poll_interval"`

	// LogBufferCap is the sliding-window size of the log buffer.
	LogBufferCap int `yaml:"log_buffer_cap"`

	// EventTailDepth is how many recent lifecycle events are retained for
	// newest-first display.
	EventTailDepth int `yaml:"event_tail_depth"`

	// SavedLabelTTL is how long the "Saved" status label persists after a
	// successful draft save.
	SavedLabelTTL time.Duration `yaml:"saved_label_ttl"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the production configuration.
func Default() *Config {
	return &Config{
		APIOrigin:             envOr("PYLOFT_API_ORIGIN", "http://localhost:8600"),
		DataDir:               envOr("PYLOFT_DATA_DIR", defaultDataDir()),
		DeployPollInterval:    2 * time.Second,
		MaxDeployTicks:        30,
		BackgroundDeployTicks: 60,
		LogPollInterval:       3 * time.Second,
		LogBufferCap:          500,
		EventTailDepth:        5,
		SavedLabelTTL:         2 * time.Second,
		LogLevel:              envOr("PYLOFT_LOG_LEVEL", "info"),
	}
}

// Load reads a YAML config file, layering it over the defaults. A missing
// file is not an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// UnmarshalYAML decodes the config, accepting Go duration strings ("2s",
// "500ms") for the interval knobs. Absent fields leave the existing values
// in place, which is what lets Load layer a file over the defaults.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		APIOrigin             *string `yaml:"api_origin"`
		DataDir               *string `yaml:"data_dir"`
		DeployPollInterval    *string `yaml:"deploy_poll_interval"`
		MaxDeployTicks        *int    `yaml:"max_deploy_ticks"`
		BackgroundDeployTicks *int    `yaml:"background_deploy_ticks"`
		LogPollInterval       *string `yaml:"log_poll_interval"`
		LogBufferCap          *int    `yaml:"log_buffer_cap"`
		EventTailDepth        *int    `yaml:"event_tail_depth"`
		SavedLabelTTL         *string `yaml:"saved_label_ttl"`
		LogLevel              *string `yaml:"log_level"`
		LogJSON               *bool   `yaml:"log_json"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}

	setString(&c.APIOrigin, raw.APIOrigin)
	setString(&c.DataDir, raw.DataDir)
	setString(&c.LogLevel, raw.LogLevel)
	setInt(&c.MaxDeployTicks, raw.MaxDeployTicks)
	setInt(&c.BackgroundDeployTicks, raw.BackgroundDeployTicks)
	setInt(&c.LogBufferCap, raw.LogBufferCap)
	setInt(&c.EventTailDepth, raw.EventTailDepth)
	if raw.LogJSON != nil {
		c.LogJSON = *raw.LogJSON
	}
	for _, f := range []struct {
		dst *time.Duration
		src *string
	}{
		{&c.DeployPollInterval, raw.DeployPollInterval},
		{&c.LogPollInterval, raw.LogPollInterval},
		{&c.SavedLabelTTL, raw.SavedLabelTTL},
	} {
		if err := setDuration(f.dst, f.src); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.APIOrigin == "" {
		return fmt.Errorf("api_origin must not be empty")
	}
	if c.DeployPollInterval <= 0 {
		return fmt.Errorf("deploy_poll_interval must be positive")
	}
	if c.LogPollInterval <= 0 {
		return fmt.Errorf("log_poll_interval must be positive")
	}
	if c.MaxDeployTicks <= 0 || c.BackgroundDeployTicks <= 0 {
		return fmt.Errorf("deploy tick budgets must be positive")
	}
	if c.LogBufferCap <= 0 {
		return fmt.Errorf("log_buffer_cap must be positive")
	}
	if c.EventTailDepth <= 0 {
		return fmt.Errorf("event_tail_depth must be positive")
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pyloft"
	}
	return home + "/.pyloft"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
