// Package config holds the daemon configuration and build metadata.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Build metadata, set with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

const (
	SourceSimulated = "simulated"
	SourceRedis     = "redis"
)

type Config struct {
	HTTPAddr string        `yaml:"http_address"`
	Port     string        `yaml:"port"`
	Display  DisplayConfig `yaml:"display"`
	Redis    RedisConfig   `yaml:"redis"`
}

type DisplayConfig struct {
	Source        string  `yaml:"source"` // simulated | redis
	DisplayID     uint64  `yaml:"display_id"`
	RefreshRateHz float64 `yaml:"refresh_rate_hz"` // simulated only
}

type RedisConfig struct {
	Addr          string `yaml:"address"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		HTTPAddr: "127.0.0.1",
		Port:     "8090",
		Display: DisplayConfig{
			Source:        SourceSimulated,
			RefreshRateHz: 60,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			ChannelPrefix: "display",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	switch c.Display.Source {
	case SourceSimulated:
		if c.Display.RefreshRateHz <= 0 {
			return fmt.Errorf("display.refresh_rate_hz must be positive, got %v", c.Display.RefreshRateHz)
		}
	case SourceRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.address is required for the redis display source")
		}
	default:
		return fmt.Errorf("unknown display.source %q", c.Display.Source)
	}
	return nil
}

// VsyncPeriod converts the configured refresh rate to a period.
func (d DisplayConfig) VsyncPeriod() time.Duration {
	if d.RefreshRateHz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / d.RefreshRateHz)
}
