// Package config loads arena tuning from the environment or a TOML file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// DefaultMinBlockSize is the smallest block an arena requests from its
// block allocator.
const DefaultMinBlockSize = 4 << 10

// Arena is the tunable surface of an arena.
type Arena struct {
	MinBlockSize int    `env:"PROTOARENA_MIN_BLOCK_SIZE" envDefault:"4096" toml:"min_block_size"`
	LogLevel     string `env:"PROTOARENA_LOG_LEVEL" toml:"log_level"`
}

// ParseEnv loads arena configuration from environment variables.
func ParseEnv() (Arena, error) {
	var cfg Arena
	if err := env.Parse(&cfg); err != nil {
		return Arena{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Arena{}, err
	}
	return cfg, nil
}

// Load reads arena configuration from a TOML file. Missing keys keep
// their defaults.
func Load(path string) (Arena, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Arena{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg := Arena{MinBlockSize: DefaultMinBlockSize}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Arena{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Arena{}, err
	}
	return cfg, nil
}

// Validate rejects values an arena cannot run with.
func (c Arena) Validate() error {
	if c.MinBlockSize <= 0 {
		return fmt.Errorf("config: min_block_size must be positive, got %d", c.MinBlockSize)
	}
	return nil
}
