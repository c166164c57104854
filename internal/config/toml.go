// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Experiment ExperimentConfig `toml:"experiment"`
	Paths      PathsConfig      `toml:"paths"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ExperimentConfig maps session settings. Unset values stay nil.
type ExperimentConfig struct {
	Lang                *string   `toml:"lang"`
	Words               *string   `toml:"words"`
	MaxAttempts         *int      `toml:"max-attempts"`
	DefinitionSeconds   *float64  `toml:"definition-seconds"`
	BlinkSeconds        *float64  `toml:"blink-seconds"`
	InstructionSections *[]string `toml:"instruction-sections"`
	Width               *int      `toml:"width"`
	Height              *int      `toml:"height"`
	Shuffle             *bool     `toml:"shuffle"`
	Seed                *int64    `toml:"seed"`
	Checkpoint          *bool     `toml:"checkpoint"`
}

// PathsConfig maps resource and output locations.
type PathsConfig struct {
	Texts   *string `toml:"texts"`
	Stimuli *string `toml:"stimuli"`
	Data    *string `toml:"data"`
	Logs    *string `toml:"logs"`
	DB      *string `toml:"db"`
}

// LoggingConfig maps operator log settings.
type LoggingConfig struct {
	Format *string `toml:"format"`
	Level  *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
